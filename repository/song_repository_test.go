package repository

import (
	"context"
	"testing"

	"github.com/TheManchineel/titilda-music/db/dbtest"
	"github.com/TheManchineel/titilda-music/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSongRepository(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	dbtest.InsertUser(t, conn, "alice")
	dbtest.InsertUser(t, conn, "bob")
	repo := NewMySQLSongRepository(conn)

	song := &model.Song{
		ID:            uuid.New(),
		Title:         "Blue in Green",
		Album:         "Kind of Blue",
		Artist:        "Miles Davis",
		Genre:         "Jazz",
		ReleaseYear:   1959,
		AudioMimeType: model.AudioFLAC,
		HasArtwork:    true,
		Owner:         "alice",
	}
	require.NoError(t, repo.CreateSong(ctx, song))

	t.Run("owner sees the song", func(t *testing.T) {
		got, err := repo.GetSongForOwner(ctx, song.ID, "alice")
		require.NoError(t, err)
		require.Equal(t, song, got)
	})

	t.Run("other users do not", func(t *testing.T) {
		got, err := repo.GetSongForOwner(ctx, song.ID, "bob")
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("unknown genre is rejected", func(t *testing.T) {
		bad := *song
		bad.ID = uuid.New()
		bad.Genre = "Not A Genre"
		require.Error(t, repo.CreateSong(ctx, &bad))
	})

	t.Run("listing orders by title", func(t *testing.T) {
		dbtest.InsertSong(t, conn, "alice", "All Blues")
		dbtest.InsertSong(t, conn, "bob", "Freddie Freeloader")

		songs, err := repo.ListSongsByOwner(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, songs, 2)
		require.Equal(t, "All Blues", songs[0].Title)
		require.Equal(t, "Blue in Green", songs[1].Title)
	})
}

func TestListSongsNotInPlaylist(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	dbtest.InsertUser(t, conn, "alice")
	a := dbtest.InsertSong(t, conn, "alice", "A")
	b := dbtest.InsertSong(t, conn, "alice", "B")
	d := dbtest.InsertSong(t, conn, "alice", "D")
	c := dbtest.InsertSong(t, conn, "alice", "C")

	playlists := NewMySQLPlaylistRepository(conn)
	p := newTestPlaylist("alice")
	require.NoError(t, playlists.CreatePlaylist(ctx, p))
	require.NoError(t, playlists.InsertMembership(ctx, p.ID, a, 0))

	songs, err := NewMySQLSongRepository(conn).ListSongsNotInPlaylist(ctx, "alice", p.ID)
	require.NoError(t, err)
	require.Len(t, songs, 3)
	require.Equal(t, []uuid.UUID{b, c, d}, []uuid.UUID{songs[0].ID, songs[1].ID, songs[2].ID})
}

func TestSongExists(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.Open(t)
	dbtest.InsertUser(t, conn, "alice")
	id := dbtest.InsertSong(t, conn, "alice", "A")
	repo := NewMySQLSongRepository(conn)

	ok, err := repo.SongExists(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.SongExists(ctx, uuid.New())
	require.NoError(t, err)
	require.False(t, ok)
}
