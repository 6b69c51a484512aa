package playlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"testing"

	"github.com/TheManchineel/titilda-music/db/dbtest"
	"github.com/TheManchineel/titilda-music/model"
	"github.com/TheManchineel/titilda-music/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	conn   *sql.DB
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	dbtest.InsertUser(t, conn, "alice")
	dbtest.InsertUser(t, conn, "bob")
	return &fixture{
		conn:   conn,
		engine: NewEngine(conn, repository.NewMySQLPlaylistRepository(conn), repository.NewMySQLSongRepository(conn)),
	}
}

func (f *fixture) songs(t *testing.T, owner string, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = dbtest.InsertSong(t, f.conn, owner, fmt.Sprintf("song %02d", i))
	}
	return ids
}

func (f *fixture) playlist(t *testing.T, owner string, songs ...uuid.UUID) uuid.UUID {
	t.Helper()
	pl, err := f.engine.CreatePlaylist(context.Background(), owner, "mix", songs)
	require.NoError(t, err)
	return pl.ID
}

// positions returns song id by position straight from the table.
func (f *fixture) positions(t *testing.T, playlistID uuid.UUID) map[int]uuid.UUID {
	t.Helper()
	rows, err := f.conn.Query("SELECT position, song_id FROM playlist_songs WHERE playlist_id = ?", playlistID)
	require.NoError(t, err)
	defer rows.Close()
	out := make(map[int]uuid.UUID)
	for rows.Next() {
		var pos int
		var id uuid.UUID
		require.NoError(t, rows.Scan(&pos, &id))
		out[pos] = id
	}
	require.NoError(t, rows.Err())
	return out
}

func requireDense(t *testing.T, positions map[int]uuid.UUID) {
	t.Helper()
	for i := 0; i < len(positions); i++ {
		_, ok := positions[i]
		require.True(t, ok, "missing position %d in %v", i, positions)
	}
}

func ids(songs []*model.Song) []uuid.UUID {
	out := make([]uuid.UUID, len(songs))
	for i, s := range songs {
		out[i] = s.ID
	}
	return out
}

func TestAppendSong(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.songs(t, "alice", 3)
	pid := f.playlist(t, "alice")

	for _, id := range s {
		added, err := f.engine.AppendSong(ctx, pid, id, "alice")
		require.NoError(t, err)
		require.True(t, added)
	}
	require.Equal(t, map[int]uuid.UUID{0: s[0], 1: s[1], 2: s[2]}, f.positions(t, pid))

	t.Run("existing member is a no-op", func(t *testing.T) {
		added, err := f.engine.AppendSong(ctx, pid, s[1], "alice")
		require.NoError(t, err)
		require.False(t, added)
		require.Len(t, f.positions(t, pid), 3)
	})

	t.Run("song of another user", func(t *testing.T) {
		foreign := f.songs(t, "bob", 1)[0]
		_, err := f.engine.AppendSong(ctx, pid, foreign, "alice")
		require.ErrorIs(t, err, ErrSongNotFound)
	})

	t.Run("playlist of another user", func(t *testing.T) {
		_, err := f.engine.AppendSong(ctx, pid, s[0], "bob")
		require.ErrorIs(t, err, ErrPlaylistNotFound)
	})
}

func TestConcurrentAppendsKeepPositionsDense(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.OpenShared(t, 4)
	dbtest.InsertUser(t, conn, "alice")
	f := &fixture{
		conn:   conn,
		engine: NewEngine(conn, repository.NewMySQLPlaylistRepository(conn), repository.NewMySQLSongRepository(conn)),
	}
	s := f.songs(t, "alice", 8)
	pid := f.playlist(t, "alice")

	var wg sync.WaitGroup
	errs := make(chan error, 2*len(s))
	for _, id := range s {
		// Every song is appended twice; the second append must be a no-op.
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				if _, err := f.engine.AppendSong(ctx, pid, id, "alice"); err != nil {
					errs <- err
				}
			}(id)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	positions := f.positions(t, pid)
	require.Len(t, positions, len(s))
	requireDense(t, positions)
	require.ElementsMatch(t, s, slices.Collect(maps.Values(positions)))
}

// callRecorder records the order in which repository methods run inside
// each transaction.
type callRecorder struct {
	repository.PlaylistRepository
	mu    *sync.Mutex
	calls *[]string
}

func (r callRecorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.calls = append(*r.calls, name)
}

func (r callRecorder) WithTx(tx *sql.Tx) repository.PlaylistRepository {
	r.record("begin")
	return callRecorder{PlaylistRepository: r.PlaylistRepository.WithTx(tx), mu: r.mu, calls: r.calls}
}

func (r callRecorder) LockPlaylist(ctx context.Context, id uuid.UUID) error {
	r.record("LockPlaylist")
	return r.PlaylistRepository.LockPlaylist(ctx, id)
}

func (r callRecorder) GetPlaylistForOwner(ctx context.Context, id uuid.UUID, owner string) (*model.Playlist, error) {
	r.record("GetPlaylistForOwner")
	return r.PlaylistRepository.GetPlaylistForOwner(ctx, id, owner)
}

func (r callRecorder) ContainsSong(ctx context.Context, playlistID, songID uuid.UUID) (bool, error) {
	r.record("ContainsSong")
	return r.PlaylistRepository.ContainsSong(ctx, playlistID, songID)
}

func (r callRecorder) NextPosition(ctx context.Context, playlistID uuid.UUID) (int, error) {
	r.record("NextPosition")
	return r.PlaylistRepository.NextPosition(ctx, playlistID)
}

func (r callRecorder) MemberIDs(ctx context.Context, playlistID uuid.UUID) ([]uuid.UUID, error) {
	r.record("MemberIDs")
	return r.PlaylistRepository.MemberIDs(ctx, playlistID)
}

// A plain read before the lock would pin an InnoDB snapshot that misses
// rows committed by the previous lock holder, so the lock has to be the
// first statement of every mutating transaction.
func TestMutationsLockPlaylistBeforeReading(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.songs(t, "alice", 3)
	pid := f.playlist(t, "alice", s[0])

	var mu sync.Mutex
	var calls []string
	rec := callRecorder{PlaylistRepository: repository.NewMySQLPlaylistRepository(f.conn), mu: &mu, calls: &calls}
	engine := NewEngine(f.conn, rec, repository.NewMySQLSongRepository(f.conn))

	tests := []struct {
		name string
		run  func() error
	}{
		{"append", func() error {
			_, err := engine.AppendSong(ctx, pid, s[1], "alice")
			return err
		}},
		{"append batch", func() error {
			_, err := engine.AppendSongs(ctx, pid, "alice", []uuid.UUID{s[2]})
			return err
		}},
		{"reorder", func() error {
			_, err := engine.Reorder(ctx, pid, "alice", []uuid.UUID{s[2], s[1], s[0]})
			return err
		}},
		{"foreign playlist", func() error {
			_, err := engine.AppendSong(ctx, pid, s[1], "bob")
			require.ErrorIs(t, err, ErrPlaylistNotFound)
			return nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls = nil
			require.NoError(t, tt.run())
			require.GreaterOrEqual(t, len(calls), 3, "calls: %v", calls)
			require.Equal(t, []string{"begin", "LockPlaylist", "GetPlaylistForOwner"}, calls[:3])
		})
	}
}

func TestReorder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.songs(t, "alice", 3)
	a, b, c := s[0], s[1], s[2]
	pid := f.playlist(t, "alice", a, b, c)

	songs, err := f.engine.Reorder(ctx, pid, "alice", []uuid.UUID{c, a, b})
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{c, a, b}, ids(songs))
	require.Equal(t, map[int]uuid.UUID{0: c, 1: a, 2: b}, f.positions(t, pid))

	page, err := f.engine.Paginate(ctx, pid, "alice", 0)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{c, a, b}, ids(page))

	pl, err := f.engine.GetPlaylist(ctx, pid, "alice")
	require.NoError(t, err)
	require.True(t, pl.IsManuallySorted)

	t.Run("same permutation twice", func(t *testing.T) {
		again, err := f.engine.Reorder(ctx, pid, "alice", []uuid.UUID{c, a, b})
		require.NoError(t, err)
		require.Equal(t, []uuid.UUID{c, a, b}, ids(again))
	})

	t.Run("duplicates keep the first occurrence", func(t *testing.T) {
		got, err := f.engine.Reorder(ctx, pid, "alice", []uuid.UUID{b, c, b, a, c})
		require.NoError(t, err)
		require.Equal(t, []uuid.UUID{b, c, a}, ids(got))
	})
}

func TestReorderMismatchLeavesOrderUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.songs(t, "alice", 4)
	pid := f.playlist(t, "alice", s[0], s[1], s[2])
	before := f.positions(t, pid)

	tests := []struct {
		name  string
		order []uuid.UUID
	}{
		{"missing member", []uuid.UUID{s[0], s[1]}},
		{"extra member", []uuid.UUID{s[0], s[1], s[2], s[3]}},
		{"swapped member", []uuid.UUID{s[0], s[1], s[3]}},
		{"unknown id", []uuid.UUID{s[0], s[1], uuid.New()}},
		{"empty", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Reorder(ctx, pid, "alice", tt.order)
			require.ErrorIs(t, err, ErrOrderMismatch)
			require.Equal(t, before, f.positions(t, pid))
		})
	}

	pl, err := f.engine.GetPlaylist(ctx, pid, "alice")
	require.NoError(t, err)
	require.False(t, pl.IsManuallySorted)
}

func TestPaginate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("empty playlist", func(t *testing.T) {
		pid := f.playlist(t, "alice")
		n, err := f.engine.PageCount(ctx, pid, "alice")
		require.NoError(t, err)
		require.Zero(t, n)

		page, err := f.engine.Paginate(ctx, pid, "alice", 0)
		require.NoError(t, err)
		require.Empty(t, page)

		_, err = f.engine.Paginate(ctx, pid, "alice", 1)
		require.ErrorIs(t, err, ErrInvalidPage)
	})

	for _, size := range []int{1, 4, 5, 6, 10, 12} {
		t.Run(fmt.Sprintf("%d songs", size), func(t *testing.T) {
			s := f.songs(t, "alice", size)
			pid := f.playlist(t, "alice", s...)

			pages, err := f.engine.PageCount(ctx, pid, "alice")
			require.NoError(t, err)
			require.Equal(t, (size+PageSize-1)/PageSize, pages)

			var all []uuid.UUID
			for k := 0; k < pages; k++ {
				page, err := f.engine.Paginate(ctx, pid, "alice", k)
				require.NoError(t, err)
				require.LessOrEqual(t, len(page), PageSize)
				all = append(all, ids(page)...)
			}
			require.Equal(t, s, all)

			_, err = f.engine.Paginate(ctx, pid, "alice", pages)
			require.ErrorIs(t, err, ErrInvalidPage)
			_, err = f.engine.Paginate(ctx, pid, "alice", -1)
			require.ErrorIs(t, err, ErrInvalidPage)
		})
	}
}

func TestCreatePlaylist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.songs(t, "alice", 2)

	t.Run("blank name", func(t *testing.T) {
		_, err := f.engine.CreatePlaylist(ctx, "alice", "   ", nil)
		require.ErrorIs(t, err, ErrEmptyName)
	})

	t.Run("foreign song rolls everything back", func(t *testing.T) {
		foreign := f.songs(t, "bob", 1)[0]
		_, err := f.engine.CreatePlaylist(ctx, "alice", "broken", []uuid.UUID{s[0], foreign})
		require.ErrorIs(t, err, ErrSongNotFound)

		list, err := f.engine.ListPlaylists(ctx, "alice")
		require.NoError(t, err)
		require.Empty(t, list)
	})

	t.Run("songs keep the given order", func(t *testing.T) {
		pl, err := f.engine.CreatePlaylist(ctx, "alice", " Morning ", []uuid.UUID{s[1], s[0], s[1]})
		require.NoError(t, err)
		require.Equal(t, "Morning", pl.Name)

		songs, err := f.engine.Songs(ctx, pl.ID, "alice")
		require.NoError(t, err)
		require.Equal(t, []uuid.UUID{s[1], s[0]}, ids(songs))

		rest, err := f.engine.SongsNotInPlaylist(ctx, pl.ID, "alice")
		require.NoError(t, err)
		require.Empty(t, rest)
	})
}

func TestAppendSongsIsAtomic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.songs(t, "alice", 3)
	pid := f.playlist(t, "alice", s[0])

	_, err := f.engine.AppendSongs(ctx, pid, "alice", []uuid.UUID{s[1], uuid.New()})
	require.ErrorIs(t, err, ErrSongNotFound)
	require.Len(t, f.positions(t, pid), 1)

	added, err := f.engine.AppendSongs(ctx, pid, "alice", []uuid.UUID{s[0], s[2], s[1]})
	require.NoError(t, err)
	require.Equal(t, 2, added)
	require.Equal(t, map[int]uuid.UUID{0: s[0], 1: s[2], 2: s[1]}, f.positions(t, pid))
}

func TestStorageErrorsAreWrapped(t *testing.T) {
	f := newFixture(t)
	pid := f.playlist(t, "alice")
	require.NoError(t, f.conn.Close())

	_, err := f.engine.AppendSong(context.Background(), pid, uuid.New(), "alice")
	require.ErrorIs(t, err, ErrStorage)
	require.False(t, errors.Is(err, ErrSongNotFound))
}
