package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/TheManchineel/titilda-music/model"

	"github.com/google/uuid"
)

// SongRepository defines the interface for song data operations.
type SongRepository interface {
	WithTx(tx *sql.Tx) SongRepository
	CreateSong(ctx context.Context, song *model.Song) error
	// GetSongForOwner returns nil, nil unless the song exists and belongs
	// to owner.
	GetSongForOwner(ctx context.Context, id uuid.UUID, owner string) (*model.Song, error)
	SongExists(ctx context.Context, id uuid.UUID) (bool, error)
	ListSongsByOwner(ctx context.Context, owner string) ([]*model.Song, error)
	// ListSongsNotInPlaylist returns the owner's songs that are not members
	// of playlistID.
	ListSongsNotInPlaylist(ctx context.Context, owner string, playlistID uuid.UUID) ([]*model.Song, error)
}

const songColumns = "s.id, s.title, s.album, s.artist, s.genre, s.release_year, s.audio_mime_type, s.has_artwork, s.owner"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSong(row rowScanner) (*model.Song, error) {
	song := &model.Song{}
	var mime string
	err := row.Scan(&song.ID, &song.Title, &song.Album, &song.Artist, &song.Genre,
		&song.ReleaseYear, &mime, &song.HasArtwork, &song.Owner)
	if err != nil {
		return nil, err
	}
	song.AudioMimeType = model.AudioMimeType(mime)
	return song, nil
}

func collectSongs(rows *sql.Rows) ([]*model.Song, error) {
	defer rows.Close()
	songs := make([]*model.Song, 0)
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan song row: %w", err)
		}
		songs = append(songs, song)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating song rows: %w", err)
	}
	return songs, nil
}

// mysqlSongRepository implements SongRepository on database/sql.
type mysqlSongRepository struct {
	db DBTX
}

// NewMySQLSongRepository creates a new mysqlSongRepository.
func NewMySQLSongRepository(db DBTX) SongRepository {
	return &mysqlSongRepository{db: db}
}

func (r *mysqlSongRepository) WithTx(tx *sql.Tx) SongRepository {
	return &mysqlSongRepository{db: tx}
}

// CreateSong inserts the song row. The id must already be set.
func (r *mysqlSongRepository) CreateSong(ctx context.Context, song *model.Song) error {
	query := `INSERT INTO songs (id, title, album, artist, genre, release_year, audio_mime_type, has_artwork, owner)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		song.ID, song.Title, song.Album, song.Artist, song.Genre,
		song.ReleaseYear, string(song.AudioMimeType), song.HasArtwork, song.Owner)
	if err != nil {
		return fmt.Errorf("failed to execute create song statement: %w", err)
	}
	return nil
}

func (r *mysqlSongRepository) GetSongForOwner(ctx context.Context, id uuid.UUID, owner string) (*model.Song, error) {
	query := "SELECT " + songColumns + " FROM songs s WHERE s.id = ? AND s.owner = ?"
	song, err := scanSong(r.db.QueryRowContext(ctx, query, id, owner))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Song not found
		}
		return nil, fmt.Errorf("failed to scan song %s: %w", id, err)
	}
	return song, nil
}

func (r *mysqlSongRepository) SongExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM songs WHERE id = ?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to look up song %s: %w", id, err)
	}
	return n > 0, nil
}

func (r *mysqlSongRepository) ListSongsByOwner(ctx context.Context, owner string) ([]*model.Song, error) {
	query := "SELECT " + songColumns + " FROM songs s WHERE s.owner = ? ORDER BY s.title, s.release_year DESC"
	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs for %s: %w", owner, err)
	}
	return collectSongs(rows)
}

func (r *mysqlSongRepository) ListSongsNotInPlaylist(ctx context.Context, owner string, playlistID uuid.UUID) ([]*model.Song, error) {
	query := "SELECT " + songColumns + ` FROM songs s
		WHERE s.owner = ? AND NOT EXISTS (
			SELECT 1 FROM playlist_songs ps WHERE ps.playlist_id = ? AND ps.song_id = s.id
		)
		ORDER BY s.title`
	rows, err := r.db.QueryContext(ctx, query, owner, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs outside playlist %s: %w", playlistID, err)
	}
	return collectSongs(rows)
}
