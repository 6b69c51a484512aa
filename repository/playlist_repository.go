package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/TheManchineel/titilda-music/model"

	"github.com/google/uuid"
)

// PlaylistRepository persists playlists and their position-ordered
// membership. Position assignment itself belongs to the caller; the
// repository only exposes the primitives.
type PlaylistRepository interface {
	WithTx(tx *sql.Tx) PlaylistRepository

	CreatePlaylist(ctx context.Context, playlist *model.Playlist) error
	// GetPlaylistForOwner returns nil, nil unless the playlist exists and
	// belongs to owner.
	GetPlaylistForOwner(ctx context.Context, id uuid.UUID, owner string) (*model.Playlist, error)
	ListPlaylistsByOwner(ctx context.Context, owner string) ([]*model.Playlist, error)
	SetManuallySorted(ctx context.Context, id uuid.UUID, sorted bool) error

	// LockPlaylist takes a write lock on the playlist row for the rest of
	// the transaction. It must be the transaction's first statement: under
	// REPEATABLE READ an earlier plain read would pin a snapshot that misses
	// rows committed by the previous lock holder.
	LockPlaylist(ctx context.Context, id uuid.UUID) error
	ContainsSong(ctx context.Context, playlistID, songID uuid.UUID) (bool, error)
	// NextPosition is max(position)+1, or 0 for an empty playlist.
	NextPosition(ctx context.Context, playlistID uuid.UUID) (int, error)
	InsertMembership(ctx context.Context, playlistID, songID uuid.UUID, position int) error
	ClearMembership(ctx context.Context, playlistID uuid.UUID) error
	MemberIDs(ctx context.Context, playlistID uuid.UUID) ([]uuid.UUID, error)
	CountMembers(ctx context.Context, playlistID uuid.UUID) (int, error)
	Songs(ctx context.Context, playlistID uuid.UUID) ([]*model.Song, error)
	SongsPage(ctx context.Context, playlistID uuid.UUID, limit, offset int) ([]*model.Song, error)
}

// mysqlPlaylistRepository implements PlaylistRepository on database/sql.
type mysqlPlaylistRepository struct {
	db DBTX
}

// NewMySQLPlaylistRepository creates a new mysqlPlaylistRepository.
func NewMySQLPlaylistRepository(db DBTX) PlaylistRepository {
	return &mysqlPlaylistRepository{db: db}
}

func (r *mysqlPlaylistRepository) WithTx(tx *sql.Tx) PlaylistRepository {
	return &mysqlPlaylistRepository{db: tx}
}

func (r *mysqlPlaylistRepository) CreatePlaylist(ctx context.Context, p *model.Playlist) error {
	query := "INSERT INTO playlists (id, name, owner, created_at, is_manually_sorted) VALUES (?, ?, ?, ?, ?)"
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Owner, p.CreatedAt, p.IsManuallySorted); err != nil {
		return fmt.Errorf("failed to execute create playlist statement: %w", err)
	}
	return nil
}

func scanPlaylist(row rowScanner) (*model.Playlist, error) {
	p := &model.Playlist{}
	if err := row.Scan(&p.ID, &p.Name, &p.Owner, &p.CreatedAt, &p.IsManuallySorted); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func (r *mysqlPlaylistRepository) GetPlaylistForOwner(ctx context.Context, id uuid.UUID, owner string) (*model.Playlist, error) {
	query := "SELECT id, name, owner, created_at, is_manually_sorted FROM playlists WHERE id = ? AND owner = ?"
	p, err := scanPlaylist(r.db.QueryRowContext(ctx, query, id, owner))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan playlist %s: %w", id, err)
	}
	return p, nil
}

func (r *mysqlPlaylistRepository) ListPlaylistsByOwner(ctx context.Context, owner string) ([]*model.Playlist, error) {
	query := "SELECT id, name, owner, created_at, is_manually_sorted FROM playlists WHERE owner = ? ORDER BY created_at DESC, name"
	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists for %s: %w", owner, err)
	}
	defer rows.Close()

	playlists := make([]*model.Playlist, 0)
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist row: %w", err)
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating playlist rows: %w", err)
	}
	return playlists, nil
}

func (r *mysqlPlaylistRepository) SetManuallySorted(ctx context.Context, id uuid.UUID, sorted bool) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE playlists SET is_manually_sorted = ? WHERE id = ?", sorted, id); err != nil {
		return fmt.Errorf("failed to update sort flag of playlist %s: %w", id, err)
	}
	return nil
}

// LockPlaylist issues a no-op update. Both InnoDB and SQLite hold the
// resulting write lock until the transaction ends, which serializes
// concurrent membership changes on the same playlist. The update is a
// locking read, so it waits for the current holder to commit and does not
// open a snapshot of its own.
func (r *mysqlPlaylistRepository) LockPlaylist(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE playlists SET is_manually_sorted = is_manually_sorted WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to lock playlist %s: %w", id, err)
	}
	return nil
}

func (r *mysqlPlaylistRepository) ContainsSong(ctx context.Context, playlistID, songID uuid.UUID) (bool, error) {
	var n int
	query := "SELECT COUNT(*) FROM playlist_songs WHERE playlist_id = ? AND song_id = ?"
	if err := r.db.QueryRowContext(ctx, query, playlistID, songID).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check membership of %s in %s: %w", songID, playlistID, err)
	}
	return n > 0, nil
}

func (r *mysqlPlaylistRepository) NextPosition(ctx context.Context, playlistID uuid.UUID) (int, error) {
	var next int
	query := "SELECT COALESCE(MAX(position) + 1, 0) FROM playlist_songs WHERE playlist_id = ?"
	if err := r.db.QueryRowContext(ctx, query, playlistID).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to compute next position in %s: %w", playlistID, err)
	}
	return next, nil
}

func (r *mysqlPlaylistRepository) InsertMembership(ctx context.Context, playlistID, songID uuid.UUID, position int) error {
	query := "INSERT INTO playlist_songs (playlist_id, song_id, position) VALUES (?, ?, ?)"
	if _, err := r.db.ExecContext(ctx, query, playlistID, songID, position); err != nil {
		return fmt.Errorf("failed to insert %s at position %d of %s: %w", songID, position, playlistID, err)
	}
	return nil
}

func (r *mysqlPlaylistRepository) ClearMembership(ctx context.Context, playlistID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM playlist_songs WHERE playlist_id = ?", playlistID); err != nil {
		return fmt.Errorf("failed to clear playlist %s: %w", playlistID, err)
	}
	return nil
}

func (r *mysqlPlaylistRepository) MemberIDs(ctx context.Context, playlistID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT song_id FROM playlist_songs WHERE playlist_id = ? ORDER BY position", playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members of %s: %w", playlistID, err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}
	return ids, nil
}

func (r *mysqlPlaylistRepository) CountMembers(ctx context.Context, playlistID uuid.UUID) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM playlist_songs WHERE playlist_id = ?", playlistID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count members of %s: %w", playlistID, err)
	}
	return n, nil
}

const playlistSongsQuery = "SELECT " + songColumns + ` FROM playlist_songs ps
	JOIN songs s ON s.id = ps.song_id
	WHERE ps.playlist_id = ?
	ORDER BY ps.position`

func (r *mysqlPlaylistRepository) Songs(ctx context.Context, playlistID uuid.UUID) ([]*model.Song, error) {
	rows, err := r.db.QueryContext(ctx, playlistSongsQuery, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs of %s: %w", playlistID, err)
	}
	return collectSongs(rows)
}

func (r *mysqlPlaylistRepository) SongsPage(ctx context.Context, playlistID uuid.UUID, limit, offset int) ([]*model.Song, error) {
	rows, err := r.db.QueryContext(ctx, playlistSongsQuery+" LIMIT ? OFFSET ?", playlistID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query page of %s: %w", playlistID, err)
	}
	return collectSongs(rows)
}
