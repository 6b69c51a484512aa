// Package playlist keeps playlist membership in a dense, gap-free order.
// Every mutation runs in one transaction that first locks the playlist
// row, so concurrent appends to the same playlist are serialized.
package playlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TheManchineel/titilda-music/db"
	"github.com/TheManchineel/titilda-music/logger"
	"github.com/TheManchineel/titilda-music/model"
	"github.com/TheManchineel/titilda-music/repository"

	"github.com/google/uuid"
)

// PageSize is the number of songs on one playlist page.
const PageSize = 5

var (
	ErrOrderMismatch    = errors.New("songs in playlist and reordered array must be the same")
	ErrInvalidPage      = errors.New("page index out of range")
	ErrStorage          = errors.New("playlist storage failure")
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrSongNotFound     = errors.New("song not found")
	ErrEmptyName        = errors.New("playlist name must not be empty")
)

var domainErrors = []error{
	ErrOrderMismatch, ErrInvalidPage, ErrPlaylistNotFound, ErrSongNotFound, ErrEmptyName,
}

// Engine implements append, reorder and pagination on top of the
// playlist and song repositories.
type Engine struct {
	db        *sql.DB
	playlists repository.PlaylistRepository
	songs     repository.SongRepository
	now       func() time.Time
}

// NewEngine creates an Engine. conn must be the pool both repositories
// were built on.
func NewEngine(conn *sql.DB, playlists repository.PlaylistRepository, songs repository.SongRepository) *Engine {
	return &Engine{db: conn, playlists: playlists, songs: songs, now: time.Now}
}

func storageError(err error) error {
	return fmt.Errorf("%w: %v", ErrStorage, err)
}

// inTx runs fn with repositories bound to one transaction. Errors that are
// not one of the package sentinels are reported as ErrStorage.
func (e *Engine) inTx(ctx context.Context, fn func(p repository.PlaylistRepository, s repository.SongRepository) error) error {
	return e.run(ctx, nil, fn)
}

// mutationTxOptions makes every read after the playlist lock see rows
// committed by the transaction that held the lock before. Drivers without
// isolation levels ignore it.
var mutationTxOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// inLockedTx locks the playlist row as the first statement of the
// transaction, then checks that requester owns it and runs fn.
func (e *Engine) inLockedTx(ctx context.Context, playlistID uuid.UUID, requester string, fn func(p repository.PlaylistRepository, s repository.SongRepository) error) error {
	return e.run(ctx, mutationTxOptions, func(p repository.PlaylistRepository, s repository.SongRepository) error {
		if err := p.LockPlaylist(ctx, playlistID); err != nil {
			return err
		}
		if _, err := ownedPlaylist(ctx, p, playlistID, requester); err != nil {
			return err
		}
		return fn(p, s)
	})
}

func (e *Engine) run(ctx context.Context, opts *sql.TxOptions, fn func(p repository.PlaylistRepository, s repository.SongRepository) error) error {
	err := db.WithTxOptions(ctx, e.db, opts, func(tx *sql.Tx) error {
		return fn(e.playlists.WithTx(tx), e.songs.WithTx(tx))
	})
	if err == nil {
		return nil
	}
	for _, sentinel := range domainErrors {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return storageError(err)
}

func ownedPlaylist(ctx context.Context, p repository.PlaylistRepository, id uuid.UUID, requester string) (*model.Playlist, error) {
	pl, err := p.GetPlaylistForOwner(ctx, id, requester)
	if err != nil {
		return nil, err
	}
	if pl == nil {
		return nil, ErrPlaylistNotFound
	}
	return pl, nil
}

// appendLocked assumes the playlist row is already locked by the caller's
// transaction.
func appendLocked(ctx context.Context, p repository.PlaylistRepository, s repository.SongRepository, playlistID, songID uuid.UUID, requester string) (bool, error) {
	song, err := s.GetSongForOwner(ctx, songID, requester)
	if err != nil {
		return false, err
	}
	if song == nil {
		return false, ErrSongNotFound
	}

	present, err := p.ContainsSong(ctx, playlistID, songID)
	if err != nil {
		return false, err
	}
	if present {
		return false, nil
	}

	next, err := p.NextPosition(ctx, playlistID)
	if err != nil {
		return false, err
	}
	if err := p.InsertMembership(ctx, playlistID, songID, next); err != nil {
		return false, err
	}
	return true, nil
}

// AppendSong adds songID at the end of the playlist. It returns false if the
// song is already a member. Both the playlist and the song must belong to
// requester.
func (e *Engine) AppendSong(ctx context.Context, playlistID, songID uuid.UUID, requester string) (bool, error) {
	var added bool
	err := e.inLockedTx(ctx, playlistID, requester, func(p repository.PlaylistRepository, s repository.SongRepository) error {
		var err error
		added, err = appendLocked(ctx, p, s, playlistID, songID, requester)
		return err
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

// AppendSongs appends every id in order within one transaction and returns
// how many were new. If any song cannot be added nothing is.
func (e *Engine) AppendSongs(ctx context.Context, playlistID uuid.UUID, requester string, songIDs []uuid.UUID) (int, error) {
	added := 0
	err := e.inLockedTx(ctx, playlistID, requester, func(p repository.PlaylistRepository, s repository.SongRepository) error {
		added = 0
		for _, id := range songIDs {
			ok, err := appendLocked(ctx, p, s, playlistID, id, requester)
			if err != nil {
				return err
			}
			if ok {
				added++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// CreatePlaylist creates a playlist owned by requester holding songIDs in
// the given order.
func (e *Engine) CreatePlaylist(ctx context.Context, requester, name string, songIDs []uuid.UUID) (*model.Playlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	pl := &model.Playlist{
		ID:        uuid.New(),
		Name:      name,
		Owner:     requester,
		CreatedAt: e.now().UTC().Truncate(time.Second),
	}
	err := e.inTx(ctx, func(p repository.PlaylistRepository, s repository.SongRepository) error {
		if err := p.CreatePlaylist(ctx, pl); err != nil {
			return err
		}
		for _, id := range songIDs {
			if _, err := appendLocked(ctx, p, s, pl.ID, id, requester); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("[Playlist] created",
		logger.String("playlistId", pl.ID.String()),
		logger.String("owner", requester),
		logger.Int("songs", len(songIDs)))
	return pl, nil
}

// distinct keeps the first occurrence of each id.
func distinct(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sameSet(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[uuid.UUID]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

// Reorder replaces the playlist order with order. Duplicates in order are
// dropped after their first occurrence; the remaining ids must be exactly
// the current members, otherwise ErrOrderMismatch is returned and nothing
// changes. The playlist is flagged as manually sorted.
func (e *Engine) Reorder(ctx context.Context, playlistID uuid.UUID, requester string, order []uuid.UUID) ([]*model.Song, error) {
	order = distinct(order)
	var songs []*model.Song
	err := e.inLockedTx(ctx, playlistID, requester, func(p repository.PlaylistRepository, _ repository.SongRepository) error {
		current, err := p.MemberIDs(ctx, playlistID)
		if err != nil {
			return err
		}
		if !sameSet(current, order) {
			return ErrOrderMismatch
		}

		if err := p.ClearMembership(ctx, playlistID); err != nil {
			return err
		}
		for pos, id := range order {
			if err := p.InsertMembership(ctx, playlistID, id, pos); err != nil {
				return err
			}
		}
		if err := p.SetManuallySorted(ctx, playlistID, true); err != nil {
			return err
		}

		songs, err = p.Songs(ctx, playlistID)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("[Playlist] reordered",
		logger.String("playlistId", playlistID.String()),
		logger.Int("songs", len(songs)))
	return songs, nil
}

func pageCount(members int) int {
	return (members + PageSize - 1) / PageSize
}

// PageCount is ceil(members / PageSize), 0 for an empty playlist.
func (e *Engine) PageCount(ctx context.Context, playlistID uuid.UUID, requester string) (int, error) {
	var pages int
	err := e.inTx(ctx, func(p repository.PlaylistRepository, _ repository.SongRepository) error {
		if _, err := ownedPlaylist(ctx, p, playlistID, requester); err != nil {
			return err
		}
		n, err := p.CountMembers(ctx, playlistID)
		if err != nil {
			return err
		}
		pages = pageCount(n)
		return nil
	})
	return pages, err
}

// Paginate returns page `page` of the playlist in position order. Page 0
// of an empty playlist is empty; any other page outside
// [0, PageCount) is ErrInvalidPage.
func (e *Engine) Paginate(ctx context.Context, playlistID uuid.UUID, requester string, page int) ([]*model.Song, error) {
	if page < 0 {
		return nil, ErrInvalidPage
	}
	var songs []*model.Song
	err := e.inTx(ctx, func(p repository.PlaylistRepository, _ repository.SongRepository) error {
		if _, err := ownedPlaylist(ctx, p, playlistID, requester); err != nil {
			return err
		}
		n, err := p.CountMembers(ctx, playlistID)
		if err != nil {
			return err
		}
		if n == 0 && page == 0 {
			songs = []*model.Song{}
			return nil
		}
		if page >= pageCount(n) {
			return ErrInvalidPage
		}
		songs, err = p.SongsPage(ctx, playlistID, PageSize, page*PageSize)
		return err
	})
	if err != nil {
		return nil, err
	}
	return songs, nil
}

// Songs returns every member in position order.
func (e *Engine) Songs(ctx context.Context, playlistID uuid.UUID, requester string) ([]*model.Song, error) {
	var songs []*model.Song
	err := e.inTx(ctx, func(p repository.PlaylistRepository, _ repository.SongRepository) error {
		if _, err := ownedPlaylist(ctx, p, playlistID, requester); err != nil {
			return err
		}
		var err error
		songs, err = p.Songs(ctx, playlistID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return songs, nil
}

// GetPlaylist returns the playlist if requester owns it.
func (e *Engine) GetPlaylist(ctx context.Context, playlistID uuid.UUID, requester string) (*model.Playlist, error) {
	pl, err := ownedPlaylist(ctx, e.playlists, playlistID, requester)
	if err != nil {
		if errors.Is(err, ErrPlaylistNotFound) {
			return nil, err
		}
		return nil, storageError(err)
	}
	return pl, nil
}

// ListPlaylists returns requester's playlists, newest first.
func (e *Engine) ListPlaylists(ctx context.Context, requester string) ([]*model.Playlist, error) {
	playlists, err := e.playlists.ListPlaylistsByOwner(ctx, requester)
	if err != nil {
		return nil, storageError(err)
	}
	return playlists, nil
}

// SongsNotInPlaylist lists requester's songs that could still be added.
func (e *Engine) SongsNotInPlaylist(ctx context.Context, playlistID uuid.UUID, requester string) ([]*model.Song, error) {
	if _, err := e.GetPlaylist(ctx, playlistID, requester); err != nil {
		return nil, err
	}
	songs, err := e.songs.ListSongsNotInPlaylist(ctx, requester, playlistID)
	if err != nil {
		return nil, storageError(err)
	}
	return songs, nil
}
