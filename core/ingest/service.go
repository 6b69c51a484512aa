// Package ingest creates songs across the blob store and the database.
//
// The two stores share no transaction, so CreateSong is a saga: blobs are
// written first and the song row is committed last. On failure every blob
// already written is deleted again. A crash between the two can orphan a
// blob but can never leave a row that points at a missing blob;
// CollectOrphans removes such leftovers.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/TheManchineel/titilda-music/db"
	"github.com/TheManchineel/titilda-music/logger"
	"github.com/TheManchineel/titilda-music/model"
	"github.com/TheManchineel/titilda-music/repository"
	"github.com/TheManchineel/titilda-music/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrIngestionFailed      = errors.New("failed to store song")
)

// cleanupTimeout bounds compensation, which runs even if the request
// context is already cancelled.
const cleanupTimeout = 30 * time.Second

// Transcoder turns arbitrary artwork into webp no larger than maxDim on
// either side.
type Transcoder interface {
	Transcode(ctx context.Context, image []byte, maxDim int) ([]byte, error)
}

// AudioChecker verifies uploaded audio against its declared type.
type AudioChecker interface {
	CheckAudio(ctx context.Context, audio []byte, mime model.AudioMimeType) error
}

// SongMetadata is the user-supplied part of a song.
type SongMetadata struct {
	Title       string
	Album       string
	Artist      string
	Genre       string
	ReleaseYear int
}

// Service owns song creation and the lifecycle of song blobs.
type Service struct {
	db         *sql.DB
	songs      repository.SongRepository
	blobs      storage.BlobStore
	transcoder Transcoder
	checker    AudioChecker
	maxDim     int
	newID      func() uuid.UUID
	now        func() time.Time
}

// NewService creates a Service. maxArtworkDim bounds transcoded artwork.
func NewService(conn *sql.DB, songs repository.SongRepository, blobs storage.BlobStore, transcoder Transcoder, maxArtworkDim int) *Service {
	return &Service{
		db:         conn,
		songs:      songs,
		blobs:      blobs,
		transcoder: transcoder,
		maxDim:     maxArtworkDim,
		newID:      uuid.New,
		now:        time.Now,
	}
}

// WithAudioChecker enables content checks of uploaded audio.
func (s *Service) WithAudioChecker(c AudioChecker) *Service {
	s.checker = c
	return s
}

// CreateSong stores audio, the optional artwork and the song row. artwork
// may be nil.
func (s *Service) CreateSong(ctx context.Context, meta SongMetadata, audio []byte, mimeType string, artwork []byte, owner string) (*model.Song, error) {
	mime, err := model.ParseAudioMimeType(mimeType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMediaType, err)
	}
	if s.checker != nil {
		if err := s.checker.CheckAudio(ctx, audio, mime); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedMediaType, err)
		}
	}

	song := &model.Song{
		ID:            s.newID(),
		Title:         meta.Title,
		Album:         meta.Album,
		Artist:        meta.Artist,
		Genre:         meta.Genre,
		ReleaseYear:   meta.ReleaseYear,
		AudioMimeType: mime,
		HasArtwork:    len(artwork) > 0,
		Owner:         owner,
	}
	fields := []zap.Field{logger.String("songId", song.ID.String()), logger.String("owner", owner)}

	if err := s.blobs.Put(ctx, song.AudioKey(), audio, string(mime)); err != nil {
		logger.Error("[Ingest] audio upload failed", append(fields, logger.ErrorField(err))...)
		return nil, fmt.Errorf("%w: %v", ErrIngestionFailed, err)
	}
	written := []string{song.AudioKey()}

	if song.HasArtwork {
		webp, err := s.transcoder.Transcode(ctx, artwork, s.maxDim)
		if err != nil {
			logger.Warn("[Ingest] artwork transcode failed", append(fields, logger.ErrorField(err))...)
			return nil, s.abort(ctx, written, err)
		}
		if err := s.blobs.Put(ctx, song.ArtworkKey(), webp, "image/webp"); err != nil {
			logger.Error("[Ingest] artwork upload failed", append(fields, logger.ErrorField(err))...)
			// A failed put may still have left a partial object behind.
			return nil, s.abort(ctx, append(written, song.ArtworkKey()), err)
		}
		written = append(written, song.ArtworkKey())
	}

	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.songs.WithTx(tx).CreateSong(ctx, song)
	})
	if err != nil {
		logger.Error("[Ingest] song insert failed", append(fields, logger.ErrorField(err))...)
		return nil, s.abort(ctx, written, err)
	}

	logger.Info("[Ingest] song created", append(fields,
		logger.String("mimeType", string(mime)),
		logger.Int("audioBytes", len(audio)),
		logger.Bool("artwork", song.HasArtwork))...)
	return song, nil
}

// abort deletes keys best-effort and returns the ingestion error for cause.
// Delete failures are logged only; cause is what the caller sees.
func (s *Service) abort(ctx context.Context, keys []string, cause error) error {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		if err := s.blobs.Delete(cleanupCtx, key); err != nil {
			logger.Warn("[Ingest] cleanup failed, blob left orphaned",
				logger.String("key", key), logger.ErrorField(err))
		}
	}
	return fmt.Errorf("%w: %v", ErrIngestionFailed, cause)
}
