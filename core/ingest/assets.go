package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/TheManchineel/titilda-music/logger"
	"github.com/TheManchineel/titilda-music/model"
	"github.com/TheManchineel/titilda-music/storage"

	"github.com/google/uuid"
)

// ErrAssetNotFound hides whether the blob is missing or belongs to someone
// else.
var ErrAssetNotFound = errors.New("asset not found")

// Asset is a song blob ready to be served.
type Asset struct {
	Data        []byte
	ContentType string
}

func songIDFromKey(key string) (uuid.UUID, bool) {
	dot := strings.IndexByte(key, '.')
	if dot < 0 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(key[:dot])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Asset returns the audio or artwork blob stored under key if the song
// belongs to requester.
func (s *Service) Asset(ctx context.Context, key, requester string) (*Asset, error) {
	id, ok := songIDFromKey(key)
	if !ok {
		return nil, ErrAssetNotFound
	}
	song, err := s.songs.GetSongForOwner(ctx, id, requester)
	if err != nil {
		return nil, err
	}
	if song == nil {
		return nil, ErrAssetNotFound
	}

	var contentType string
	switch {
	case key == song.AudioKey():
		contentType = string(song.AudioMimeType)
	case song.HasArtwork && key == song.ArtworkKey():
		contentType = "image/webp"
	default:
		return nil, ErrAssetNotFound
	}

	data, err := s.blobs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			logger.Warn("[Ingest] song row without blob", logger.String("key", key))
			return nil, ErrAssetNotFound
		}
		return nil, err
	}
	return &Asset{Data: data, ContentType: contentType}, nil
}

// CollectOrphans deletes blobs whose song row does not exist. Blobs newer
// than grace are skipped because an ingestion may still be about to commit
// their row. With dryRun nothing is deleted. It returns the orphaned keys.
func (s *Service) CollectOrphans(ctx context.Context, grace time.Duration, dryRun bool) ([]string, error) {
	objects, err := s.blobs.List(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-grace)
	var orphans []string
	for _, o := range objects {
		if o.LastModified.After(cutoff) {
			continue
		}
		id, ok := songIDFromKey(o.Key)
		if !ok {
			continue
		}
		exists, err := s.songs.SongExists(ctx, id)
		if err != nil {
			return orphans, fmt.Errorf("failed to check song of %s: %w", o.Key, err)
		}
		if exists {
			continue
		}
		orphans = append(orphans, o.Key)
		if dryRun {
			continue
		}
		if err := s.blobs.Delete(ctx, o.Key); err != nil {
			return orphans, err
		}
		logger.Info("[Ingest] orphaned blob deleted", logger.String("key", o.Key), logger.Int64("bytes", o.Size))
	}
	return orphans, nil
}

// ArtworkURL is the public path of a song's artwork, or "" without one.
func ArtworkURL(song *model.Song) string {
	if !song.HasArtwork {
		return ""
	}
	return "/static/" + song.ArtworkKey()
}

// AudioURL is the public path of a song's audio.
func AudioURL(song *model.Song) string {
	return "/static/" + song.AudioKey()
}
