package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/TheManchineel/titilda-music/logger"
	"github.com/TheManchineel/titilda-music/model"

	"github.com/go-redis/redis/v8"
)

const genresKey = "titilda:genres"

// GenreSource is the authoritative genre list.
type GenreSource interface {
	ListGenres(ctx context.Context) ([]model.Genre, error)
}

// GenreCache is a read-through Redis cache in front of a GenreSource.
// Redis failures degrade to reading the source directly.
type GenreCache struct {
	client *redis.Client
	source GenreSource
	ttl    time.Duration
}

// NewGenreCache wraps source. A nil client disables caching.
func NewGenreCache(client *redis.Client, source GenreSource, ttl time.Duration) *GenreCache {
	return &GenreCache{client: client, source: source, ttl: ttl}
}

func (c *GenreCache) ListGenres(ctx context.Context) ([]model.Genre, error) {
	if c.client == nil {
		return c.source.ListGenres(ctx)
	}

	raw, err := c.client.Get(ctx, genresKey).Bytes()
	switch {
	case err == nil:
		var genres []model.Genre
		if err := json.Unmarshal(raw, &genres); err == nil {
			return genres, nil
		}
		logger.Warn("[Cache] discarding undecodable genre list")
	case errors.Is(err, redis.Nil):
		// miss
	default:
		logger.Warn("[Cache] genre lookup failed", logger.ErrorField(err))
	}

	genres, err := c.source.ListGenres(ctx)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(genres); err == nil {
		if err := c.client.Set(ctx, genresKey, payload, c.ttl).Err(); err != nil {
			logger.Warn("[Cache] genre store failed", logger.ErrorField(err))
		}
	}
	return genres, nil
}

// Invalidate drops the cached list, e.g. after seeding new genres.
func (c *GenreCache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, genresKey).Err()
}
