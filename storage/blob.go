package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

// ErrBlobNotFound is returned by Get when no blob is stored under the key.
var ErrBlobNotFound = errors.New("blob not found")

// ErrInvalidKey is returned for keys that are not a single flat name.
var ErrInvalidKey = errors.New("invalid blob key")

// BlobStore is flat binary storage addressed by string keys such as
// "{songId}.mp3" or "{songId}.webp".
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]ObjectInfo, error)
}

// ObjectInfo describes one stored blob.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return ErrInvalidKey
	}
	return nil
}

// ContentTypeForKey infers the content type from the key's extension.
func ContentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
