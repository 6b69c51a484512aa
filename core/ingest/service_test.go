package ingest

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/TheManchineel/titilda-music/db/dbtest"
	"github.com/TheManchineel/titilda-music/model"
	"github.com/TheManchineel/titilda-music/repository"
	"github.com/TheManchineel/titilda-music/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memBlobStore is an in-memory BlobStore with failure hooks.
type memBlobStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	modified  map[string]time.Time
	now       func() time.Time
	putErr    func(key string) error
	deleteErr func(key string) error
	deletes   []string
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{
		blobs:    make(map[string][]byte),
		modified: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (m *memBlobStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		if err := m.putErr(key); err != nil {
			return err
		}
	}
	m.blobs[key] = append([]byte(nil), data...)
	m.modified[key] = m.now()
	return nil
}

func (m *memBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrBlobNotFound
	}
	return data, nil
}

func (m *memBlobStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, key)
	if m.deleteErr != nil {
		if err := m.deleteErr(key); err != nil {
			return err
		}
	}
	delete(m.blobs, key)
	delete(m.modified, key)
	return nil
}

func (m *memBlobStore) List(_ context.Context) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ObjectInfo
	for k, v := range m.blobs {
		out = append(out, storage.ObjectInfo{Key: k, Size: int64(len(v)), LastModified: m.modified[k]})
	}
	return out, nil
}

func (m *memBlobStore) keysWithPrefix(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.blobs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys
}

type transcoderFunc func(ctx context.Context, image []byte, maxDim int) ([]byte, error)

func (f transcoderFunc) Transcode(ctx context.Context, image []byte, maxDim int) ([]byte, error) {
	return f(ctx, image, maxDim)
}

type checkerFunc func(ctx context.Context, audio []byte, mime model.AudioMimeType) error

func (f checkerFunc) CheckAudio(ctx context.Context, audio []byte, mime model.AudioMimeType) error {
	return f(ctx, audio, mime)
}

type fixture struct {
	conn    *sql.DB
	blobs   *memBlobStore
	service *Service
	maxDims []int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	dbtest.InsertUser(t, conn, "alice")
	dbtest.InsertUser(t, conn, "bob")

	f := &fixture{conn: conn, blobs: newMemBlobStore()}
	transcoder := transcoderFunc(func(_ context.Context, image []byte, maxDim int) ([]byte, error) {
		f.maxDims = append(f.maxDims, maxDim)
		return append([]byte("webp:"), image...), nil
	})
	f.service = NewService(conn, repository.NewMySQLSongRepository(conn), f.blobs, transcoder, 512)
	return f
}

func (f *fixture) songRows(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var n int
	require.NoError(t, f.conn.QueryRow("SELECT COUNT(*) FROM songs WHERE id = ?", id).Scan(&n))
	return n
}

var meta = SongMetadata{Title: "So What", Album: "Kind of Blue", Artist: "Miles Davis", Genre: "Jazz", ReleaseYear: 1959}

func TestCreateSong(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("audio only", func(t *testing.T) {
		song, err := f.service.CreateSong(ctx, meta, []byte("ID3"), "audio/mpeg", nil, "alice")
		require.NoError(t, err)
		require.False(t, song.HasArtwork)
		require.Equal(t, []string{song.ID.String() + ".mp3"}, f.blobs.keysWithPrefix(song.ID.String()))
		require.Equal(t, 1, f.songRows(t, song.ID))
	})

	t.Run("with artwork", func(t *testing.T) {
		song, err := f.service.CreateSong(ctx, meta, []byte("fLaC"), "audio/flac", []byte("png"), "alice")
		require.NoError(t, err)
		require.True(t, song.HasArtwork)
		require.Equal(t, []int{512}, f.maxDims)

		artwork, err := f.blobs.Get(ctx, song.ID.String()+".webp")
		require.NoError(t, err)
		require.Equal(t, []byte("webp:png"), artwork)

		audio, err := f.blobs.Get(ctx, song.ID.String()+".flac")
		require.NoError(t, err)
		require.Equal(t, []byte("fLaC"), audio)
	})

	t.Run("unsupported mime type", func(t *testing.T) {
		before := len(f.blobs.keysWithPrefix(""))
		_, err := f.service.CreateSong(ctx, meta, []byte("x"), "audio/aac", nil, "alice")
		require.ErrorIs(t, err, ErrUnsupportedMediaType)
		require.Len(t, f.blobs.keysWithPrefix(""), before)
	})
}

func TestCreateSongCompensation(t *testing.T) {
	ctx := context.Background()
	fixedID := uuid.MustParse("6a1f4c52-4c1b-4a49-8d8e-1a2b3c4d5e6f")
	errUpload := errors.New("bucket unavailable")

	tests := []struct {
		name        string
		setup       func(f *fixture)
		artwork     []byte
		owner       string
		wantDeletes []string
	}{
		{
			name:  "audio upload fails",
			setup: func(f *fixture) { f.blobs.putErr = func(string) error { return errUpload } },
			owner: "alice",
		},
		{
			name: "artwork transcode fails",
			setup: func(f *fixture) {
				f.service.transcoder = transcoderFunc(func(context.Context, []byte, int) ([]byte, error) {
					return nil, errors.New("corrupt image")
				})
			},
			artwork:     []byte("png"),
			owner:       "alice",
			wantDeletes: []string{fixedID.String() + ".mp3"},
		},
		{
			name: "artwork upload fails",
			setup: func(f *fixture) {
				f.blobs.putErr = func(key string) error {
					if strings.HasSuffix(key, ".webp") {
						return errUpload
					}
					return nil
				}
			},
			artwork:     []byte("png"),
			owner:       "alice",
			wantDeletes: []string{fixedID.String() + ".mp3", fixedID.String() + ".webp"},
		},
		{
			// The owner does not exist, so the foreign key rejects the row.
			name:        "database insert fails",
			artwork:     []byte("png"),
			owner:       "ghost",
			wantDeletes: []string{fixedID.String() + ".mp3", fixedID.String() + ".webp"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.service.newID = func() uuid.UUID { return fixedID }
			if tt.setup != nil {
				tt.setup(f)
			}

			song, err := f.service.CreateSong(ctx, meta, []byte("ID3"), "audio/mpeg", tt.artwork, tt.owner)
			require.ErrorIs(t, err, ErrIngestionFailed)
			require.Nil(t, song)
			require.Empty(t, f.blobs.keysWithPrefix(fixedID.String()))
			require.Zero(t, f.songRows(t, fixedID))
			require.Equal(t, tt.wantDeletes, f.blobs.deletes)
		})
	}
}

func TestCleanupFailureDoesNotMaskCause(t *testing.T) {
	f := newFixture(t)
	f.blobs.deleteErr = func(string) error { return errors.New("delete refused") }

	_, err := f.service.CreateSong(context.Background(), meta, []byte("ID3"), "audio/mpeg", nil, "ghost")
	require.ErrorIs(t, err, ErrIngestionFailed)
	require.NotContains(t, err.Error(), "delete refused")
	require.Len(t, f.blobs.deletes, 1)
}

func TestCleanupSurvivesCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.service.transcoder = transcoderFunc(func(context.Context, []byte, int) ([]byte, error) {
		cancel()
		return nil, context.Canceled
	})

	_, err := f.service.CreateSong(ctx, meta, []byte("ID3"), "audio/mpeg", []byte("png"), "alice")
	require.ErrorIs(t, err, ErrIngestionFailed)
	require.Empty(t, f.blobs.keysWithPrefix(""))
}

func TestAudioChecker(t *testing.T) {
	f := newFixture(t)
	f.service.WithAudioChecker(checkerFunc(func(_ context.Context, _ []byte, mime model.AudioMimeType) error {
		if mime != model.AudioOGG {
			return errors.New("codec mismatch")
		}
		return nil
	}))

	_, err := f.service.CreateSong(context.Background(), meta, []byte("ID3"), "audio/mpeg", nil, "alice")
	require.ErrorIs(t, err, ErrUnsupportedMediaType)
	require.Empty(t, f.blobs.keysWithPrefix(""))

	_, err = f.service.CreateSong(context.Background(), meta, []byte("OggS"), "audio/ogg", nil, "alice")
	require.NoError(t, err)
}
