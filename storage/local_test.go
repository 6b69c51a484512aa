package storage

import (
	"context"
	"testing"

	"github.com/TheManchineel/titilda-music/config"

	"github.com/stretchr/testify/require"
)

func TestLocalBlobStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "song.mp3", []byte("ID3"), "audio/mpeg"))

	data, err := store.Get(ctx, "song.mp3")
	require.NoError(t, err)
	require.Equal(t, []byte("ID3"), data)

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "song.mp3", []byte("ID3v2"), "audio/mpeg"))
		data, err := store.Get(ctx, "song.mp3")
		require.NoError(t, err)
		require.Equal(t, []byte("ID3v2"), data)
	})

	t.Run("list", func(t *testing.T) {
		objects, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, objects, 1)
		require.Equal(t, "song.mp3", objects[0].Key)
		require.EqualValues(t, 5, objects[0].Size)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "song.mp3"))
		require.NoError(t, store.Delete(ctx, "song.mp3"))
		_, err := store.Get(ctx, "song.mp3")
		require.ErrorIs(t, err, ErrBlobNotFound)
	})

	t.Run("keys cannot escape the directory", func(t *testing.T) {
		for _, key := range []string{"", "..", "../etc/passwd", "a/b.mp3", `a\b.mp3`} {
			require.ErrorIs(t, store.Put(ctx, key, nil, ""), ErrInvalidKey, key)
			_, err := store.Get(ctx, key)
			require.ErrorIs(t, err, ErrInvalidKey, key)
		}
	})
}

func TestSummarize(t *testing.T) {
	stats := Summarize([]ObjectInfo{
		{Key: "a.mp3", Size: 2048},
		{Key: "a.webp", Size: 512},
		{Key: "b.flac", Size: 1 << 20},
	})
	require.Equal(t, 3, stats.TotalObjects)
	require.EqualValues(t, 2048+512+1<<20, stats.TotalSize)
	require.EqualValues(t, 512, stats.BytesByType["image/webp"])
	require.Equal(t, "1.0 MB", FormatSize(1<<20))
	require.Equal(t, "512 B", FormatSize(512))
}

func TestOpenSelectsBackend(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(context.Background(), &config.Config{BlobBackend: "local", BlobDir: dir})
	require.NoError(t, err)
	require.IsType(t, &LocalBlobStore{}, store)

	_, err = Open(context.Background(), &config.Config{BlobBackend: "s3"})
	require.Error(t, err)
}
