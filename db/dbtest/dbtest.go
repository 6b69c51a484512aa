// Package dbtest provides an in-memory SQLite database carrying the
// production schema, for tests that need real SQL.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/TheManchineel/titilda-music/db"
	"github.com/TheManchineel/titilda-music/model"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// Open returns a migrated database with the default genres seeded. A single
// connection keeps the in-memory database alive and serializes transactions.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	return open(t, "file::memory:?_foreign_keys=on", 1)
}

// OpenShared returns a file-backed database served by several pooled
// connections, so transactions from different goroutines really run on
// different connections. Writers wait for each other instead of failing.
func OpenShared(t *testing.T, conns int) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") +
		"?_foreign_keys=on&_busy_timeout=10000&_txlock=immediate"
	return open(t, dsn, conns)
}

func open(t *testing.T, dsn string, conns int) *sql.DB {
	conn, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	conn.SetMaxOpenConns(conns)
	t.Cleanup(func() { conn.Close() })

	ctx := context.Background()
	require.NoError(t, db.InitSchema(ctx, conn))
	for _, g := range model.DefaultGenres {
		_, err := conn.ExecContext(ctx, "INSERT INTO genres (name) VALUES (?)", g)
		require.NoError(t, err)
	}
	return conn
}

// InsertUser adds a user with a throwaway password hash.
func InsertUser(t *testing.T, conn *sql.DB, username string) {
	t.Helper()
	_, err := conn.Exec(
		"INSERT INTO users (username, password_hash, full_name, last_session_invalidation) VALUES (?, ?, ?, ?)",
		username, "x", username, 0)
	require.NoError(t, err)
}

// InsertSong adds an mp3 song owned by owner and returns its id.
func InsertSong(t *testing.T, conn *sql.DB, owner, title string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := conn.Exec(
		`INSERT INTO songs (id, title, album, artist, genre, release_year, audio_mime_type, has_artwork, owner)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, title, "Album", "Artist", "Rock", 2001, string(model.AudioMP3), false, owner)
	require.NoError(t, err)
	return id
}
