package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/TheManchineel/titilda-music/config"
	"github.com/TheManchineel/titilda-music/logger"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// ConnectDB opens the MySQL pool and checks that the server is reachable.
func ConnectDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	conn.SetMaxIdleConns(10)
	conn.SetMaxOpenConns(100)
	conn.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("[DB] connected",
		logger.String("host", cfg.DBHost),
		logger.String("database", cfg.DBName))
	return conn, nil
}

// schema is valid for both MySQL and SQLite. Watermarks are unix seconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username VARCHAR(64) NOT NULL PRIMARY KEY,
		password_hash VARCHAR(255) NOT NULL,
		full_name VARCHAR(256) NOT NULL,
		last_session_invalidation BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS genres (
		name VARCHAR(64) NOT NULL PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS songs (
		id CHAR(36) NOT NULL PRIMARY KEY,
		title VARCHAR(256) NOT NULL,
		album VARCHAR(256) NOT NULL,
		artist VARCHAR(256) NOT NULL,
		genre VARCHAR(64) NOT NULL,
		release_year INT NOT NULL,
		audio_mime_type VARCHAR(32) NOT NULL,
		has_artwork BOOLEAN NOT NULL DEFAULT FALSE,
		owner VARCHAR(64) NOT NULL,
		CONSTRAINT fk_songs_owner FOREIGN KEY (owner) REFERENCES users(username) ON DELETE CASCADE,
		CONSTRAINT fk_songs_genre FOREIGN KEY (genre) REFERENCES genres(name)
	)`,
	`CREATE TABLE IF NOT EXISTS playlists (
		id CHAR(36) NOT NULL PRIMARY KEY,
		name VARCHAR(256) NOT NULL,
		owner VARCHAR(64) NOT NULL,
		created_at DATETIME NOT NULL,
		is_manually_sorted BOOLEAN NOT NULL DEFAULT FALSE,
		CONSTRAINT fk_playlists_owner FOREIGN KEY (owner) REFERENCES users(username) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS playlist_songs (
		playlist_id CHAR(36) NOT NULL,
		song_id CHAR(36) NOT NULL,
		position INT NOT NULL,
		PRIMARY KEY (playlist_id, song_id),
		CONSTRAINT uq_playlist_position UNIQUE (playlist_id, position),
		CONSTRAINT fk_membership_playlist FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
		CONSTRAINT fk_membership_song FOREIGN KEY (song_id) REFERENCES songs(id) ON DELETE CASCADE
	)`,
}

// InitSchema creates every table that does not exist yet.
func InitSchema(ctx context.Context, conn *sql.DB) error {
	for _, stmt := range schema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	logger.Info("[DB] schema initialized", logger.Int("tables", len(schema)))
	return nil
}
