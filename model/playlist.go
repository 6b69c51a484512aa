package model

import (
	"time"

	"github.com/google/uuid"
)

// Playlist is an ordered collection of songs owned by one user.
type Playlist struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Owner            string    `json:"owner"`
	CreatedAt        time.Time `json:"createdAt"`
	IsManuallySorted bool      `json:"isManuallySorted"`
}

// PlaylistSong is one membership row. Positions are dense per playlist.
type PlaylistSong struct {
	PlaylistID uuid.UUID `json:"playlistId"`
	SongID     uuid.UUID `json:"songId"`
	Position   int       `json:"position"`
}
