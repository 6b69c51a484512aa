package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/TheManchineel/titilda-music/cache"
	"github.com/TheManchineel/titilda-music/core/auth"
	"github.com/TheManchineel/titilda-music/core/ingest"
	"github.com/TheManchineel/titilda-music/core/playlist"
	"github.com/TheManchineel/titilda-music/logger"
	"github.com/TheManchineel/titilda-music/repository"
)

const (
	// SessionCookie carries the token for browser clients.
	SessionCookie = "titilda_music_login_token"

	maxJSONBody = 1 << 20

	msgTemporaryError = "Temporary error processing request"
	msgInvalidToken   = "Invalid or expired token"
)

// APIHandler serves every API endpoint.
type APIHandler struct {
	auth      *auth.Authority
	playlists *playlist.Engine
	ingest    *ingest.Service
	songRepo  repository.SongRepository
	genres    cache.GenreSource
	// secureCookies marks the session cookie Secure.
	secureCookies bool
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(
	authority *auth.Authority,
	playlists *playlist.Engine,
	ingestion *ingest.Service,
	songRepo repository.SongRepository,
	genres cache.GenreSource,
	secureCookies bool,
) *APIHandler {
	return &APIHandler{
		auth:          authority,
		playlists:     playlists,
		ingest:        ingestion,
		songRepo:      songRepo,
		genres:        genres,
		secureCookies: secureCookies,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("[HTTP] failed to write response", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps core errors to a status code and the message shown to
// clients. ok is false for unexpected errors.
func errorStatus(err error) (status int, msg string, ok bool) {
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, msgInvalidToken, true
	case errors.Is(err, auth.ErrRevocationFailed):
		return http.StatusInternalServerError, "Failed to invalidate sessions", true
	case errors.Is(err, playlist.ErrOrderMismatch):
		return http.StatusBadRequest, "Songs in playlist and reordered array must be the same", true
	case errors.Is(err, playlist.ErrInvalidPage):
		return http.StatusBadRequest, "Invalid page", true
	case errors.Is(err, playlist.ErrEmptyName):
		return http.StatusBadRequest, "Playlist name must not be empty", true
	case errors.Is(err, playlist.ErrPlaylistNotFound):
		return http.StatusNotFound, "Playlist not found", true
	case errors.Is(err, playlist.ErrSongNotFound):
		return http.StatusNotFound, "Song not found", true
	case errors.Is(err, ingest.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, "Unsupported audio format", true
	case errors.Is(err, ingest.ErrIngestionFailed):
		return http.StatusInternalServerError, "Failed to store song", true
	case errors.Is(err, ingest.ErrAssetNotFound):
		return http.StatusNotFound, "Not found", true
	case errors.Is(err, context.Canceled):
		return 499, "Request cancelled", true
	}
	return http.StatusInternalServerError, msgTemporaryError, false
}

// writeDomainError logs unexpected errors under tag and writes the mapped
// response.
func writeDomainError(w http.ResponseWriter, tag string, err error) {
	status, msg, ok := errorStatus(err)
	if !ok || status >= http.StatusInternalServerError {
		logger.Error(tag+" request failed", logger.ErrorField(err))
	}
	writeError(w, status, msg)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
