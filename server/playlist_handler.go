package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/TheManchineel/titilda-music/core/playlist"
	"github.com/TheManchineel/titilda-music/model"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// CreatePlaylistRequest is the body of POST /api/playlists.
type CreatePlaylistRequest struct {
	Name  string      `json:"name"`
	Songs []uuid.UUID `json:"songs"`
}

// PlaylistResponse is a playlist with its page count.
type PlaylistResponse struct {
	*model.Playlist
	PageCount int `json:"pageCount"`
}

func playlistID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "Playlist not found")
		return uuid.Nil, false
	}
	return id, true
}

// ListPlaylistsHandler lists the requester's playlists, newest first.
func (h *APIHandler) ListPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	playlists, err := h.playlists.ListPlaylists(r.Context(), user.Username)
	if err != nil {
		writeDomainError(w, "[Playlist]", err)
		return
	}
	if playlists == nil {
		playlists = []*model.Playlist{}
	}
	writeJSON(w, http.StatusOK, playlists)
}

// CreatePlaylistHandler creates a playlist with an initial song list.
func (h *APIHandler) CreatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	var req CreatePlaylistRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Name) > maxTextField {
		writeError(w, http.StatusBadRequest, "Playlist name too long")
		return
	}

	pl, err := h.playlists.CreatePlaylist(r.Context(), user.Username, req.Name, req.Songs)
	if err != nil {
		writeDomainError(w, "[Playlist]", err)
		return
	}
	pages, err := h.playlists.PageCount(r.Context(), pl.ID, user.Username)
	if err != nil {
		writeDomainError(w, "[Playlist]", err)
		return
	}
	writeJSON(w, http.StatusCreated, PlaylistResponse{Playlist: pl, PageCount: pages})
}

// GetPlaylistHandler returns playlist metadata and its page count.
func (h *APIHandler) GetPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id, ok := playlistID(w, r)
	if !ok {
		return
	}

	pl, err := h.playlists.GetPlaylist(r.Context(), id, user.Username)
	if err != nil {
		writeDomainError(w, "[Playlist]", err)
		return
	}
	pages, err := h.playlists.PageCount(r.Context(), id, user.Username)
	if err != nil {
		writeDomainError(w, "[Playlist]", err)
		return
	}
	writeJSON(w, http.StatusOK, PlaylistResponse{Playlist: pl, PageCount: pages})
}

// PlaylistSongsHandler returns one page of the playlist, or every song if
// no page is given.
func (h *APIHandler) PlaylistSongsHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id, ok := playlistID(w, r)
	if !ok {
		return
	}

	var songs []*model.Song
	var err error
	if raw := r.URL.Query().Get("page"); raw != "" {
		page, convErr := strconv.Atoi(raw)
		if convErr != nil {
			writeError(w, http.StatusBadRequest, "Invalid page")
			return
		}
		songs, err = h.playlists.Paginate(r.Context(), id, user.Username, page)
	} else {
		songs, err = h.playlists.Songs(r.Context(), id, user.Username)
	}
	if err != nil {
		writeDomainError(w, "[Playlist]", err)
		return
	}
	writeJSON(w, http.StatusOK, songResponses(songs))
}

// AddSongsHandler appends a JSON array of song ids in order.
func (h *APIHandler) AddSongsHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id, ok := playlistID(w, r)
	if !ok {
		return
	}
	var songIDs []uuid.UUID
	if !decodeJSON(w, r, &songIDs) {
		return
	}

	added, err := h.playlists.AppendSongs(r.Context(), id, user.Username, songIDs)
	if err != nil {
		if errors.Is(err, playlist.ErrSongNotFound) {
			writeError(w, http.StatusBadRequest, "Song not found")
			return
		}
		writeDomainError(w, "[Playlist]", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

// ReorderHandler replaces the playlist order with a JSON array holding
// exactly the current members.
func (h *APIHandler) ReorderHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id, ok := playlistID(w, r)
	if !ok {
		return
	}
	var order []uuid.UUID
	if !decodeJSON(w, r, &order) {
		return
	}

	songs, err := h.playlists.Reorder(r.Context(), id, user.Username, order)
	if err != nil {
		writeDomainError(w, "[Playlist]", err)
		return
	}
	writeJSON(w, http.StatusOK, songResponses(songs))
}
