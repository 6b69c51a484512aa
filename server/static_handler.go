package server

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// StaticHandler serves a song blob to its owner. Any failure to match the
// key to one of the requester's songs is a 404.
func (h *APIHandler) StaticHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	key := mux.Vars(r)["key"]

	asset, err := h.ingest.Asset(r.Context(), key, user.Username)
	if err != nil {
		writeDomainError(w, "[Static]", err)
		return
	}

	w.Header().Set("Content-Type", asset.ContentType)
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeContent(w, r, key, time.Time{}, bytes.NewReader(asset.Data))
}
