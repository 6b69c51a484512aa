package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/TheManchineel/titilda-music/core/ingest"
	"github.com/TheManchineel/titilda-music/logger"
	"github.com/TheManchineel/titilda-music/model"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	maxTextField    = 256
	maxYearField    = 8
	maxArtworkBytes = 2 << 20
	maxAudioBytes   = 50 << 20
	// maxUploadBytes bounds the whole multipart body.
	maxUploadBytes   = maxAudioBytes + maxArtworkBytes + 64<<10
	multipartMemory  = 8 << 20
	contentTypeSniff = 512
)

var artworkTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

var errFieldTooLarge = errors.New("field too large")

// SongResponse is a song plus the paths its blobs are served from.
type SongResponse struct {
	*model.Song
	AudioURL   string `json:"audioUrl"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
}

func songResponse(song *model.Song) SongResponse {
	return SongResponse{Song: song, AudioURL: ingest.AudioURL(song), ArtworkURL: ingest.ArtworkURL(song)}
}

func songResponses(songs []*model.Song) []SongResponse {
	out := make([]SongResponse, 0, len(songs))
	for _, s := range songs {
		out = append(out, songResponse(s))
	}
	return out
}

// ListSongsHandler lists the requester's songs, optionally only those not
// yet in the playlist named by excludePlaylist.
func (h *APIHandler) ListSongsHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	if exclude := r.URL.Query().Get("excludePlaylist"); exclude != "" {
		playlistID, err := uuid.Parse(exclude)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid playlist ID")
			return
		}
		songs, err := h.playlists.SongsNotInPlaylist(r.Context(), playlistID, user.Username)
		if err != nil {
			writeDomainError(w, "[Songs]", err)
			return
		}
		writeJSON(w, http.StatusOK, songResponses(songs))
		return
	}

	songs, err := h.songRepo.ListSongsByOwner(r.Context(), user.Username)
	if err != nil {
		writeDomainError(w, "[Songs]", err)
		return
	}
	writeJSON(w, http.StatusOK, songResponses(songs))
}

// GetSongHandler returns one song of the requester.
func (h *APIHandler) GetSongHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "Song not found")
		return
	}

	song, err := h.songRepo.GetSongForOwner(r.Context(), id, user.Username)
	if err != nil {
		writeDomainError(w, "[Songs]", err)
		return
	}
	if song == nil {
		writeError(w, http.StatusNotFound, "Song not found")
		return
	}
	writeJSON(w, http.StatusOK, songResponse(song))
}

// textField returns the trimmed value of a form field of at most limit bytes.
func textField(form *multipart.Form, name string, limit int) (string, error) {
	values := form.Value[name]
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	if len(values[0]) > limit {
		return "", fmt.Errorf("%s: %w", name, errFieldTooLarge)
	}
	return strings.TrimSpace(values[0]), nil
}

// readFilePart reads the named file part. It returns nil data if the part
// is absent.
func readFilePart(form *multipart.Form, name string, limit int64) (data []byte, contentType string, err error) {
	files := form.File[name]
	if len(files) == 0 {
		return nil, "", nil
	}
	header := files[0]
	if header.Size > limit {
		return nil, "", fmt.Errorf("%s: %w", name, errFieldTooLarge)
	}
	f, err := header.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err = io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("%s: %w", name, errFieldTooLarge)
	}
	return data, header.Header.Get("Content-Type"), nil
}

// sniffArtwork returns the detected image type, or "" if it is not one of
// the accepted formats.
func sniffArtwork(data []byte) string {
	head := data
	if len(head) > contentTypeSniff {
		head = head[:contentTypeSniff]
	}
	ct := http.DetectContentType(head)
	if artworkTypes[ct] {
		return ct
	}
	return ""
}

func (h *APIHandler) genreExists(r *http.Request, name string) (bool, error) {
	genres, err := h.genres.ListGenres(r.Context())
	if err != nil {
		return false, err
	}
	for _, g := range genres {
		if g.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// UploadSongHandler creates a song from a multipart upload.
func (h *APIHandler) UploadSongHandler(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()
	form := r.MultipartForm

	var meta ingest.SongMetadata
	var err error
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"songName", &meta.Title},
		{"artist", &meta.Artist},
		{"albumName", &meta.Album},
		{"genre", &meta.Genre},
	} {
		if *f.dst, err = textField(form, f.name, maxTextField); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	year, err := textField(form, "albumYear", maxYearField)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if meta.ReleaseYear, err = strconv.Atoi(year); err != nil {
		writeError(w, http.StatusBadRequest, "albumYear must be a number")
		return
	}

	ok, err := h.genreExists(r, meta.Genre)
	if err != nil {
		writeDomainError(w, "[Upload]", err)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown genre")
		return
	}

	audio, audioType, err := readFilePart(form, "songFile", maxAudioBytes)
	if err != nil {
		if errors.Is(err, errFieldTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Song file too large")
			return
		}
		writeDomainError(w, "[Upload]", err)
		return
	}
	if len(audio) == 0 {
		writeError(w, http.StatusBadRequest, "songFile is required")
		return
	}

	artwork, _, err := readFilePart(form, "artwork", maxArtworkBytes)
	if err != nil {
		if errors.Is(err, errFieldTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Artwork too large")
			return
		}
		writeDomainError(w, "[Upload]", err)
		return
	}
	if len(artwork) > 0 && sniffArtwork(artwork) == "" {
		writeError(w, http.StatusUnsupportedMediaType, "Unsupported artwork format")
		return
	}

	song, err := h.ingest.CreateSong(r.Context(), meta, audio, audioType, artwork, user.Username)
	if err != nil {
		writeDomainError(w, "[Upload]", err)
		return
	}

	logger.Info("[Upload] song uploaded",
		logger.String("songId", song.ID.String()),
		logger.String("username", user.Username))
	writeJSON(w, http.StatusCreated, songResponse(song))
}

// GenresHandler lists the known genres.
func (h *APIHandler) GenresHandler(w http.ResponseWriter, r *http.Request) {
	genres, err := h.genres.ListGenres(r.Context())
	if err != nil {
		writeDomainError(w, "[Genres]", err)
		return
	}
	writeJSON(w, http.StatusOK, genres)
}
