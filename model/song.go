package model

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AudioMimeType is the closed set of accepted audio formats.
type AudioMimeType string

const (
	AudioMP3  AudioMimeType = "audio/mpeg"
	AudioWAV  AudioMimeType = "audio/wav"
	AudioOGG  AudioMimeType = "audio/ogg"
	AudioFLAC AudioMimeType = "audio/flac"
)

// ArtworkExtension is the extension of every stored artwork blob.
const ArtworkExtension = "webp"

var audioExtensions = map[AudioMimeType]string{
	AudioMP3:  "mp3",
	AudioWAV:  "wav",
	AudioOGG:  "ogg",
	AudioFLAC: "flac",
}

// ParseAudioMimeType returns the enum value for s. Parameters such as
// "; codecs=..." are ignored.
func ParseAudioMimeType(s string) (AudioMimeType, error) {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	m := AudioMimeType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := audioExtensions[m]; !ok {
		return "", fmt.Errorf("unsupported audio mime type %q", s)
	}
	return m, nil
}

// Extension returns the file extension bound to m, or "" if m is unknown.
func (m AudioMimeType) Extension() string {
	return audioExtensions[m]
}

// AudioMimeTypeForExtension is the reverse of Extension.
func AudioMimeTypeForExtension(ext string) (AudioMimeType, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for m, e := range audioExtensions {
		if e == ext {
			return m, true
		}
	}
	return "", false
}

// Song is an uploaded track. Blob keys derive from ID and AudioMimeType.
type Song struct {
	ID            uuid.UUID     `json:"id"`
	Title         string        `json:"title"`
	Album         string        `json:"album"`
	Artist        string        `json:"artist"`
	Genre         string        `json:"genre"`
	ReleaseYear   int           `json:"releaseYear"`
	AudioMimeType AudioMimeType `json:"audioMimeType"`
	HasArtwork    bool          `json:"hasArtwork"`
	Owner         string        `json:"owner"`
}

// AudioKey is the blob key of the song's audio, "{id}.{ext}".
func (s *Song) AudioKey() string {
	return AudioKey(s.ID, s.AudioMimeType)
}

// ArtworkKey is the blob key of the song's artwork, "{id}.webp".
func (s *Song) ArtworkKey() string {
	return ArtworkKey(s.ID)
}

func AudioKey(id uuid.UUID, m AudioMimeType) string {
	return id.String() + "." + m.Extension()
}

func ArtworkKey(id uuid.UUID) string {
	return id.String() + "." + ArtworkExtension
}
