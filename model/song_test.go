package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestParseAudioMimeType(t *testing.T) {
	tests := []struct {
		in      string
		want    AudioMimeType
		wantExt string
		wantErr bool
	}{
		{in: "audio/mpeg", want: AudioMP3, wantExt: "mp3"},
		{in: "audio/wav", want: AudioWAV, wantExt: "wav"},
		{in: "AUDIO/OGG", want: AudioOGG, wantExt: "ogg"},
		{in: "audio/flac; rate=44100", want: AudioFLAC, wantExt: "flac"},
		{in: "audio/aac", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAudioMimeType(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.wantExt, got.Extension())

			back, ok := AudioMimeTypeForExtension("." + tt.wantExt)
			require.True(t, ok)
			require.Equal(t, tt.want, back)
		})
	}
}

func TestSongBlobKeys(t *testing.T) {
	id := uuid.MustParse("0b9d6f0e-3f55-4a6a-9c0e-1f7c0f3f2a10")
	s := &Song{ID: id, AudioMimeType: AudioFLAC}

	require.Equal(t, "0b9d6f0e-3f55-4a6a-9c0e-1f7c0f3f2a10.flac", s.AudioKey())
	require.Equal(t, "0b9d6f0e-3f55-4a6a-9c0e-1f7c0f3f2a10.webp", s.ArtworkKey())
}
