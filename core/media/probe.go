package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/TheManchineel/titilda-music/model"
)

// ErrCodecMismatch is returned when the audio stream does not match the
// declared mime type.
var ErrCodecMismatch = errors.New("audio content does not match its mime type")

// acceptedCodecs lists the ffprobe codec names each mime type may carry.
var acceptedCodecs = map[model.AudioMimeType][]string{
	model.AudioMP3:  {"mp3"},
	model.AudioWAV:  {"pcm_"},
	model.AudioOGG:  {"vorbis", "opus", "flac"},
	model.AudioFLAC: {"flac"},
}

// CodecMatches reports whether codec is acceptable for mime.
func CodecMatches(mime model.AudioMimeType, codec string) bool {
	for _, prefix := range acceptedCodecs[mime] {
		if strings.HasPrefix(codec, prefix) {
			return true
		}
	}
	return false
}

// probeAudioCodec returns the codec name of the first audio stream.
func (p *FFmpegProcessor) probeAudioCodec(ctx context.Context, audio []byte) (string, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_name",
		"-of", "json",
		"pipe:0",
	}
	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	cmd.Stdin = bytes.NewReader(audio)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffprobe execution failed: %w\nFFprobe Error: %s", err, stderr.String())
	}

	var probeData struct {
		Streams []struct {
			CodecName string `json:"codec_name"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return "", fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}
	if len(probeData.Streams) == 0 {
		return "", errors.New("no audio streams found")
	}
	return probeData.Streams[0].CodecName, nil
}

// CheckAudio verifies that audio decodes as the declared mime type.
func (p *FFmpegProcessor) CheckAudio(ctx context.Context, audio []byte, mime model.AudioMimeType) error {
	codec, err := p.probeAudioCodec(ctx, audio)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCodecMismatch, err)
	}
	if !CodecMatches(mime, codec) {
		return fmt.Errorf("%w: %s is %s", ErrCodecMismatch, mime, codec)
	}
	return nil
}
