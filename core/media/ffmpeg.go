package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/TheManchineel/titilda-music/logger"
)

// FFmpegProcessor shells out to ffmpeg and ffprobe.
type FFmpegProcessor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor. ffprobe is expected
// next to ffmpeg.
func NewFFmpegProcessor(ffmpegPath string) *FFmpegProcessor {
	return &FFmpegProcessor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: strings.Replace(ffmpegPath, "ffmpeg", "ffprobe", 1),
	}
}

// scaleFilter shrinks the image so neither side exceeds maxDim, keeping the
// aspect ratio. Smaller images keep their size.
func scaleFilter(maxDim int) string {
	return fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease", maxDim, maxDim)
}

// Transcode converts an image to webp bounded by maxDim x maxDim.
func (p *FFmpegProcessor) Transcode(ctx context.Context, image []byte, maxDim int) ([]byte, error) {
	if len(image) == 0 {
		return nil, errors.New("empty image")
	}
	if maxDim <= 0 {
		return nil, fmt.Errorf("invalid max dimension %d", maxDim)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-vf", scaleFilter(maxDim),
		"-frames:v", "1",
		"-c:v", "libwebp",
		"-f", "webp",
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	cmd.Stdin = bytes.NewReader(image)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	logger.Debug("[Media] transcoding artwork",
		logger.Int("inputBytes", len(image)),
		logger.Int("maxDim", maxDim))

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg execution failed: %w\nFFmpeg Error: %s", err, stderr.String())
	}
	if out.Len() == 0 {
		return nil, errors.New("ffmpeg produced no output")
	}
	return out.Bytes(), nil
}
