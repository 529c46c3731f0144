// Package transcode extracts the audio track from a downloaded video when no
// native audio variant was on offer. It shells out to ffmpeg; a missing
// binary or corrupt input fails the one delivery, never the process.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrFFmpegNotFound = errors.New("ffmpeg binary not found")

const (
	DefaultFFmpegPath = "ffmpeg"
	DefaultBitrate    = "192k"
	DefaultTimeout    = 10 * time.Minute
)

type Transcoder struct {
	FFmpegPath string
	// Bitrate for the extracted MP3 stream, e.g. "192k".
	Bitrate string
	// Timeout bounds a single ffmpeg run.
	Timeout time.Duration
	log     *zap.SugaredLogger
}

func New() *Transcoder {
	return &Transcoder{
		FFmpegPath: DefaultFFmpegPath,
		Bitrate:    DefaultBitrate,
		Timeout:    DefaultTimeout,
		log:        zap.S().Named("transcode"),
	}
}

// Available reports whether the ffmpeg binary can be found. Checked once at
// startup so the audio options can be hidden when transcoding is impossible.
func (t *Transcoder) Available() bool {
	_, err := exec.LookPath(t.FFmpegPath)
	return err == nil
}

// ToAudioOnly converts inputPath into an MP3 at outputPath, dropping the
// video stream. Any partial output is removed on failure.
func (t *Transcoder) ToAudioOnly(ctx context.Context, inputPath, outputPath string) error {
	if _, err := exec.LookPath(t.FFmpegPath); err != nil {
		return fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
	}
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	bitrate := t.Bitrate
	if bitrate == "" {
		bitrate = DefaultBitrate
	}
	args := []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", bitrate,
		outputPath,
	}
	cmd := exec.CommandContext(ctx, t.FFmpegPath, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	t.log.Debugw("transcoding", "input", inputPath, "output", outputPath, "bitrate", bitrate)
	if err := cmd.Run(); err != nil {
		_ = os.Remove(outputPath)
		t.log.Errorw("transcode failed", "input", inputPath, "error", err, "stderr", tail(stderr.String(), 500))
		return fmt.Errorf("transcode failed: %w", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("transcode produced no output: %w", err)
	}
	if info.Size() == 0 {
		_ = os.Remove(outputPath)
		return errors.New("transcode produced an empty file")
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
