package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// Muxer combines separately fetched audio and video streams into one
// container without re-encoding.
type Muxer interface {
	Mux(ctx context.Context, videoPath, audioPath, outPath string) error
}

// FFmpegMuxer shells out to an external stream-copy tool. The tool is a
// black box: two input paths in, one container out; a non-zero exit or
// a missing output file is a failure.
type FFmpegMuxer struct {
	Path string
}

func NewFFmpegMuxer(path string) *FFmpegMuxer {
	return &FFmpegMuxer{Path: path}
}

func (m *FFmpegMuxer) Mux(ctx context.Context, videoPath, audioPath, outPath string) error {
	if _, err := os.Stat(videoPath); err != nil {
		return fmt.Errorf("video stream missing: %w", err)
	}
	if _, err := os.Stat(audioPath); err != nil {
		return fmt.Errorf("audio stream missing: %w", err)
	}

	cmd := exec.CommandContext(ctx, m.Path, "-y", "-i", videoPath, "-i", audioPath, "-c", "copy", outPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("mux tool failed: %w: %s", err, lastLine(stderr.Bytes()))
	}

	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("mux tool produced no output file: %w", err)
	}

	return nil
}

func lastLine(b []byte) string {
	b = bytes.TrimSpace(b)
	if i := bytes.LastIndexByte(b, '\n'); i >= 0 {
		b = b[i+1:]
	}
	return string(b)
}
