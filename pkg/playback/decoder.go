package playback

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/weareedt/organic/pkg/audioio"
)

// Decoder converts an encoded audio payload (mp3 from the synthesis
// relay) into PCM16 at a fixed output format.
type Decoder interface {
	Decode(ctx context.Context, data []byte) ([]int16, error)
}

// FFmpegDecoder decodes compressed audio by piping it through ffmpeg.
type FFmpegDecoder struct {
	command    string
	sampleRate int
	channels   int
}

// NewFFmpegDecoder creates a decoder that emits PCM16 at the given
// output format.
func NewFFmpegDecoder(sampleRate, channels int) *FFmpegDecoder {
	return &FFmpegDecoder{
		command:    "ffmpeg",
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// Decode runs the payload through ffmpeg and returns interleaved PCM16.
func (d *FFmpegDecoder) Decode(ctx context.Context, data []byte) ([]int16, error) {
	cmd := exec.CommandContext(ctx, d.command,
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(d.sampleRate),
		"-ac", strconv.Itoa(d.channels),
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("ffmpeg: %w: %s", err, stderr.String())}
	}

	samples := audioio.BytesToSamples(stdout.Bytes())
	if len(samples) == 0 {
		return nil, &DecodeError{Err: fmt.Errorf("ffmpeg produced no samples")}
	}
	return samples, nil
}

var _ Decoder = (*FFmpegDecoder)(nil)
