package recorder

import (
	"bytes"
	"math"
	"testing"

	"github.com/weareedt/organic/pkg/audioio"
)

func TestOpusRateSelection(t *testing.T) {
	tests := []struct {
		capture int
		want    int
	}{
		{8000, 8000},
		{11025, 12000},
		{16000, 16000},
		{22050, 24000},
		{24000, 24000},
		{44100, 48000},
		{48000, 48000},
		{96000, 48000},
	}
	for _, tt := range tests {
		if got := opusRate(tt.capture); got != tt.want {
			t.Errorf("opusRate(%d) = %d, want %d", tt.capture, got, tt.want)
		}
	}
}

func sineChunk(sampleRate, n int) audioio.AudioChunk {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(0.4 * 32767 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}
	return audioio.AudioChunk{Samples: samples, SampleRate: sampleRate, Channels: 1}
}

func TestEncodeProducesOggSegment(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
	}{
		{"native rate", 16000},
		{"resampled rate", 44100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewOggOpusEncoder(tt.sampleRate, 1)

			// 100ms of tone split across chunks, the way capture delivers it.
			chunkLen := tt.sampleRate / 50
			chunks := []audioio.AudioChunk{
				sineChunk(tt.sampleRate, chunkLen),
				sineChunk(tt.sampleRate, chunkLen),
				sineChunk(tt.sampleRate, chunkLen),
				sineChunk(tt.sampleRate, chunkLen),
				sineChunk(tt.sampleRate, chunkLen),
			}

			segment, err := enc.Encode(chunks)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if len(segment) == 0 {
				t.Fatal("expected non-empty segment")
			}
			if !bytes.HasPrefix(segment, []byte("OggS")) {
				t.Errorf("segment does not start with an ogg page header")
			}
		})
	}
}
