package recorder

import (
	"bytes"
	"fmt"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
	"gopkg.in/hraban/opus.v2"

	"github.com/weareedt/organic/pkg/audioio"
)

// SegmentEncoder packages captured PCM chunks into an upload-ready
// audio container.
type SegmentEncoder interface {
	Encode(chunks []audioio.AudioChunk) ([]byte, error)
}

const (
	// opusFrameMs is the opus frame duration. 20ms is the codec sweet
	// spot for speech.
	opusFrameMs = 20

	// rtpClockRate is the opus RTP clock. Always 48kHz regardless of
	// the capture rate.
	rtpClockRate = 48000

	opusPayloadType = 111
	maxPacketSize   = 1500
)

// OggOpusEncoder encodes PCM16 audio into an ogg/opus container.
// Capture rates opus does not accept are resampled to the nearest
// supported rate before framing.
type OggOpusEncoder struct {
	captureRate int
	encodeRate  int
	channels    int
}

// NewOggOpusEncoder creates an encoder for the given capture format.
// Any capture rate works; mono audio at a rate opus rejects (anything
// other than 8, 12, 16, 24 or 48 kHz) is resampled on Encode.
func NewOggOpusEncoder(sampleRate, channels int) *OggOpusEncoder {
	return &OggOpusEncoder{
		captureRate: sampleRate,
		encodeRate:  opusRate(sampleRate),
		channels:    channels,
	}
}

// opusRate maps an arbitrary capture rate to the nearest rate opus
// accepts, rounding up so speech never loses bandwidth.
func opusRate(rate int) int {
	for _, r := range []int{8000, 12000, 16000, 24000} {
		if rate <= r {
			return r
		}
	}
	return 48000
}

// Encode compresses the chunks into a single ogg/opus segment.
func (e *OggOpusEncoder) Encode(chunks []audioio.AudioChunk) ([]byte, error) {
	enc, err := opus.NewEncoder(e.encodeRate, e.channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("recorder: create opus encoder: %w", err)
	}

	var buf bytes.Buffer
	ogg, err := oggwriter.NewWith(&buf, uint32(e.encodeRate), uint16(e.channels))
	if err != nil {
		return nil, fmt.Errorf("recorder: create ogg writer: %w", err)
	}

	frameSize := e.encodeRate * opusFrameMs / 1000 * e.channels
	pcm := flatten(chunks)
	if e.encodeRate != e.captureRate {
		// The linear resampler works on a single stream of samples, so
		// interleaved multi-channel audio must already be at a legal rate.
		if e.channels != 1 {
			return nil, fmt.Errorf("recorder: cannot resample %d-channel audio from %d Hz", e.channels, e.captureRate)
		}
		pcm = audioio.Resample(pcm, e.captureRate, e.encodeRate)
	}

	packet := make([]byte, maxPacketSize)
	frame := make([]int16, frameSize)
	var seq uint16
	var ts uint32
	const tsStep = rtpClockRate * opusFrameMs / 1000

	for off := 0; off < len(pcm); off += frameSize {
		n := copy(frame, pcm[off:])
		for i := n; i < frameSize; i++ {
			frame[i] = 0
		}

		written, err := enc.Encode(frame, packet)
		if err != nil {
			return nil, fmt.Errorf("recorder: opus encode: %w", err)
		}

		payload := make([]byte, written)
		copy(payload, packet[:written])

		err = ogg.WriteRTP(&rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    opusPayloadType,
				SequenceNumber: seq,
				Timestamp:      ts,
			},
			Payload: payload,
		})
		if err != nil {
			return nil, fmt.Errorf("recorder: write ogg page: %w", err)
		}

		seq++
		ts += tsStep
	}

	if err := ogg.Close(); err != nil {
		return nil, fmt.Errorf("recorder: close ogg writer: %w", err)
	}
	return buf.Bytes(), nil
}

func flatten(chunks []audioio.AudioChunk) []int16 {
	total := 0
	for _, c := range chunks {
		total += len(c.Samples)
	}
	out := make([]int16, 0, total)
	for _, c := range chunks {
		out = append(out, c.Samples...)
	}
	return out
}

var _ SegmentEncoder = (*OggOpusEncoder)(nil)
