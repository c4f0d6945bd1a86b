package playback

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// WindowSize is the number of samples analysed per tick.
const WindowSize = 256

// Band indices for the Levels triple.
const (
	BandBass = iota
	BandMid
	BandHigh
)

// Analyser computes coarse frequency band levels from a PCM window.
// The spectrum is split into bass (bottom 10% of bins), mid (next 40%)
// and high (the rest), each averaged and normalized to [0, 1].
type Analyser struct {
	window []float64
}

// NewAnalyser creates an analyser with a Hann window.
func NewAnalyser() *Analyser {
	w := make([]float64, WindowSize)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(WindowSize-1)))
	}
	return &Analyser{window: w}
}

// Bands returns the band levels for one window of samples. Windows
// shorter than WindowSize are zero-padded.
func (a *Analyser) Bands(samples []int16) [3]float64 {
	in := make([]float64, WindowSize)
	for i := 0; i < WindowSize && i < len(samples); i++ {
		in[i] = float64(samples[i]) / 32768 * a.window[i]
	}

	spectrum := fft.FFTReal(in)

	nBins := WindowSize / 2
	bassEnd := nBins * 10 / 100
	midEnd := bassEnd + nBins*40/100

	var out [3]float64
	out[BandBass] = bandLevel(spectrum[:bassEnd])
	out[BandMid] = bandLevel(spectrum[bassEnd:midEnd])
	out[BandHigh] = bandLevel(spectrum[midEnd:nBins])
	return out
}

// bandLevel averages the normalized bin amplitudes and clamps to [0, 1].
func bandLevel(bins []complex128) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bins {
		sum += 2 * cmplxAbs(b) / WindowSize
	}
	level := sum / float64(len(bins))
	if level > 1 {
		level = 1
	}
	return level
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}
