// Package analysis measures the master output: magnitude spectrum and
// signal level, computed on demand from a ring buffer the audio thread
// writes into.
package analysis

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/maddyblue/go-dsp/fft"
)

const (
	// FFTSize is the analysis window; Spectrum returns FFTSize/2 bins.
	FFTSize = 2048
	// MinDecibels is reported for silent bins.
	MinDecibels = -140.0

	ringLen = FFTSize * 4
)

// Analyzer keeps the most recent mono output samples.
type Analyzer struct {
	mu         sync.Mutex
	sampleRate int
	ring       []float32
	writePos   int
	window     []float64
}

func New(sampleRate int) *Analyzer {
	w := make([]float64, FFTSize)
	for i := range w {
		w[i] = 0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(FFTSize-1)))
	}
	return &Analyzer{
		sampleRate: sampleRate,
		ring:       make([]float32, ringLen),
		window:     w,
	}
}

// WriteFrame records one stereo frame. Called from the audio thread.
func (a *Analyzer) WriteFrame(l, r float32) {
	a.mu.Lock()
	a.ring[a.writePos] = (l + r) * 0.5
	a.writePos = (a.writePos + 1) % ringLen
	a.mu.Unlock()
}

// Tap records a block of interleaved stereo samples.
func (a *Analyzer) Tap(samples []float32) {
	a.mu.Lock()
	for i := 0; i+1 < len(samples); i += 2 {
		a.ring[a.writePos] = (samples[i] + samples[i+1]) * 0.5
		a.writePos = (a.writePos + 1) % ringLen
	}
	a.mu.Unlock()
}

// Reset forgets everything written so far.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	clear(a.ring)
	a.writePos = 0
	a.mu.Unlock()
}

// Snapshot copies the latest n mono samples, oldest first.
func (a *Analyzer) Snapshot(n int) []float64 {
	if n > ringLen {
		n = ringLen
	}
	out := make([]float64, n)
	a.mu.Lock()
	start := (a.writePos - n + ringLen) % ringLen
	for i := 0; i < n; i++ {
		out[i] = float64(a.ring[(start+i)%ringLen])
	}
	a.mu.Unlock()
	return out
}

// Spectrum returns FFTSize/2 magnitude bins in dB, floored at MinDecibels.
// Bin i is centred on i*sampleRate/FFTSize Hz.
func (a *Analyzer) Spectrum() []float64 {
	samples := a.Snapshot(FFTSize)
	for i := range samples {
		samples[i] *= a.window[i]
	}
	bins := fft.FFTReal(samples)
	out := make([]float64, FFTSize/2)
	for i := range out {
		// scale so a full-scale sine peaks near 0 dB
		mag := cmplx.Abs(bins[i]) * 4 / FFTSize
		out[i] = toDB(mag)
	}
	return out
}

// Level returns the RMS level of the latest window in dB.
func (a *Analyzer) Level() float64 {
	samples := a.Snapshot(FFTSize)
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return toDB(math.Sqrt(sum / float64(len(samples))))
}

// BinFrequency returns the centre frequency of bin i in Hz.
func (a *Analyzer) BinFrequency(i int) float64 {
	return float64(i) * float64(a.sampleRate) / FFTSize
}

func toDB(mag float64) float64 {
	if mag <= 0 {
		return MinDecibels
	}
	return math.Max(MinDecibels, 20*math.Log10(mag))
}
