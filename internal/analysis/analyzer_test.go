package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSilenceIsFloored(t *testing.T) {
	a := New(44100)
	spec := a.Spectrum()
	require.Len(t, spec, FFTSize/2)
	for _, v := range spec {
		require.Equal(t, MinDecibels, v)
	}
	assert.Equal(t, MinDecibels, a.Level())
}

func TestSinePeaksAtItsBin(t *testing.T) {
	const sr = 44100
	a := New(sr)
	bin := 100
	freq := a.BinFrequency(bin)
	for i := 0; i < FFTSize*2; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/sr))
		a.WriteFrame(v, v)
	}
	spec := a.Spectrum()
	peak := 0
	for i := range spec {
		if spec[i] > spec[peak] {
			peak = i
		}
	}
	assert.Equal(t, bin, peak)
	assert.InDelta(t, -6, spec[peak], 1.5)
	assert.InDelta(t, 20*math.Log10(0.5/math.Sqrt2), a.Level(), 0.1)
}

func TestTapAveragesChannels(t *testing.T) {
	a := New(44100)
	a.Tap([]float32{1, 0, 0.5, 0.5, -1, 0})
	assert.Equal(t, []float64{0.5, 0.5, -0.5}, a.Snapshot(3))
	a.Reset()
	assert.Equal(t, []float64{0, 0, 0}, a.Snapshot(3))
}

func TestSnapshotWraps(t *testing.T) {
	a := New(44100)
	for i := 0; i < ringLen+10; i++ {
		a.WriteFrame(float32(i), float32(i))
	}
	snap := a.Snapshot(4)
	assert.Equal(t, []float64{ringLen + 6, ringLen + 7, ringLen + 8, ringLen + 9}, snap)
}
