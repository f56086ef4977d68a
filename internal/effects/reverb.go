package effects

import "math"

// Reverb implements a Schroeder-style reverb: four parallel comb filters
// per channel followed by two series allpass filters. Comb feedback is
// derived from the decay time (the time for the tail to fall by 60 dB).
type Reverb struct {
	left, right tank
	wet         float32
}

type tank struct {
	combs   [4]combFilter
	allpass [2]allpassFilter
}

type combFilter struct {
	buf []float32
	pos int
	fb  float32
}

type allpassFilter struct {
	buf []float32
	pos int
	fb  float32
}

// comb and allpass lengths in ms; the right channel is offset for width
var (
	combMs    = [4]float64{29.7, 37.1, 41.1, 43.7}
	allpassMs = [2]float64{5.0, 1.7}
)

const stereoSpreadMs = 0.52

// NewReverb creates a reverb effect.
// decaySec: RT60 in seconds
// wet: wet/dry mix 0..1
func NewReverb(sampleRate int, decaySec float64, wet float32) *Reverb {
	if decaySec < 0.1 {
		decaySec = 0.1
	}
	return &Reverb{
		left:  newTank(sampleRate, decaySec, 0),
		right: newTank(sampleRate, decaySec, stereoSpreadMs),
		wet:   clamp(wet, 0, 1),
	}
}

func newTank(sampleRate int, decaySec, spreadMs float64) tank {
	var t tank
	for i, ms := range combMs {
		ms += spreadMs
		n := maxInt(int(ms*float64(sampleRate)/1000), 1)
		// g = 10^(-3 * delay / RT60)
		g := math.Pow(10, -3*(ms/1000)/decaySec)
		t.combs[i] = combFilter{buf: make([]float32, n), fb: float32(g)}
	}
	for i, ms := range allpassMs {
		n := maxInt(int((ms+spreadMs)*float64(sampleRate)/1000), 1)
		t.allpass[i] = allpassFilter{buf: make([]float32, n), fb: 0.5}
	}
	return t
}

func (r *Reverb) Process(l, r2 float32) (float32, float32) {
	mono := (l + r2) * 0.5
	outL := r.left.process(mono)
	outR := r.right.process(mono)
	return l*(1-r.wet) + outL*r.wet, r2*(1-r.wet) + outR*r.wet
}

func (r *Reverb) Reset() {
	r.left.reset()
	r.right.reset()
}

func (t *tank) process(in float32) float32 {
	var out float32
	for i := range t.combs {
		out += t.combs[i].process(in)
	}
	out *= 0.25
	for i := range t.allpass {
		out = t.allpass[i].process(out)
	}
	return out
}

func (t *tank) reset() {
	for i := range t.combs {
		clear(t.combs[i].buf)
		t.combs[i].pos = 0
	}
	for i := range t.allpass {
		clear(t.allpass[i].buf)
		t.allpass[i].pos = 0
	}
}

func (c *combFilter) process(in float32) float32 {
	out := c.buf[c.pos]
	c.buf[c.pos] = in + out*c.fb
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpassFilter) process(in float32) float32 {
	bufOut := a.buf[a.pos]
	out := -in + bufOut
	a.buf[a.pos] = in + bufOut*a.fb
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
