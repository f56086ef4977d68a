package effects

import "github.com/cbegin/beatsmith-go/internal/lfo"

// Chorus implements a modulated delay for chorus/flanger effects. The left
// and right channels are swept in quadrature for stereo width.
type Chorus struct {
	bufL, bufR []float32
	pos        int
	size       int
	sampleRate float64
	modL, modR lfo.LFO // modulation in samples
	offset     int     // right channel lead in samples
	feedback   float32
	wet        float32
}

// NewChorus creates a chorus/flanger effect.
// delayMs: base delay time in ms (typically 5-30ms)
// feedback: feedback amount 0..1
// depthMs: modulation depth in ms
// rateHz: modulation rate in Hz (typically 0.1-5Hz)
// wet: wet/dry mix 0..1
func NewChorus(sampleRate int, delayMs, feedback, depthMs, rateHz, wet float32) *Chorus {
	baseSamples := int(float64(delayMs) * float64(sampleRate) / 1000.0)
	depthSamples := float64(depthMs) * float64(sampleRate) / 1000.0
	size := baseSamples + int(depthSamples) + 2
	if size < 4 {
		size = 4
	}
	c := &Chorus{
		bufL:       make([]float32, size),
		bufR:       make([]float32, size),
		size:       size,
		sampleRate: float64(sampleRate),
		modL:       lfo.New(depthSamples, float64(rateHz), lfo.WaveSine),
		modR:       lfo.New(depthSamples, float64(rateHz), lfo.WaveSine),
		feedback:   clamp(feedback, 0, 0.9),
		wet:        clamp(wet, 0, 1),
	}
	if rateHz > 0 {
		c.offset = int(c.sampleRate / float64(rateHz) / 4)
	}
	c.align()
	return c
}

// align puts the right channel sweep a quarter cycle ahead of the left.
func (c *Chorus) align() {
	for i := 0; i < c.offset; i++ {
		c.modR.Sample(c.sampleRate)
	}
}

func (c *Chorus) Process(l, r float32) (float32, float32) {
	c.bufL[c.pos] = l
	c.bufR[c.pos] = r

	delL := c.tap(c.bufL, float32(c.modL.Sample(c.sampleRate)))
	delR := c.tap(c.bufR, float32(c.modR.Sample(c.sampleRate)))

	c.bufL[c.pos] += delL * c.feedback
	c.bufR[c.pos] += delR * c.feedback

	c.pos++
	if c.pos >= c.size {
		c.pos = 0
	}
	return l*(1-c.wet) + delL*c.wet, r*(1-c.wet) + delR*c.wet
}

// tap reads buf with a fractional delay centred in the buffer.
func (c *Chorus) tap(buf []float32, mod float32) float32 {
	delay := float32(c.size/2) + mod
	readPos := float32(c.pos) - delay
	for readPos < 0 {
		readPos += float32(c.size)
	}
	idx := int(readPos) % c.size
	frac := readPos - float32(int(readPos))
	idx2 := idx + 1
	if idx2 >= c.size {
		idx2 = 0
	}
	return buf[idx]*(1-frac) + buf[idx2]*frac
}

func (c *Chorus) Reset() {
	for i := range c.bufL {
		c.bufL[i] = 0
		c.bufR[i] = 0
	}
	c.pos = 0
	c.modL.Reset()
	c.modR.Reset()
	c.align()
}
