package graph

import (
	"math"
	"sync/atomic"
)

// RampTime is the length in seconds of every gain change.
const RampTime = 0.03

// Param is a control value written from any goroutine and read once per
// frame on the audio thread, where it glides linearly to its target over
// RampTime.
type Param struct {
	target  atomic.Uint64 // math.Float64bits
	current float64
	aim     float64
	step    float64
	frames  float64
}

// NewParam returns a param resting at value.
func NewParam(value float64, sampleRate int) *Param {
	p := &Param{
		current: value,
		aim:     value,
		frames:  math.Max(1, RampTime*float64(sampleRate)),
	}
	p.target.Store(math.Float64bits(value))
	return p
}

// Set schedules a ramp to v.
func (p *Param) Set(v float64) {
	p.target.Store(math.Float64bits(v))
}

// Target returns the most recently set value.
func (p *Param) Target() float64 {
	return math.Float64frombits(p.target.Load())
}

// Next advances the ramp by one frame and returns the current value.
// Only the audio thread may call Next.
func (p *Param) Next() float64 {
	if t := p.Target(); t != p.aim {
		p.aim = t
		p.step = (t - p.current) / p.frames
	}
	if p.current == p.aim {
		return p.current
	}
	p.current += p.step
	if (p.step > 0 && p.current >= p.aim) || (p.step < 0 && p.current <= p.aim) {
		p.current = p.aim
	}
	return p.current
}

// Jump moves the param to its target without ramping.
func (p *Param) Jump() {
	p.aim = p.Target()
	p.current = p.aim
	p.step = 0
}

// DBToGain converts decibels to linear amplitude.
func DBToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

func clampDB(db, lo, hi float64) float64 {
	if math.IsNaN(db) {
		return 0
	}
	return math.Max(lo, math.Min(hi, db))
}
