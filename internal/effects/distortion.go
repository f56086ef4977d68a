package effects

import "math"

// Distortion is a memoryless waveshaper. amount 0..1 sets the curve
// steepness; the input is clipped to [-1, 1] before shaping.
type Distortion struct {
	k    float64
	wet  float32
	norm float64
}

// NewDistortion creates a waveshaping distortion.
// amount: drive 0..1
// wet: wet/dry mix 0..1
func NewDistortion(amount, wet float32) *Distortion {
	k := float64(clamp(amount, 0, 1)) * 100
	d := &Distortion{k: k, wet: clamp(wet, 0, 1)}
	d.norm = 1 / d.curve(1)
	return d
}

func (d *Distortion) curve(x float64) float64 {
	const deg = math.Pi / 180
	return (3 + d.k) * x * 20 * deg / (math.Pi + d.k*math.Abs(x))
}

func (d *Distortion) shape(v float32) float32 {
	x := math.Max(-1, math.Min(1, float64(v)))
	return float32(d.curve(x) * d.norm)
}

func (d *Distortion) Process(l, r float32) (float32, float32) {
	return l*(1-d.wet) + d.shape(l)*d.wet, r*(1-d.wet) + d.shape(r)*d.wet
}

// Reset is a no-op; the shaper is stateless.
func (d *Distortion) Reset() {}
