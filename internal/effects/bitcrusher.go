package effects

import "math"

// BitCrusher quantizes the signal to a reduced bit depth.
type BitCrusher struct {
	step float32 // quantization step for a [-1, 1] signal
	wet  float32
}

// NewBitCrusher creates a bit crusher.
// bits: output resolution (1..16)
// wet: wet/dry mix 0..1
func NewBitCrusher(bits int, wet float32) *BitCrusher {
	if bits < 1 {
		bits = 1
	}
	if bits > 16 {
		bits = 16
	}
	return &BitCrusher{
		step: float32(2.0 / math.Pow(2, float64(bits))),
		wet:  clamp(wet, 0, 1),
	}
}

func (b *BitCrusher) Process(l, r float32) (float32, float32) {
	return l*(1-b.wet) + b.crush(l)*b.wet, r*(1-b.wet) + b.crush(r)*b.wet
}

func (b *BitCrusher) crush(v float32) float32 {
	return float32(math.Round(float64(v/b.step))) * b.step
}

// Reset is a no-op; BitCrusher holds no state.
func (b *BitCrusher) Reset() {}
