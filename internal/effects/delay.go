package effects

// FeedbackDelay is a stereo echo whose repeats decay by feedback.
type FeedbackDelay struct {
	bufL, bufR []float32
	pos        int
	feedback   float32
	wet        float32
}

// NewFeedbackDelay creates a delay of delaySec seconds.
// feedback: amount of each repeat fed back 0..0.95
// wet: wet/dry mix 0..1
func NewFeedbackDelay(sampleRate int, delaySec float64, feedback, wet float32) *FeedbackDelay {
	samples := int(delaySec*float64(sampleRate) + 0.5)
	if samples < 1 {
		samples = 1
	}
	return &FeedbackDelay{
		bufL:     make([]float32, samples),
		bufR:     make([]float32, samples),
		feedback: clamp(feedback, 0, 0.95),
		wet:      clamp(wet, 0, 1),
	}
}

// Len returns the delay length in samples.
func (d *FeedbackDelay) Len() int { return len(d.bufL) }

func (d *FeedbackDelay) Process(l, r float32) (float32, float32) {
	delL := d.bufL[d.pos]
	delR := d.bufR[d.pos]
	d.bufL[d.pos] = l + delL*d.feedback
	d.bufR[d.pos] = r + delR*d.feedback
	d.pos++
	if d.pos >= len(d.bufL) {
		d.pos = 0
	}
	return l*(1-d.wet) + delL*d.wet, r*(1-d.wet) + delR*d.wet
}

func (d *FeedbackDelay) Reset() {
	clear(d.bufL)
	clear(d.bufR)
	d.pos = 0
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
