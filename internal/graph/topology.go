package graph

import "github.com/cbegin/beatsmith-go/internal/score"

// Stage names an entry point on the shared effect chain.
type Stage string

const (
	// StageColor is the head of the chain: delay, chorus and bitcrusher.
	StageColor Stage = "color"
	// StageDrive enters at the distortion.
	StageDrive Stage = "drive"
	// StageSpace enters at the reverb.
	StageSpace Stage = "space"
)

// Master gain bounds in dB.
const (
	MinMasterDB     = -60.0
	MaxMasterDB     = 6.0
	DefaultMasterDB = -10.0
)

// Topology is the pure description of the signal graph: effect settings
// and the tap each instrument feeds. Live playback and offline rendering
// both build from it.
type Topology struct {
	DelayTime     string // note value, resolved at the composition tempo
	DelayFeedback float32
	DelayWet      float32

	ChorusRate    float32 // Hz
	ChorusDelayMs float32
	ChorusDepth   float32 // fraction of ChorusDelayMs
	ChorusWet     float32

	CrushBits int
	CrushWet  float32

	Drive    float32
	DriveWet float32

	ReverbDecay float64 // seconds
	ReverbWet   float32

	Taps       map[score.Instrument]Stage
	DefaultTap Stage
}

// DefaultTopology returns the standard graph.
func DefaultTopology() Topology {
	return Topology{
		DelayTime:     "8n.",
		DelayFeedback: 0.4,
		DelayWet:      0.5,

		ChorusRate:    4,
		ChorusDelayMs: 2.5,
		ChorusDepth:   0.5,
		ChorusWet:     0.5,

		CrushBits: 4,
		CrushWet:  0.5,

		Drive:    0.5,
		DriveWet: 1,

		ReverbDecay: 5,
		ReverbWet:   0.5,

		Taps: map[score.Instrument]Stage{
			score.Bass:   StageDrive,
			score.String: StageSpace,
			score.Pad:    StageSpace,
		},
		DefaultTap: StageColor,
	}
}

// TapFor returns the stage id feeds.
func (t Topology) TapFor(id score.Instrument) Stage {
	if s, ok := t.Taps[id]; ok {
		return s
	}
	if t.DefaultTap == "" {
		return StageColor
	}
	return t.DefaultTap
}
