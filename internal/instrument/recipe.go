package instrument

import "github.com/cbegin/beatsmith-go/internal/score"

// Algorithm is the oscillator topology of a recipe.
type Algorithm int

const (
	// Simple sums one or more (detuned) carriers.
	Simple Algorithm = iota
	// AM multiplies the carrier by a unipolar modulator.
	AM
	// FM phase-modulates the carrier with the modulator.
	FM
)

type Waveform int

const (
	Sine Waveform = iota
	Triangle
	Sawtooth
	Square
	Pulse
)

// Envelope is an ADSR in seconds (Sustain is a 0..1 level).
type Envelope struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

// Recipe is a pure description of a synthesis voice. Recipes hold no
// runtime state; everything mutable lives in the Voice built from them.
type Recipe struct {
	Algorithm   Algorithm
	Carrier     Waveform
	Modulator   Waveform
	Harmonicity float64 // modulator frequency ratio
	ModIndex    float64 // FM phase deviation in radians
	PulseWidth  float64 // duty cycle for Pulse carriers
	Count       int     // carriers per note for Simple voices
	Spread      float64 // total detune across Count carriers, in cents
	Amp         Envelope
	Mod         Envelope // modulation envelope for AM/FM
	Level       float64
}

// Recipes is the instrument table shared by live playback and offline
// rendering.
var Recipes = map[score.Instrument]Recipe{
	// metallic FM bell
	score.Bell: {
		Algorithm:   FM,
		Carrier:     Sine,
		Modulator:   Square,
		Harmonicity: 3.01,
		ModIndex:    14,
		Amp:         Envelope{Attack: 0.005, Decay: 0.5, Sustain: 0.1, Release: 2.5},
		Mod:         Envelope{Attack: 0.002, Decay: 0.3, Sustain: 0.2, Release: 0.5},
		Level:       0.22,
	},
	// rhodes-like keys
	score.Piano: {
		Algorithm:   AM,
		Carrier:     Triangle,
		Modulator:   Square,
		Harmonicity: 1.5,
		Amp:         Envelope{Attack: 0.02, Decay: 1.2, Sustain: 0.1, Release: 1.5},
		Mod:         Envelope{Attack: 0.5, Decay: 0, Sustain: 1, Release: 0.5},
		Level:       0.4,
	},
	score.String: {
		Algorithm: Simple,
		Carrier:   Sawtooth,
		Count:     3,
		Spread:    30,
		Amp:       Envelope{Attack: 1.5, Decay: 1, Sustain: 0.8, Release: 3},
		Level:     0.18,
	},
	// 808-style FM bass
	score.Bass: {
		Algorithm:   FM,
		Carrier:     Sine,
		Modulator:   Sawtooth,
		Harmonicity: 0.5,
		ModIndex:    15,
		Amp:         Envelope{Attack: 0.01, Decay: 0.4, Sustain: 0.9, Release: 1.2},
		Mod:         Envelope{Attack: 0.01, Decay: 0.25, Sustain: 0.15, Release: 0.5},
		Level:       0.35,
	},
	score.Lead: {
		Algorithm:   AM,
		Carrier:     Pulse,
		Modulator:   Square,
		Harmonicity: 2,
		PulseWidth:  0.2,
		Amp:         Envelope{Attack: 0.05, Decay: 0.2, Sustain: 0.4, Release: 1},
		Mod:         Envelope{Attack: 0.5, Decay: 0, Sustain: 1, Release: 0.5},
		Level:       0.25,
	},
	score.Pad: {
		Algorithm: Simple,
		Carrier:   Sine,
		Amp:       Envelope{Attack: 3, Decay: 1, Sustain: 1, Release: 5},
		Level:     0.3,
	},
	score.Brass: {
		Algorithm: Simple,
		Carrier:   Sawtooth,
		Amp:       Envelope{Attack: 0.1, Decay: 0.3, Sustain: 0.5, Release: 0.8},
		Level:     0.2,
	},
}

// DefaultRecipe is the plain voice used for unrecognized instruments.
var DefaultRecipe = Recipe{
	Algorithm: Simple,
	Carrier:   Triangle,
	Amp:       Envelope{Attack: 0.005, Decay: 0.1, Sustain: 0.3, Release: 1},
	Level:     0.3,
}

// RecipeFor returns the recipe for id. ok is false when id is unknown and
// the default recipe was substituted.
func RecipeFor(id score.Instrument) (r Recipe, ok bool) {
	if r, ok := Recipes[id]; ok {
		return r, true
	}
	return DefaultRecipe, false
}
