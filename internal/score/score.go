package score

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Loop geometry shared by every consumer of a Composition.
const (
	BarsPerLoop = 4
	BeatsPerBar = 4
)

// Tempo bounds.
const (
	MinBPM = 40.0
	MaxBPM = 300.0
)

var (
	ErrInvalidComposition = errors.New("invalid composition")
	ErrTempoLocked        = errors.New("tempo already reconciled")
	ErrLayerNotFound      = errors.New("layer not found")
)

// Instrument identifies the synthesis recipe, routing tap and GM program
// a layer is bound to.
type Instrument string

const (
	Bell   Instrument = "bell"
	Piano  Instrument = "piano"
	String Instrument = "string"
	Bass   Instrument = "bass"
	Lead   Instrument = "lead"
	Pad    Instrument = "pad"
	Brass  Instrument = "brass"
)

// Instruments is the configured instrument set, in mixer order.
var Instruments = []Instrument{Bell, Piano, String, Bass, Lead, Pad, Brass}

// Known reports whether inst is part of the configured set.
func (inst Instrument) Known() bool {
	for _, known := range Instruments {
		if inst == known {
			return true
		}
	}
	return false
}

type NoteEvent struct {
	Note     string  `json:"note"`
	Time     string  `json:"time"`
	Duration string  `json:"duration"`
	Velocity float64 `json:"velocity"`
}

type MelodyLayer struct {
	Name       string      `json:"name"`
	Instrument Instrument  `json:"instrument"`
	Notes      []NoteEvent `json:"notes"`
}

// Composition is one generated 4-bar loop. It is replaced wholesale, never
// edited; only the tempo may be reconciled once.
type Composition struct {
	ID        string        `json:"id"`
	Producer  string        `json:"producer"`
	Category  string        `json:"category"`
	Vibe      string        `json:"vibe"`
	Key       string        `json:"key"`
	BPM       float64       `json:"bpm"`
	Layers    []MelodyLayer `json:"layers"`
	CreatedAt int64         `json:"createdAt"`

	tempoLocked bool
}

// LoopBeats is the number of beats in one loop cycle.
func LoopBeats() float64 {
	return BarsPerLoop * BeatsPerBar
}

// LoopSeconds returns the wall-clock length of one loop at bpm.
func LoopSeconds(bpm float64) float64 {
	return (60 / bpm) * BeatsPerBar * BarsPerLoop
}

// Duration is the loop length of c in seconds.
func (c *Composition) Duration() float64 {
	return LoopSeconds(c.BPM)
}

// ReconcileTempo overwrites the tempo. It may only be done once per
// composition.
func (c *Composition) ReconcileTempo(bpm float64) error {
	if c.tempoLocked {
		return ErrTempoLocked
	}
	if !validBPM(bpm) {
		return fmt.Errorf("%w: bpm %.2f outside [%.0f, %.0f]", ErrInvalidComposition, bpm, MinBPM, MaxBPM)
	}
	c.BPM = bpm
	c.tempoLocked = true
	return nil
}

// validBPM is false for NaN as well as out-of-range tempos.
func validBPM(bpm float64) bool {
	return bpm >= MinBPM && bpm <= MaxBPM
}

// Layer returns the first layer named name.
func (c *Composition) Layer(name string) (*MelodyLayer, error) {
	for i := range c.Layers {
		if c.Layers[i].Name == name {
			return &c.Layers[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrLayerNotFound, name)
}

// Select returns the layers included by filter. An empty filter selects
// every layer.
func (c *Composition) Select(filter string) ([]MelodyLayer, error) {
	if filter == "" {
		return c.Layers, nil
	}
	layer, err := c.Layer(filter)
	if err != nil {
		return nil, err
	}
	return []MelodyLayer{*layer}, nil
}

// Instruments lists the distinct instruments used by c in layer order.
func (c *Composition) Instruments() []Instrument {
	seen := make(map[Instrument]struct{}, len(c.Layers))
	var out []Instrument
	for _, layer := range c.Layers {
		if _, ok := seen[layer.Instrument]; ok {
			continue
		}
		seen[layer.Instrument] = struct{}{}
		out = append(out, layer.Instrument)
	}
	return out
}

// Validate checks the structural contract. Token-level problems inside
// notes are not structural; renderers skip those notes individually.
func (c *Composition) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil composition", ErrInvalidComposition)
	}
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidComposition)
	}
	if !validBPM(c.BPM) {
		return fmt.Errorf("%w: bpm %.2f outside [%.0f, %.0f]", ErrInvalidComposition, c.BPM, MinBPM, MaxBPM)
	}
	if c.Layers == nil {
		return fmt.Errorf("%w: missing layers", ErrInvalidComposition)
	}
	for i, layer := range c.Layers {
		if strings.TrimSpace(layer.Name) == "" {
			return fmt.Errorf("%w: layer %d has no name", ErrInvalidComposition, i)
		}
		if strings.TrimSpace(string(layer.Instrument)) == "" {
			return fmt.Errorf("%w: layer %q has no instrument", ErrInvalidComposition, layer.Name)
		}
		for j, n := range layer.Notes {
			if !(n.Velocity >= 0 && n.Velocity <= 1) {
				return fmt.Errorf("%w: layer %q note %d velocity %.3f outside [0, 1]", ErrInvalidComposition, layer.Name, j, n.Velocity)
			}
		}
	}
	return nil
}

var whitespace = regexp.MustCompile(`\s+`)

// Filename derives an export filename: the producer (or id) with whitespace
// collapsed to underscores, an instrument suffix for single-layer exports,
// and ext.
func Filename(c *Composition, layer *MelodyLayer, ext string) string {
	base := strings.TrimSpace(c.Producer)
	if base == "" {
		base = c.ID
	}
	base = whitespace.ReplaceAllString(base, "_")
	if layer != nil {
		base += "_" + string(layer.Instrument)
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return base + ext
}
