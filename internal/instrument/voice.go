package instrument

import (
	"math"

	"github.com/cbegin/beatsmith-go/internal/notation"
	"github.com/cbegin/beatsmith-go/internal/score"
)

const twoPi = math.Pi * 2

// Polyphony is the number of simultaneous notes per Voice.
const Polyphony = 16

const maxCarriers = 8

// centre-panned equal-power gain
var centreGain = math.Cos(math.Pi / 4)

// Source produces stereo frames.
type Source interface {
	RenderFrame() (float32, float32)
}

// Destination accepts sources; typically a mixer strip.
type Destination interface {
	Connect(src Source)
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

type envelope struct {
	spec    Envelope
	level   float64
	state   envState
	relStep float64
}

type note struct {
	active   bool
	id       int
	velocity float64
	freq     float64
	detune   [maxCarriers]float64 // frequency ratios
	phases   [maxCarriers]float64
	modPhase float64
	amp      envelope
	mod      envelope
}

// Voice is a polyphonic synthesizer for one instrument.
type Voice struct {
	instrument score.Instrument
	recipe     Recipe
	sampleRate float64
	carriers   int
	notes      []note
	nextID     int
}

// New builds the voice for id and connects it to dst. Unknown instruments
// get DefaultRecipe.
func New(id score.Instrument, sampleRate int, dst Destination) *Voice {
	recipe, _ := RecipeFor(id)
	v := NewFromRecipe(id, recipe, sampleRate)
	if dst != nil {
		dst.Connect(v)
	}
	return v
}

// NewFromRecipe builds an unconnected voice from an explicit recipe.
func NewFromRecipe(id score.Instrument, recipe Recipe, sampleRate int) *Voice {
	carriers := recipe.Count
	if carriers < 1 || recipe.Algorithm != Simple {
		carriers = 1
	}
	if carriers > maxCarriers {
		carriers = maxCarriers
	}
	return &Voice{
		instrument: id,
		recipe:     recipe,
		sampleRate: float64(sampleRate),
		carriers:   carriers,
		notes:      make([]note, Polyphony),
	}
}

func (v *Voice) Instrument() score.Instrument { return v.instrument }

func (v *Voice) Recipe() Recipe { return v.recipe }

// NoteOn starts midi at velocity (0..1) and returns a note id for NoteOff.
func (v *Voice) NoteOn(midi int, velocity float64) int {
	slot := v.steal()
	id := v.nextID
	v.nextID++
	n := note{
		active:   true,
		id:       id,
		velocity: clamp(velocity, 0, 1),
		freq:     notation.MIDIToFrequency(midi),
		amp:      envelope{spec: v.recipe.Amp},
		mod:      envelope{spec: v.recipe.Mod},
	}
	for i := 0; i < v.carriers; i++ {
		cents := 0.0
		if v.carriers > 1 {
			cents = -v.recipe.Spread/2 + v.recipe.Spread*float64(i)/float64(v.carriers-1)
		}
		n.detune[i] = math.Pow(2, cents/1200)
	}
	v.notes[slot] = n
	return id
}

// NoteOff moves the note into its release stage.
func (v *Voice) NoteOff(id int) {
	for i := range v.notes {
		n := &v.notes[i]
		if n.active && n.id == id {
			n.amp.release(v.sampleRate)
			n.mod.release(v.sampleRate)
		}
	}
}

// Silence cuts every note immediately.
func (v *Voice) Silence() {
	for i := range v.notes {
		v.notes[i] = note{}
	}
}

// ActiveNotes returns the number of sounding notes, release tails included.
func (v *Voice) ActiveNotes() int {
	n := 0
	for i := range v.notes {
		if v.notes[i].active {
			n++
		}
	}
	return n
}

func (v *Voice) RenderFrame() (float32, float32) {
	var out float64
	for i := range v.notes {
		n := &v.notes[i]
		if !n.active {
			continue
		}
		n.amp.advance(v.sampleRate)
		n.mod.advance(v.sampleRate)
		if n.amp.state == envOff {
			n.active = false
			continue
		}
		out += v.renderNote(n) * n.amp.level * n.velocity
		v.advancePhases(n)
	}
	s := float32(out * v.recipe.Level * centreGain)
	return s, s
}

func (v *Voice) renderNote(n *note) float64 {
	r := &v.recipe
	switch r.Algorithm {
	case FM:
		mod := waveform(n.modPhase, r.Modulator, 0.5) * r.ModIndex * n.mod.level
		return waveform(n.phases[0]+mod, r.Carrier, r.PulseWidth)
	case AM:
		mod := (waveform(n.modPhase, r.Modulator, 0.5) + 1) * 0.5
		return waveform(n.phases[0], r.Carrier, r.PulseWidth) * mod * n.mod.level
	default:
		var s float64
		for i := 0; i < v.carriers; i++ {
			s += waveform(n.phases[i], r.Carrier, r.PulseWidth)
		}
		return s / math.Sqrt(float64(v.carriers))
	}
}

func (v *Voice) advancePhases(n *note) {
	for i := 0; i < v.carriers; i++ {
		n.phases[i] += twoPi * n.freq * n.detune[i] / v.sampleRate
		if n.phases[i] >= twoPi {
			n.phases[i] -= twoPi
		}
	}
	if v.recipe.Algorithm != Simple {
		n.modPhase += twoPi * n.freq * v.recipe.Harmonicity / v.sampleRate
		if n.modPhase >= twoPi {
			n.modPhase -= twoPi
		}
	}
}

// steal returns a free slot, or the quietest note's slot.
func (v *Voice) steal() int {
	for i := range v.notes {
		if !v.notes[i].active {
			return i
		}
	}
	quiet := 0
	minLevel := v.notes[0].amp.level
	for i := 1; i < len(v.notes); i++ {
		if v.notes[i].amp.level < minLevel {
			minLevel = v.notes[i].amp.level
			quiet = i
		}
	}
	return quiet
}

func (e *envelope) advance(sampleRate float64) {
	switch e.state {
	case envAttack:
		if e.spec.Attack <= 0 {
			e.level = 1
		} else {
			e.level += 1.0 / (e.spec.Attack * sampleRate)
		}
		if e.level >= 1 {
			e.level = 1
			e.state = envDecay
		}
	case envDecay:
		if e.spec.Decay <= 0 {
			e.level = e.spec.Sustain
		} else {
			e.level -= (1 - e.spec.Sustain) / (e.spec.Decay * sampleRate)
		}
		if e.level <= e.spec.Sustain {
			e.level = e.spec.Sustain
			e.state = envSustain
		}
	case envSustain:
		if e.level <= 0 {
			e.state = envOff
		}
	case envRelease:
		e.level -= e.relStep
		if e.level <= 0.0001 {
			e.level = 0
			e.state = envOff
		}
	case envOff:
		e.level = 0
	}
}

// release starts the release stage from the current level.
func (e *envelope) release(sampleRate float64) {
	if e.state == envRelease || e.state == envOff {
		return
	}
	e.state = envRelease
	if e.spec.Release <= 0 {
		e.relStep = e.level + 1
		return
	}
	e.relStep = e.level / (e.spec.Release * sampleRate)
}

func waveform(phase float64, w Waveform, width float64) float64 {
	p := math.Mod(phase, twoPi)
	if p < 0 {
		p += twoPi
	}
	switch w {
	case Triangle:
		return 2.0*math.Abs(2.0*p/twoPi-1.0) - 1.0
	case Sawtooth:
		return 1.0 - 2.0*p/twoPi
	case Square:
		if p < math.Pi {
			return 1.0
		}
		return -1.0
	case Pulse:
		if width <= 0 || width >= 1 {
			width = 0.5
		}
		if p < twoPi*width {
			return 1.0
		}
		return -1.0
	default:
		return math.Sin(p)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
