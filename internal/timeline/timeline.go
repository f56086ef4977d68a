// Package timeline flattens a Composition into absolute-time note events.
// It is the one place where musical time becomes seconds.
package timeline

import (
	"fmt"
	"sort"

	"github.com/cbegin/beatsmith-go/internal/notation"
	"github.com/cbegin/beatsmith-go/internal/score"
)

// Event is one schedulable note.
type Event struct {
	Layer      int // index into Timeline.Layers
	Index      int // index of the source note in its layer
	Instrument score.Instrument
	Note       int     // MIDI note number
	Start      float64 // seconds from loop start
	Duration   float64 // seconds
	Velocity   float64 // 0..1
}

// End is the release time of e in seconds.
func (e Event) End() float64 { return e.Start + e.Duration }

// Layer is an included layer with its converted notes, in note order.
type Layer struct {
	Name       string
	Instrument score.Instrument
	Events     []Event
}

// Timeline is the converted form of one loop.
type Timeline struct {
	BPM    float64
	Length float64 // loop length in seconds
	Layers []Layer
}

// Warning records a note that was skipped.
type Warning struct {
	Layer string
	Index int
	Note  score.NoteEvent
	Err   error
}

func (w Warning) String() string {
	return fmt.Sprintf("layer %q note %d (%s @ %s): %v", w.Layer, w.Index, w.Note.Note, w.Note.Time, w.Err)
}

// Build converts the layers of c selected by filter. Notes whose tokens do
// not parse, or that start outside the loop window, are skipped and
// reported as warnings; sibling notes are unaffected.
func Build(c *score.Composition, filter string) (*Timeline, []Warning, error) {
	layers, err := c.Select(filter)
	if err != nil {
		return nil, nil, err
	}
	tl := &Timeline{
		BPM:    c.BPM,
		Length: score.LoopSeconds(c.BPM),
		Layers: make([]Layer, 0, len(layers)),
	}
	var warnings []Warning
	for li, ml := range layers {
		layer := Layer{Name: ml.Name, Instrument: ml.Instrument}
		for ni, n := range ml.Notes {
			ev, err := convert(n, c.BPM, tl.Length)
			if err != nil {
				warnings = append(warnings, Warning{Layer: ml.Name, Index: ni, Note: n, Err: err})
				continue
			}
			ev.Layer = li
			ev.Index = ni
			ev.Instrument = ml.Instrument
			layer.Events = append(layer.Events, ev)
		}
		sort.SliceStable(layer.Events, func(i, j int) bool {
			return layer.Events[i].Start < layer.Events[j].Start
		})
		tl.Layers = append(tl.Layers, layer)
	}
	return tl, warnings, nil
}

func convert(n score.NoteEvent, bpm float64, length float64) (Event, error) {
	note, err := notation.ParsePitch(n.Note)
	if err != nil {
		return Event{}, err
	}
	start, err := notation.ParseTime(n.Time, bpm)
	if err != nil {
		return Event{}, err
	}
	if start >= length {
		return Event{}, fmt.Errorf("%w: start %.3fs outside %.3fs loop", notation.ErrBadToken, start, length)
	}
	dur, err := notation.ParseDuration(n.Duration, bpm)
	if err != nil {
		return Event{}, err
	}
	return Event{Note: note, Start: start, Duration: dur, Velocity: n.Velocity}, nil
}

// EventCount returns the number of events across all layers.
func (tl *Timeline) EventCount() int {
	n := 0
	for _, l := range tl.Layers {
		n += len(l.Events)
	}
	return n
}

// Frame converts seconds to a sample frame index at sampleRate.
func Frame(seconds float64, sampleRate int) int64 {
	return int64(seconds*float64(sampleRate) + 0.5)
}
