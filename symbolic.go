package beatsmith

import (
	"fmt"

	"github.com/cbegin/beatsmith-go/internal/midifile"
	"github.com/cbegin/beatsmith-go/internal/score"
	"github.com/cbegin/beatsmith-go/internal/timeline"
)

// GMPrograms maps instruments to General MIDI program numbers.
var GMPrograms = map[score.Instrument]uint8{
	score.Bell:   10, // music box
	score.Piano:  0,
	score.String: 48,
	score.Bass:   38, // synth bass 1
	score.Lead:   81, // saw lead
	score.Pad:    89, // warm pad
	score.Brass:  62, // synth brass
}

// Program returns the GM program for id, or 0 for unknown instruments.
func Program(id score.Instrument) uint8 {
	return GMPrograms[id]
}

// MIDIExport is an encoded Standard MIDI File.
type MIDIExport struct {
	Data     []byte
	Filename string
	Tracks   int
	Warnings []Warning
}

// ExportMIDI encodes the layers of c selected by layer (all when empty)
// as a format 1 MIDI file with one track per layer. Times and pitches go
// through the same conversion as the renderers. Notes too long for the
// file's tick range are skipped with a warning.
func ExportMIDI(c *score.Composition, layer string) (*MIDIExport, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	tl, warnings, err := timeline.Build(c, layer)
	if err != nil {
		return nil, err
	}
	if len(tl.Layers) == 0 {
		return nil, fmt.Errorf("%w: no layers to export", ErrInvalidComposition)
	}
	f := &midifile.File{
		Name:   fmt.Sprintf("%s - %s", c.Producer, c.Vibe),
		BPM:    c.BPM,
		Meter:  [2]uint8{score.BeatsPerBar, 4},
		Tracks: make([]midifile.Track, 0, len(tl.Layers)),
	}
	sources, err := c.Select(layer)
	if err != nil {
		return nil, err
	}
	var selected *score.MelodyLayer
	if layer != "" {
		if selected, err = c.Layer(layer); err != nil {
			return nil, err
		}
		f.Name = fmt.Sprintf("%s - %s", c.Producer, selected.Name)
	}
	for i, l := range tl.Layers {
		tr := midifile.Track{
			Name:       l.Name,
			Instrument: string(l.Instrument),
			Program:    Program(l.Instrument),
			Channel:    midifile.Channel(i),
			Notes:      make([]midifile.Note, 0, len(l.Events)),
		}
		for _, ev := range l.Events {
			tick, length := midifile.Ticks(ev.Start, tl.BPM), midifile.Ticks(ev.Duration, tl.BPM)
			if !midifile.InRange(ev.Duration, tl.BPM) || uint64(tick)+uint64(max(length, 1)) > midifile.MaxTick {
				warnings = append(warnings, Warning{
					Layer: l.Name,
					Index: ev.Index,
					Note:  sources[i].Notes[ev.Index],
					Err:   fmt.Errorf("%w: duration %.0fs runs past the last MIDI tick", ErrBadToken, ev.Duration),
				})
				continue
			}
			tr.Notes = append(tr.Notes, midifile.Note{
				Tick:     tick,
				Length:   length,
				Key:      uint8(ev.Note),
				Velocity: midifile.Velocity(ev.Velocity),
			})
		}
		f.Tracks = append(f.Tracks, tr)
	}
	data, err := f.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode midi: %w", err)
	}
	return &MIDIExport{
		Data:     data,
		Filename: score.Filename(c, selected, "mid"),
		Tracks:   len(f.Tracks),
		Warnings: warnings,
	}, nil
}
