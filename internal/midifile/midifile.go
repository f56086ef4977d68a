// Package midifile encodes multi-track note data as a Standard MIDI File
// (format 1) and reads such files back.
package midifile

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// PPQ is the tick resolution per quarter note.
const PPQ = 480

// MaxTick is the last tick reachable with a single variable-length delta
// from tick 0. Every event of an encoded track must fall at or before it.
const MaxTick = 0x0FFFFFFF

// DrumChannel is skipped when assigning melodic channels.
const DrumChannel = 9

type Note struct {
	Tick     uint32
	Length   uint32
	Key      uint8
	Velocity uint8
}

type Track struct {
	Name       string
	Instrument string
	Program    uint8
	Channel    uint8
	Notes      []Note
}

// File is the content of one export. Name, tempo and meter are written
// once, at tick 0 of the first track.
type File struct {
	Name   string
	BPM    float64
	Meter  [2]uint8
	Tracks []Track
}

// Ticks converts seconds at bpm to the nearest tick, clamped to
// [0, MaxTick]. Use InRange to detect clamping.
func Ticks(seconds, bpm float64) uint32 {
	t := math.Round(seconds * bpm / 60 * PPQ)
	switch {
	case !(t >= 0):
		return 0
	case t > MaxTick:
		return MaxTick
	}
	return uint32(t)
}

// InRange reports whether seconds at bpm lands within [0, MaxTick].
func InRange(seconds, bpm float64) bool {
	t := math.Round(seconds * bpm / 60 * PPQ)
	return t >= 0 && t <= MaxTick
}

// Velocity maps 0..1 to 1..127, rounding down. A note-on with velocity 0
// is a note-off, so quiet notes keep the floor of 1.
func Velocity(v float64) uint8 {
	if math.IsNaN(v) {
		return 1
	}
	return uint8(math.Max(1, math.Min(127, math.Floor(v*127))))
}

// Channel returns the channel for the i-th melodic track.
func Channel(i int) uint8 {
	ch := i % 15
	if ch >= DrumChannel {
		ch++
	}
	return uint8(ch)
}

type timed struct {
	tick uint32
	off  bool
	msg  []byte
}

// Encode writes f as SMF format 1.
func (f *File) Encode(w io.Writer) error {
	if len(f.Tracks) == 0 {
		return fmt.Errorf("midifile: no tracks")
	}
	out := smf.NewSMF1()
	out.TimeFormat = smf.MetricTicks(PPQ)
	for i, t := range f.Tracks {
		var tr smf.Track
		tr.Add(0, smf.MetaTrackSequenceName(t.Name))
		if i == 0 {
			if f.Name != "" {
				tr.Add(0, smf.MetaText(f.Name))
			}
			num, denom := f.Meter[0], f.Meter[1]
			if num == 0 || denom == 0 {
				num, denom = 4, 4
			}
			tr.Add(0, smf.MetaMeter(num, denom))
			tr.Add(0, smf.MetaTempo(f.BPM))
		}
		if t.Instrument != "" {
			tr.Add(0, smf.MetaInstrument(t.Instrument))
		}
		tr.Add(0, midi.ProgramChange(t.Channel, t.Program))

		events := make([]timed, 0, len(t.Notes)*2)
		for _, n := range t.Notes {
			length := n.Length
			if length == 0 {
				length = 1
			}
			if n.Tick >= MaxTick || length > MaxTick-n.Tick {
				return fmt.Errorf("midifile: track %q note at tick %d length %d ends past tick %d", t.Name, n.Tick, n.Length, MaxTick)
			}
			vel := n.Velocity
			if vel == 0 {
				vel = 1
			}
			events = append(events,
				timed{tick: n.Tick, msg: midi.NoteOn(t.Channel, n.Key, vel)},
				timed{tick: n.Tick + length, off: true, msg: midi.NoteOff(t.Channel, n.Key)},
			)
		}
		// note-offs sort ahead of note-ons on the same tick
		sort.SliceStable(events, func(a, b int) bool {
			if events[a].tick != events[b].tick {
				return events[a].tick < events[b].tick
			}
			return events[a].off && !events[b].off
		})
		var last uint32
		for _, ev := range events {
			tr.Add(ev.tick-last, ev.msg)
			last = ev.tick
		}
		tr.Close(0)
		if err := out.Add(tr); err != nil {
			return fmt.Errorf("midifile: add track %q: %w", t.Name, err)
		}
	}
	if _, err := out.WriteTo(w); err != nil {
		return fmt.Errorf("midifile: write: %w", err)
	}
	return nil
}

// Bytes encodes f in memory.
func (f *File) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a file written by Encode. Notes are returned in start
// order per track.
func Decode(r io.Reader) (*File, error) {
	in, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("midifile: read: %w", err)
	}
	f := &File{}
	for i, tr := range in.Tracks {
		var (
			t       Track
			tick    uint32
			pending = map[uint8][]Note{}
		)
		for _, ev := range tr {
			tick += ev.Delta
			var (
				text               string
				bpm                float64
				ch, key, vel, prog uint8
				num, denom         uint8
			)
			msg := midi.Message(ev.Message)
			switch {
			case ev.Message.GetMetaTrackName(&text):
				t.Name = text
			case ev.Message.GetMetaText(&text):
				if i == 0 {
					f.Name = text
				}
			case ev.Message.GetMetaInstrument(&text):
				t.Instrument = text
			case ev.Message.GetMetaTempo(&bpm):
				f.BPM = bpm
			case ev.Message.GetMetaMeter(&num, &denom):
				f.Meter = [2]uint8{num, denom}
			case msg.GetProgramChange(&ch, &prog):
				t.Channel, t.Program = ch, prog
			case msg.GetNoteStart(&ch, &key, &vel):
				pending[key] = append(pending[key], Note{Tick: tick, Key: key, Velocity: vel})
			case msg.GetNoteEnd(&ch, &key):
				if open := pending[key]; len(open) > 0 {
					n := open[0]
					n.Length = tick - n.Tick
					pending[key] = open[1:]
					t.Notes = append(t.Notes, n)
				}
			}
		}
		sort.SliceStable(t.Notes, func(a, b int) bool { return t.Notes[a].Tick < t.Notes[b].Tick })
		f.Tracks = append(f.Tracks, t)
	}
	return f, nil
}
