// Package sequencer schedules timeline events against voices and pulls
// audio from a source one frame at a time. All positions are in sample
// frames, so scheduling is exactly as precise as the audio clock.
package sequencer

import (
	"github.com/cbegin/beatsmith-go/internal/timeline"
)

// VoiceEngine is the note interface of one instrument voice.
type VoiceEngine interface {
	NoteOn(note int, velocity float64) int
	NoteOff(id int)
	// Silence cuts every sounding note.
	Silence()
}

// Source produces the mixed output, typically a graph.
type Source interface {
	RenderFrame() (float32, float32)
}

// EventKind identifies sequencer lifecycle events.
type EventKind int

const (
	EventLoopCompleted EventKind = iota
	EventPlaybackEnded
)

type Options struct {
	// Loop repeats the part window forever instead of ending after it.
	Loop    bool
	OnEvent func(EventKind)
}

type note struct {
	start    int64 // frame offset within the window
	length   int64 // frames, at least 1
	midi     int
	velocity float64
}

type part struct {
	name   string
	engine VoiceEngine
	notes  []note
	cursor int
}

type noteOff struct {
	frame int64 // absolute
	part  int
	voice int
}

// Sequencer plays a set of parts over a fixed window of frames.
type Sequencer struct {
	source     Source
	sampleRate int
	length     int64
	loop       bool
	onEvent    func(EventKind)
	parts      []part
	noteOffs   []noteOff
	frame      int64 // absolute frames since start
	ended      bool
}

// New returns a sequencer whose window is length frames long.
func New(source Source, sampleRate int, length int64, opts Options) *Sequencer {
	if length < 1 {
		length = 1
	}
	return &Sequencer{
		source:     source,
		sampleRate: sampleRate,
		length:     length,
		loop:       opts.Loop,
		onEvent:    opts.OnEvent,
	}
}

// AddPart schedules every event of layer on engine. Events are expected
// in start order, as timeline.Build produces them.
func (s *Sequencer) AddPart(layer timeline.Layer, engine VoiceEngine) {
	p := part{name: layer.Name, engine: engine}
	for _, ev := range layer.Events {
		start := timeline.Frame(ev.Start, s.sampleRate)
		if start >= s.length {
			continue
		}
		length := timeline.Frame(ev.End(), s.sampleRate) - start
		if length < 1 {
			length = 1
		}
		p.notes = append(p.notes, note{start: start, length: length, midi: ev.Note, velocity: ev.Velocity})
	}
	s.parts = append(s.parts, p)
}

// ScheduledEvents returns the number of notes currently scheduled.
func (s *Sequencer) ScheduledEvents() int {
	n := 0
	for _, p := range s.parts {
		n += len(p.notes)
	}
	return n
}

// Length returns the window length in frames.
func (s *Sequencer) Length() int64 { return s.length }

// Position returns the current frame within the window.
func (s *Sequencer) Position() int64 {
	if s.loop {
		return s.frame % s.length
	}
	return s.frame
}

// Ended reports whether a non-looping sequencer has passed its window.
func (s *Sequencer) Ended() bool { return s.ended }

// Process fills interleaved stereo dst.
func (s *Sequencer) Process(dst []float32) {
	frames := len(dst) / 2
	for f := 0; f < frames; f++ {
		s.dispatch()
		dst[f*2], dst[f*2+1] = s.source.RenderFrame()
		s.frame++
	}
}

func (s *Sequencer) dispatch() {
	s.fireNoteOffs()
	pos := s.frame
	if s.loop {
		pos = s.frame % s.length
		if pos == 0 && s.frame > 0 {
			s.rewindParts()
			s.emit(EventLoopCompleted)
		}
	} else if pos >= s.length {
		if !s.ended {
			s.ended = true
			s.emit(EventPlaybackEnded)
		}
		return
	}
	for i := range s.parts {
		p := &s.parts[i]
		for p.cursor < len(p.notes) && p.notes[p.cursor].start <= pos {
			n := p.notes[p.cursor]
			id := p.engine.NoteOn(n.midi, n.velocity)
			s.noteOffs = append(s.noteOffs, noteOff{frame: s.frame + n.length, part: i, voice: id})
			p.cursor++
		}
	}
}

// fireNoteOffs releases every note due at or before the current frame.
// Note-offs run before note-ons so a retriggered pitch is not cut.
func (s *Sequencer) fireNoteOffs() {
	if len(s.noteOffs) == 0 {
		return
	}
	j := 0
	for _, off := range s.noteOffs {
		if off.frame <= s.frame {
			s.parts[off.part].engine.NoteOff(off.voice)
			continue
		}
		s.noteOffs[j] = off
		j++
	}
	s.noteOffs = s.noteOffs[:j]
}

func (s *Sequencer) rewindParts() {
	for i := range s.parts {
		s.parts[i].cursor = 0
	}
}

// Rewind returns to the start of the window, drops pending note-offs and
// silences every part.
func (s *Sequencer) Rewind() {
	s.frame = 0
	s.ended = false
	s.noteOffs = s.noteOffs[:0]
	s.rewindParts()
	for _, p := range s.parts {
		p.engine.Silence()
	}
}

// Dispose rewinds and drops every part. The sequencer schedules nothing
// afterwards.
func (s *Sequencer) Dispose() {
	s.Rewind()
	s.parts = nil
	s.noteOffs = nil
}

func (s *Sequencer) emit(kind EventKind) {
	if s.onEvent != nil {
		s.onEvent(kind)
	}
}
