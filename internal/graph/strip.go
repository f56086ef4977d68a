package graph

import (
	"github.com/cbegin/beatsmith-go/internal/instrument"
	"github.com/cbegin/beatsmith-go/internal/score"
)

// Track gain bounds in dB.
const (
	MinTrackDB = -40.0
	MaxTrackDB = 6.0
)

// TrackSettings is the mix state of one instrument track.
type TrackSettings struct {
	GainDB float64 `json:"gainDb"`
	Muted  bool    `json:"muted"`
}

// Strip is one instrument's channel: connected voices summed through a
// ramped gain and a ramped mute.
type Strip struct {
	instrument score.Instrument
	tap        Stage
	sources    []instrument.Source
	gain       *Param
	mute       *Param // 1 = open, 0 = muted
}

func newStrip(id score.Instrument, tap Stage, ts TrackSettings, sampleRate int) *Strip {
	open := 1.0
	if ts.Muted {
		open = 0
	}
	return &Strip{
		instrument: id,
		tap:        tap,
		gain:       NewParam(DBToGain(clampDB(ts.GainDB, MinTrackDB, MaxTrackDB)), sampleRate),
		mute:       NewParam(open, sampleRate),
	}
}

// Connect attaches a source to the strip. Wiring happens before the graph
// is handed to the audio thread.
func (s *Strip) Connect(src instrument.Source) {
	s.sources = append(s.sources, src)
}

func (s *Strip) Instrument() score.Instrument { return s.instrument }

// Tap returns the stage the strip feeds.
func (s *Strip) Tap() Stage { return s.tap }

// SetGainDB ramps the strip gain to db, clamped to the track range.
func (s *Strip) SetGainDB(db float64) {
	s.gain.Set(DBToGain(clampDB(db, MinTrackDB, MaxTrackDB)))
}

// SetMuted ramps the strip to silence or back to its gain.
func (s *Strip) SetMuted(muted bool) {
	if muted {
		s.mute.Set(0)
		return
	}
	s.mute.Set(1)
}

// RenderFrame pulls one frame from every source.
func (s *Strip) RenderFrame() (float32, float32) {
	var l, r float32
	for _, src := range s.sources {
		sl, sr := src.RenderFrame()
		l += sl
		r += sr
	}
	g := float32(s.gain.Next() * s.mute.Next())
	return l * g, r * g
}
