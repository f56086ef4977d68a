// Package graph builds the per-track signal routing graph shared by live
// playback and offline rendering.
package graph

import (
	"fmt"

	"github.com/cbegin/beatsmith-go/internal/effects"
	"github.com/cbegin/beatsmith-go/internal/notation"
	"github.com/cbegin/beatsmith-go/internal/score"
)

// Options configures one graph instance.
type Options struct {
	SampleRate int
	BPM        float64
	MasterDB   float64
	// Tracks holds initial mix settings; missing instruments are neutral.
	Tracks map[score.Instrument]TrackSettings
	// Extra lists instruments outside the configured set that need a strip.
	Extra []score.Instrument
	// Tap receives every master output frame.
	Tap func(l, r float32)
}

// Graph is an instantiated topology. Control methods are safe from any
// goroutine; RenderFrame belongs to the single rendering goroutine.
type Graph struct {
	strips []*Strip
	byID   map[score.Instrument]*Strip
	color  *effects.Chain
	drive  effects.Effector
	space  effects.Effector
	master *Param
	tap    func(l, r float32)
}

// Build instantiates t with fresh processors and one strip per configured
// instrument plus any extras.
func Build(t Topology, opts Options) (*Graph, error) {
	if opts.SampleRate <= 0 {
		return nil, fmt.Errorf("graph: invalid sample rate %d", opts.SampleRate)
	}
	delay, err := notation.Seconds(t.DelayTime, opts.BPM)
	if err != nil {
		return nil, fmt.Errorf("graph: delay time: %w", err)
	}
	sr := opts.SampleRate
	g := &Graph{
		byID: make(map[score.Instrument]*Strip),
		color: effects.NewChain(
			effects.NewFeedbackDelay(sr, delay, t.DelayFeedback, t.DelayWet),
			effects.NewChorus(sr, t.ChorusDelayMs, 0, t.ChorusDelayMs*t.ChorusDepth, t.ChorusRate, t.ChorusWet),
			effects.NewBitCrusher(t.CrushBits, t.CrushWet),
		),
		drive:  effects.NewDistortion(t.Drive, t.DriveWet),
		space:  effects.NewReverb(sr, t.ReverbDecay, t.ReverbWet),
		master: NewParam(DBToGain(clampDB(opts.MasterDB, MinMasterDB, MaxMasterDB)), sr),
		tap:    opts.Tap,
	}
	ids := append(append([]score.Instrument(nil), score.Instruments...), opts.Extra...)
	for _, id := range ids {
		if _, ok := g.byID[id]; ok || id == "" {
			continue
		}
		s := newStrip(id, t.TapFor(id), opts.Tracks[id], sr)
		g.strips = append(g.strips, s)
		g.byID[id] = s
	}
	return g, nil
}

// Strip returns the strip for id.
func (g *Graph) Strip(id score.Instrument) (*Strip, bool) {
	s, ok := g.byID[id]
	return s, ok
}

// Strips returns every strip in build order.
func (g *Graph) Strips() []*Strip { return g.strips }

// SetMasterDB ramps the master gain, clamped to the master range.
func (g *Graph) SetMasterDB(db float64) {
	g.master.Set(DBToGain(clampDB(db, MinMasterDB, MaxMasterDB)))
}

// RenderFrame pulls every strip, runs the effect chain and returns one
// master frame.
func (g *Graph) RenderFrame() (float32, float32) {
	var colorL, colorR, driveL, driveR, spaceL, spaceR float32
	for _, s := range g.strips {
		l, r := s.RenderFrame()
		switch s.tap {
		case StageDrive:
			driveL += l
			driveR += r
		case StageSpace:
			spaceL += l
			spaceR += r
		default:
			colorL += l
			colorR += r
		}
	}
	l, r := g.color.Process(colorL, colorR)
	l, r = g.drive.Process(l+driveL, r+driveR)
	l, r = g.space.Process(l+spaceL, r+spaceR)
	m := float32(g.master.Next())
	l *= m
	r *= m
	if g.tap != nil {
		g.tap(l, r)
	}
	return l, r
}

// Render fills interleaved stereo dst.
func (g *Graph) Render(dst []float32) {
	for i := 0; i+1 < len(dst); i += 2 {
		dst[i], dst[i+1] = g.RenderFrame()
	}
}

// Reset clears effect state.
func (g *Graph) Reset() {
	g.color.Reset()
	g.drive.Reset()
	g.space.Reset()
}
