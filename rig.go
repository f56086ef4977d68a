package beatsmith

import (
	"fmt"

	"github.com/cbegin/beatsmith-go/internal/graph"
	"github.com/cbegin/beatsmith-go/internal/instrument"
	"github.com/cbegin/beatsmith-go/internal/logger"
	"github.com/cbegin/beatsmith-go/internal/score"
	"github.com/cbegin/beatsmith-go/internal/sequencer"
	"github.com/cbegin/beatsmith-go/internal/timeline"
)

// Warning records a note that could not be scheduled or exported.
type Warning = timeline.Warning

// TrackSettings is the mix state of one instrument track.
type TrackSettings = graph.TrackSettings

// rig is one isolated instance of graph, voices and sequencer for a
// composition. The live engine and the offline renderer each build their
// own; nothing inside is shared.
type rig struct {
	graph    *graph.Graph
	seq      *sequencer.Sequencer
	warnings []Warning
}

type rigOptions struct {
	layer    string
	loop     bool
	masterDB float64
	tracks   map[score.Instrument]TrackSettings
	tap      func(l, r float32)
	onEvent  func(sequencer.EventKind)
}

func buildRig(cfg options, c *score.Composition, ro rigOptions) (*rig, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	tl, warnings, err := timeline.Build(c, ro.layer)
	if err != nil {
		return nil, err
	}
	g, err := graph.Build(cfg.topology, graph.Options{
		SampleRate: cfg.sampleRate,
		BPM:        c.BPM,
		MasterDB:   ro.masterDB,
		Tracks:     ro.tracks,
		Extra:      c.Instruments(),
		Tap:        ro.tap,
	})
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	seq := sequencer.New(g, cfg.sampleRate, timeline.Frame(tl.Length, cfg.sampleRate), sequencer.Options{
		Loop:    ro.loop,
		OnEvent: ro.onEvent,
	})
	for _, layer := range tl.Layers {
		if _, ok := instrument.RecipeFor(layer.Instrument); !ok {
			logger.Warn("unknown instrument, using default voice", logger.Fields{
				"layer":      layer.Name,
				"instrument": string(layer.Instrument),
			})
		}
		strip, ok := g.Strip(layer.Instrument)
		if !ok {
			return nil, fmt.Errorf("no strip for instrument %q", layer.Instrument)
		}
		seq.AddPart(layer, instrument.New(layer.Instrument, cfg.sampleRate, strip))
	}
	for _, w := range warnings {
		logger.Warn("skipping note", logger.Fields{
			"composition": c.ID,
			"layer":       w.Layer,
			"index":       w.Index,
			"error":       w.Err.Error(),
		})
	}
	return &rig{graph: g, seq: seq, warnings: warnings}, nil
}
