package beatsmith

import (
	"errors"

	"github.com/cbegin/beatsmith-go/internal/audio"
	"github.com/cbegin/beatsmith-go/internal/graph"
	"github.com/cbegin/beatsmith-go/internal/score"
)

const testRate = 22050

func note(n, t, d string, v float64) score.NoteEvent {
	return score.NoteEvent{Note: n, Time: t, Duration: d, Velocity: v}
}

func scenarioA() *score.Composition {
	return &score.Composition{
		ID:       "scenario-a",
		Producer: "Metro Boomin",
		Category: "Trap & Dark",
		Vibe:     "Dark/Evil",
		Key:      "C",
		BPM:      140,
		Layers: []score.MelodyLayer{
			{Name: "Sub", Instrument: score.Bass, Notes: []score.NoteEvent{note("C2", "0:0:0", "4n", 0.9)}},
		},
	}
}

func duet() *score.Composition {
	return &score.Composition{
		ID:       "duet",
		Producer: "Pi'erre Bourne",
		Vibe:     "Hypnotic",
		Key:      "A",
		BPM:      120,
		Layers: []score.MelodyLayer{
			{Name: "Sub", Instrument: score.Bass, Notes: []score.NoteEvent{
				note("A1", "0:0:0", "2n", 0.9),
				note("E2", "1:0:0", "2n", 0.8),
				note("A1", "2:0:0", "1m", 0.9),
			}},
			{Name: "Hook", Instrument: score.Lead, Notes: []score.NoteEvent{
				note("A4", "0:0:0", "8n", 0.7),
				note("C5", "0:1:0", "8n", 0.7),
				note("E5", "0:2:0", "4n", 0.6),
				note("G5", "1:0:2", "16n", 0.5),
			}},
		},
	}
}

// dryTopology routes every strip straight to the master.
func dryTopology() graph.Topology {
	t := graph.DefaultTopology()
	t.DelayWet = 0
	t.ChorusWet = 0
	t.CrushWet = 0
	t.DriveWet = 0
	t.ReverbWet = 0
	return t
}

type fakeOutput struct {
	plays, pauses, closes int
}

func (f *fakeOutput) Play()        { f.plays++ }
func (f *fakeOutput) Pause()       { f.pauses++ }
func (f *fakeOutput) Close() error { f.closes++; return nil }

func fakeFactory(out *fakeOutput) OutputFactory {
	return func(int, audio.SampleSource) (Output, error) { return out, nil }
}

func failingFactory() OutputFactory {
	return func(int, audio.SampleSource) (Output, error) {
		return nil, errors.New("device busy")
	}
}
