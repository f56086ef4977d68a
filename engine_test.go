package beatsmith

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/beatsmith-go/internal/analysis"
	"github.com/cbegin/beatsmith-go/internal/graph"
	"github.com/cbegin/beatsmith-go/internal/score"
	"github.com/cbegin/beatsmith-go/internal/timeline"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fakeOutput) {
	t.Helper()
	out := &fakeOutput{}
	opts = append([]Option{WithSampleRate(testRate), WithOutput(fakeFactory(out))}, opts...)
	e, err := NewEngine(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e, out
}

func pull(e *Engine, frames int) []float32 {
	buf := make([]float32, frames*2)
	e.Process(buf)
	return buf
}

func peakOf(buf []float32) float64 {
	var p float64
	for _, s := range buf {
		p = math.Max(p, math.Abs(float64(s)))
	}
	return p
}

func TestEngineStateMachine(t *testing.T) {
	e, out := newTestEngine(t)
	ctx := context.Background()

	assert.Equal(t, StateIdle, e.State())
	require.ErrorIs(t, e.Start(ctx), ErrNoComposition)

	require.NoError(t, e.SetComposition(duet()))
	assert.Equal(t, StateLoaded, e.State())

	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.Start(ctx))
	assert.Equal(t, StatePlaying, e.State())
	assert.Equal(t, 1, out.plays, "second start is a no-op")

	e.Stop()
	assert.Equal(t, StateLoaded, e.State())
	assert.Equal(t, 1, out.pauses)
	e.Stop()
	assert.Equal(t, 1, out.pauses)

	require.NoError(t, e.Close())
	assert.Equal(t, StateIdle, e.State())
	assert.Equal(t, 1, out.closes)
	assert.Zero(t, e.ScheduledEvents())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "loaded", StateLoaded.String())
	assert.Equal(t, "playing", StatePlaying.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestEngineSilentUnlessPlaying(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.SetComposition(scenarioA()))
	assert.Zero(t, peakOf(pull(e, 2048)))

	require.NoError(t, e.Start(context.Background()))
	assert.Greater(t, peakOf(pull(e, 2048)), 0.0)
}

func TestSetCompositionLeavesOnlyNewEvents(t *testing.T) {
	ctx := context.Background()
	a, b := duet(), scenarioA()

	e, _ := newTestEngine(t)
	require.NoError(t, e.SetComposition(a))
	require.NoError(t, e.Start(ctx))
	pull(e, testRate)
	require.NoError(t, e.SetComposition(b))
	assert.Equal(t, StateLoaded, e.State())

	tl, _, err := timeline.Build(b, "")
	require.NoError(t, err)
	assert.Equal(t, tl.EventCount(), e.ScheduledEvents())

	// output matches an engine that only ever saw b
	fresh, _ := newTestEngine(t)
	require.NoError(t, fresh.SetComposition(b))
	require.NoError(t, e.Start(ctx))
	require.NoError(t, fresh.Start(ctx))
	got, want := pull(e, testRate), pull(fresh, testRate)
	require.Equal(t, want, got)
}

func TestSetCompositionWhilePlayingStopsTransport(t *testing.T) {
	e, out := newTestEngine(t)
	require.NoError(t, e.SetComposition(duet()))
	require.NoError(t, e.Start(context.Background()))
	require.NoError(t, e.SetComposition(scenarioA()))
	assert.Equal(t, StateLoaded, e.State())
	assert.Equal(t, 1, out.pauses)
	assert.Zero(t, peakOf(pull(e, 512)))
}

func TestSetCompositionRejectsInvalidAndKeepsPrevious(t *testing.T) {
	e, _ := newTestEngine(t)
	prev := duet()
	require.NoError(t, e.SetComposition(prev))
	events := e.ScheduledEvents()

	bad := scenarioA()
	bad.BPM = 0
	require.ErrorIs(t, e.SetComposition(bad), ErrInvalidComposition)
	assert.Same(t, prev, e.Composition())
	assert.Equal(t, events, e.ScheduledEvents())
	assert.Equal(t, StateLoaded, e.State())
}

func TestActivationFailureLeavesEngineLoaded(t *testing.T) {
	e, err := NewEngine(WithSampleRate(testRate), WithOutput(failingFactory()))
	require.NoError(t, err)
	require.NoError(t, e.SetComposition(scenarioA()))

	err = e.Start(context.Background())
	require.ErrorIs(t, err, ErrActivation)
	assert.Equal(t, StateLoaded, e.State())
	assert.Zero(t, peakOf(pull(e, 256)))
}

func TestStartHonoursCancelledContext(t *testing.T) {
	e, out := newTestEngine(t)
	require.NoError(t, e.SetComposition(scenarioA()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, e.Start(ctx), context.Canceled)
	assert.Equal(t, StateLoaded, e.State())
	assert.Zero(t, out.plays)
}

func TestUnknownInstrumentFallsBackToDefaultVoice(t *testing.T) {
	c := scenarioA()
	c.Layers[0].Instrument = "theremin"

	e, _ := newTestEngine(t)
	require.NoError(t, e.SetComposition(c))
	assert.Equal(t, 1, e.ScheduledEvents())
	require.NoError(t, e.Start(context.Background()))
	assert.Greater(t, peakOf(pull(e, 4096)), 0.0)
}

func TestStopRewindsToLoopStart(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	require.NoError(t, e.SetComposition(duet()))
	require.NoError(t, e.Start(ctx))
	pull(e, testRate/2)
	e.Stop()
	require.NoError(t, e.Start(ctx))

	fresh, _ := newTestEngine(t)
	require.NoError(t, fresh.SetComposition(duet()))
	require.NoError(t, fresh.Start(ctx))

	got, want := pull(e, 4096), pull(fresh, 4096)
	require.Equal(t, want, got)
}

func TestLiveMuteSilencesOnlyThatTrack(t *testing.T) {
	ctx := context.Background()
	both, _ := newTestEngine(t, WithTopology(dryTopology()))
	require.NoError(t, both.SetComposition(duet()))
	require.NoError(t, both.Start(ctx))

	leadOnly := duet()
	leadOnly.Layers = leadOnly.Layers[1:]
	ref, _ := newTestEngine(t, WithTopology(dryTopology()))
	require.NoError(t, ref.SetComposition(leadOnly))
	require.NoError(t, ref.Start(ctx))

	assert.NotEqual(t, pull(ref, 4096), pull(both, 4096), "bass is audible before muting")

	both.SetTrackMute(score.Bass, true)
	ramp := int(math.Ceil(graph.RampTime*testRate)) + 2
	pull(both, ramp)
	pull(ref, ramp)

	got, want := pull(both, 4096), pull(ref, 4096)
	for i := range want {
		require.InDelta(t, want[i], got[i], 1e-6, "sample %d", i)
	}
}

func TestMixCarriesOverCompositions(t *testing.T) {
	e, _ := newTestEngine(t)
	e.SetTrackVolume(score.Bass, -12)
	e.SetTrackMute(score.Lead, true)

	require.NoError(t, e.SetComposition(duet()))
	require.NoError(t, e.SetComposition(scenarioA()))

	mix := e.TrackSettings()
	assert.Equal(t, TrackSettings{GainDB: -12}, mix[score.Bass])
	assert.Equal(t, TrackSettings{Muted: true}, mix[score.Lead])
	assert.Equal(t, TrackSettings{}, mix[score.Pad])
	assert.Len(t, mix, len(score.Instruments))
}

func TestCachedMuteAppliesToNextComposition(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	e.SetTrackMute(score.Lead, true)
	require.NoError(t, e.SetComposition(duet()))
	require.NoError(t, e.Start(ctx))

	bassOnly := duet()
	bassOnly.Layers = bassOnly.Layers[:1]
	ref, _ := newTestEngine(t)
	require.NoError(t, ref.SetComposition(bassOnly))
	require.NoError(t, ref.Start(ctx))

	got, want := pull(e, 8192), pull(ref, 8192)
	for i := range want {
		require.InDelta(t, want[i], got[i], 1e-6, "sample %d", i)
	}
}

func TestVolumeClamping(t *testing.T) {
	e, _ := newTestEngine(t)
	assert.Equal(t, graph.DefaultMasterDB, e.Volume())

	e.SetVolume(100)
	assert.Equal(t, graph.MaxMasterDB, e.Volume())
	e.SetVolume(-100)
	assert.Equal(t, graph.MinMasterDB, e.Volume())
	e.SetVolume(math.NaN())
	assert.Equal(t, 0.0, e.Volume())

	e.SetTrackVolume(score.Pad, -90)
	assert.Equal(t, graph.MinTrackDB, e.TrackSettings()[score.Pad].GainDB)
	e.SetTrackVolume(score.Pad, 20)
	assert.Equal(t, graph.MaxTrackDB, e.TrackSettings()[score.Pad].GainDB)
}

func TestSpectrumFollowsOutput(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.SetComposition(scenarioA()))
	assert.Equal(t, analysis.MinDecibels, e.Level())

	require.NoError(t, e.Start(context.Background()))
	pull(e, analysis.FFTSize*2)
	assert.Greater(t, e.Level(), analysis.MinDecibels)

	spec := e.Spectrum()
	require.Len(t, spec, analysis.FFTSize/2)
	var low, high float64
	var nLow, nHigh int
	for i, v := range spec {
		switch f := e.BinFrequency(i); {
		case f < 1000:
			low += v
			nLow++
		case f > 5000:
			high += v
			nHigh++
		}
	}
	// C2 bass energy sits in the low bins
	assert.Greater(t, low/float64(nLow), high/float64(nHigh))

	e.Stop()
	assert.Equal(t, analysis.MinDecibels, e.Level())
}

func TestLoopEvents(t *testing.T) {
	e, _ := newTestEngine(t, WithSampleRate(8000))
	require.NoError(t, e.SetComposition(scenarioA()))
	require.NoError(t, e.Start(context.Background()))

	length := int(timeline.Frame(score.LoopSeconds(140), 8000))
	pull(e, length*2+1)

	require.Len(t, e.Loops(), 2)
	assert.Equal(t, LoopEvent{Composition: "scenario-a", Count: 1}, <-e.Loops())
	assert.Equal(t, LoopEvent{Composition: "scenario-a", Count: 2}, <-e.Loops())
}
