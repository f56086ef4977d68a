package beatsmith

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cbegin/beatsmith-go/internal/analysis"
	"github.com/cbegin/beatsmith-go/internal/graph"
	"github.com/cbegin/beatsmith-go/internal/logger"
	"github.com/cbegin/beatsmith-go/internal/score"
	"github.com/cbegin/beatsmith-go/internal/sequencer"
)

// State is the transport state of an Engine.
type State int

const (
	StateIdle State = iota
	StateLoaded
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StatePlaying:
		return "playing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// LoopEvent reports that a composition finished another loop cycle.
type LoopEvent struct {
	Composition string
	Count       int
}

// Engine plays one composition at a time, looping its four bars until
// stopped. Every method is safe to call from any goroutine.
type Engine struct {
	cfg options

	mu       sync.Mutex
	state    State
	comp     *score.Composition
	out      Output
	masterDB float64
	tracks   map[score.Instrument]TrackSettings

	// srcMu guards the rig pulled by the audio goroutine.
	srcMu   sync.Mutex
	rig     *rig
	playing atomic.Bool

	analyzer *analysis.Analyzer
	loops    chan LoopEvent
}

func NewEngine(opts ...Option) (*Engine, error) {
	cfg := buildOptions(opts)
	if cfg.sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", cfg.sampleRate)
	}
	return &Engine{
		cfg:      cfg,
		masterDB: graph.DefaultMasterDB,
		tracks:   make(map[score.Instrument]TrackSettings),
		analyzer: analysis.New(cfg.sampleRate),
		loops:    make(chan LoopEvent, 16),
	}, nil
}

func (e *Engine) SampleRate() int { return e.cfg.sampleRate }

// State returns the current transport state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Composition returns the loaded composition, or nil.
func (e *Engine) Composition() *score.Composition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.comp
}

// SetComposition stops the transport, disposes everything scheduled for
// the previous composition and schedules c. The engine is Loaded
// afterwards. Cached mix settings are applied to the new tracks. On error
// the previous composition stays loaded.
func (e *Engine) SetComposition(c *score.Composition) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := buildRig(e.cfg, c, rigOptions{
		loop:     true,
		masterDB: e.masterDB,
		tracks:   e.trackSnapshot(),
		tap:      e.analyzer.WriteFrame,
		onEvent:  e.loopCounter(c),
	})
	if err != nil {
		return err
	}
	if e.state == StatePlaying {
		e.playing.Store(false)
		e.out.Pause()
	}

	e.srcMu.Lock()
	if e.rig != nil {
		e.rig.seq.Dispose()
	}
	e.rig = r
	e.srcMu.Unlock()

	e.analyzer.Reset()
	e.comp = c
	e.state = StateLoaded
	logger.Info("composition loaded", logger.Fields{
		"id":       c.ID,
		"bpm":      c.BPM,
		"layers":   len(c.Layers),
		"events":   r.seq.ScheduledEvents(),
		"warnings": len(r.warnings),
	})
	return nil
}

// Start activates audio output on first use and starts the transport.
// Starting a playing engine is a no-op. If activation fails the engine
// stays Loaded.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.comp == nil {
		return ErrNoComposition
	}
	if e.state == StatePlaying {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.out == nil {
		out, err := e.cfg.output(e.cfg.sampleRate, e)
		if err != nil {
			logger.Error("audio activation failed", err, nil)
			return fmt.Errorf("%w: %v", ErrActivation, err)
		}
		e.out = out
	}
	e.playing.Store(true)
	e.out.Play()
	e.state = StatePlaying
	return nil
}

// Stop pauses output and rewinds to the loop start. Sounding notes are cut
// rather than released since paused output cannot play their tails.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePlaying {
		return
	}
	e.playing.Store(false)
	e.out.Pause()
	e.srcMu.Lock()
	e.rig.seq.Rewind()
	e.rig.graph.Reset()
	e.srcMu.Unlock()
	e.analyzer.Reset()
	e.state = StateLoaded
}

// Close releases the audio output and drops the loaded composition.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.srcMu.Lock()
	if e.rig != nil {
		e.rig.seq.Dispose()
		e.rig = nil
	}
	e.srcMu.Unlock()

	e.playing.Store(false)
	var err error
	if e.out != nil {
		e.out.Pause()
		err = e.out.Close()
		e.out = nil
	}
	e.comp = nil
	e.state = StateIdle
	return err
}

// Process renders interleaved stereo frames. It is called by the audio
// output and produces silence unless the engine is playing.
func (e *Engine) Process(dst []float32) {
	e.srcMu.Lock()
	defer e.srcMu.Unlock()
	if e.rig == nil || !e.playing.Load() {
		clear(dst)
		return
	}
	e.rig.seq.Process(dst)
}

// SetVolume sets the master gain in dB, clamped to the master range.
func (e *Engine) SetVolume(db float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.masterDB = clampGain(db, graph.MinMasterDB, graph.MaxMasterDB)
	if e.rig != nil {
		e.rig.graph.SetMasterDB(e.masterDB)
	}
}

// Volume returns the cached master gain in dB.
func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.masterDB
}

// SetTrackVolume sets one instrument track's gain in dB. The value is
// cached and applies to later compositions too.
func (e *Engine) SetTrackVolume(id score.Instrument, db float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ts := e.tracks[id]
	ts.GainDB = clampGain(db, graph.MinTrackDB, graph.MaxTrackDB)
	e.tracks[id] = ts
	if s := e.strip(id); s != nil {
		s.SetGainDB(ts.GainDB)
	}
}

// SetTrackMute mutes or unmutes one instrument track.
func (e *Engine) SetTrackMute(id score.Instrument, muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ts := e.tracks[id]
	ts.Muted = muted
	e.tracks[id] = ts
	if s := e.strip(id); s != nil {
		s.SetMuted(muted)
	}
}

// TrackSettings returns the cached mix for every known instrument plus
// any instrument that has been adjusted.
func (e *Engine) TrackSettings() map[score.Instrument]TrackSettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.trackSnapshot()
	for _, id := range score.Instruments {
		if _, ok := out[id]; !ok {
			out[id] = TrackSettings{}
		}
	}
	return out
}

// Spectrum returns master output magnitudes in dB, one per analysis bin.
func (e *Engine) Spectrum() []float64 { return e.analyzer.Spectrum() }

// Level returns the master RMS level in dB.
func (e *Engine) Level() float64 { return e.analyzer.Level() }

// BinFrequency returns the centre frequency of spectrum bin i.
func (e *Engine) BinFrequency(i int) float64 { return e.analyzer.BinFrequency(i) }

// ScheduledEvents returns the number of notes scheduled for the loaded
// composition.
func (e *Engine) ScheduledEvents() int {
	e.srcMu.Lock()
	defer e.srcMu.Unlock()
	if e.rig == nil {
		return 0
	}
	return e.rig.seq.ScheduledEvents()
}

func (e *Engine) strip(id score.Instrument) *graph.Strip {
	if e.rig == nil {
		return nil
	}
	s, ok := e.rig.graph.Strip(id)
	if !ok {
		return nil
	}
	return s
}

func (e *Engine) trackSnapshot() map[score.Instrument]TrackSettings {
	out := make(map[score.Instrument]TrackSettings, len(e.tracks))
	for id, ts := range e.tracks {
		out[id] = ts
	}
	return out
}

// Loops delivers loop completions. Events are dropped while the channel
// is full.
func (e *Engine) Loops() <-chan LoopEvent { return e.loops }

// loopCounter returns the sequencer callback for c. It runs on the audio
// goroutine.
func (e *Engine) loopCounter(c *score.Composition) func(sequencer.EventKind) {
	if c == nil {
		return nil
	}
	id, count := c.ID, 0
	return func(kind sequencer.EventKind) {
		if kind != sequencer.EventLoopCompleted {
			return
		}
		count++
		select {
		case e.loops <- LoopEvent{Composition: id, Count: count}:
		default:
		}
	}
}

func clampGain(db, lo, hi float64) float64 {
	if math.IsNaN(db) {
		return 0
	}
	return math.Max(lo, math.Min(hi, db))
}
