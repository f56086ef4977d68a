package beatsmith

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/cbegin/beatsmith-go/internal/generate"
	"github.com/cbegin/beatsmith-go/internal/logger"
	"github.com/cbegin/beatsmith-go/internal/score"
)

// GenerateRequest selects the style of a generated composition.
type GenerateRequest = generate.Request

// Generator produces compositions, typically *generate.Client.
type Generator interface {
	Generate(ctx context.Context, req generate.Request) (*score.Composition, error)
}

// Export is a finished file ready for delivery.
type Export struct {
	Data        []byte
	Filename    string
	ContentType string
	Warnings    []Warning
}

// Session owns the current composition and ties generation, live playback
// and exports together. Only one export runs at a time; an export whose
// composition is replaced before it finishes is discarded.
type Session struct {
	engine   *Engine
	renderer *Renderer
	gen      Generator
	exports  *semaphore.Weighted

	// loadMu orders loads so the engine and current always agree.
	loadMu sync.Mutex

	mu           sync.Mutex
	current      *score.Composition
	version      uint64
	cancelExport context.CancelFunc
}

// NewSession wires the collaborators. engine and gen may be nil for
// headless or offline-only use.
func NewSession(engine *Engine, renderer *Renderer, gen Generator) *Session {
	if renderer == nil {
		renderer = NewRenderer()
	}
	return &Session{
		engine:   engine,
		renderer: renderer,
		gen:      gen,
		exports:  semaphore.NewWeighted(1),
	}
}

func (s *Session) Engine() *Engine { return s.engine }

// Current returns the active composition, or nil.
func (s *Session) Current() *score.Composition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Generate asks the generator for a composition and loads it. On failure
// the previous composition stays active.
func (s *Session) Generate(ctx context.Context, req GenerateRequest) (*score.Composition, error) {
	if s.gen == nil {
		return nil, &generate.GenerationError{Stage: generate.StageRequest, Cause: errors.New("no generator configured")}
	}
	c, err := s.gen.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.Load(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Load validates c and makes it the active composition, replacing the
// engine's composition and abandoning any export in flight.
func (s *Session) Load(c *score.Composition) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if s.engine != nil {
		if err := s.engine.SetComposition(c); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.current = c
	s.version++
	if s.cancelExport != nil {
		s.cancelExport()
		s.cancelExport = nil
	}
	s.mu.Unlock()
	return nil
}

// ExportWAV renders the active composition, or one layer of it, to WAV.
func (s *Session) ExportWAV(ctx context.Context, layer string) (*Export, error) {
	return s.export(ctx, "wav", func(ctx context.Context, c *score.Composition) (*Export, error) {
		buf, err := s.renderer.Render(ctx, c, layer)
		if err != nil {
			return nil, err
		}
		data, err := buf.EncodeWAV()
		if err != nil {
			return nil, fmt.Errorf("encode wav: %w", err)
		}
		return &Export{
			Data:        data,
			Filename:    exportFilename(c, layer, "wav"),
			ContentType: "audio/wav",
			Warnings:    buf.Warnings,
		}, nil
	})
}

// ExportMIDI encodes the active composition, or one layer of it, as MIDI.
func (s *Session) ExportMIDI(ctx context.Context, layer string) (*Export, error) {
	return s.export(ctx, "midi", func(ctx context.Context, c *score.Composition) (*Export, error) {
		m, err := ExportMIDI(c, layer)
		if err != nil {
			return nil, err
		}
		return &Export{
			Data:        m.Data,
			Filename:    m.Filename,
			ContentType: "audio/midi",
			Warnings:    m.Warnings,
		}, nil
	})
}

func (s *Session) export(ctx context.Context, kind string, run func(context.Context, *score.Composition) (*Export, error)) (*Export, error) {
	if !s.exports.TryAcquire(1) {
		return nil, ErrExportBusy
	}
	defer s.exports.Release(1)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	c, version := s.current, s.version
	s.cancelExport = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancelExport = nil
		s.mu.Unlock()
	}()

	if c == nil {
		return nil, ErrNoComposition
	}
	out, err := run(ctx, c)
	if s.stale(version) {
		logger.Info("discarding stale export", logger.Fields{"kind": kind, "composition": c.ID})
		return nil, ErrStaleExport
	}
	if err != nil {
		return nil, err
	}
	logger.Info("export finished", logger.Fields{
		"kind":        kind,
		"composition": c.ID,
		"filename":    out.Filename,
		"bytes":       len(out.Data),
		"warnings":    len(out.Warnings),
	})
	return out, nil
}

func (s *Session) stale(version uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version != version
}

func exportFilename(c *score.Composition, layer, ext string) string {
	if layer == "" {
		return score.Filename(c, nil, ext)
	}
	ml, err := c.Layer(layer)
	if err != nil {
		return score.Filename(c, nil, ext)
	}
	return score.Filename(c, ml, ext)
}
