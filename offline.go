package beatsmith

import (
	"context"
	"io"

	"github.com/cbegin/beatsmith-go/internal/graph"
	"github.com/cbegin/beatsmith-go/internal/score"
	"github.com/cbegin/beatsmith-go/internal/wavfile"
)

// Buffer is the result of an offline render: interleaved stereo float
// samples covering exactly one loop.
type Buffer struct {
	SampleRate int
	Channels   int
	Samples    []float32
	Warnings   []Warning
}

func (b *Buffer) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration is the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate == 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// EncodeWAV packages the buffer as 16-bit PCM RIFF/WAVE.
func (b *Buffer) EncodeWAV() ([]byte, error) {
	return wavfile.EncodeBytes(b.SampleRate, b.Channels, b.Samples)
}

func (b *Buffer) WriteWAV(w io.WriteSeeker) error {
	return wavfile.Encode(w, b.SampleRate, b.Channels, b.Samples)
}

// Renderer renders compositions faster than real time. Each call builds
// its own graph and voices, so concurrent renders never share state and
// the live mix never leaks into an export.
type Renderer struct {
	cfg options
}

func NewRenderer(opts ...Option) *Renderer {
	return &Renderer{cfg: buildOptions(opts)}
}

func (r *Renderer) SampleRate() int { return r.cfg.sampleRate }

// Render renders one loop of c, or of the single layer named layer when it
// is not empty, with a neutral mix. The buffer always covers four bars at
// c.BPM regardless of which layers are included.
func (r *Renderer) Render(ctx context.Context, c *score.Composition, layer string) (*Buffer, error) {
	rg, err := buildRig(r.cfg, c, rigOptions{
		layer:    layer,
		masterDB: graph.DefaultMasterDB,
	})
	if err != nil {
		return nil, err
	}
	frames := int(rg.seq.Length())
	out := &Buffer{
		SampleRate: r.cfg.sampleRate,
		Channels:   2,
		Samples:    make([]float32, frames*2),
		Warnings:   rg.warnings,
	}
	block := r.cfg.blockFrames * 2
	for off := 0; off < len(out.Samples); off += block {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(off+block, len(out.Samples))
		rg.seq.Process(out.Samples[off:end])
	}
	return out, nil
}
