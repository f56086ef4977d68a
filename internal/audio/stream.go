// Package audio streams a pull-model source to the system audio device.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// ErrUnavailable is returned when the audio device cannot be opened.
var ErrUnavailable = errors.New("audio output unavailable")

// BufferTime is the device buffer length requested from the player.
const BufferTime = 50 * time.Millisecond

// SampleSource fills interleaved stereo float32 frames.
type SampleSource interface {
	Process(dst []float32)
}

// StreamReader adapts a SampleSource to the little-endian float32 stream
// the device player reads.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i, v := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	return frames * 8, nil
}

func (r *StreamReader) Close() error { return nil }

// Device is a running device player.
type Device struct {
	player *ebitaudio.Player
	reader *StreamReader
}

var (
	contextOnce       sync.Once
	context           *ebitaudio.Context
	contextSampleRate int
)

// sharedContext creates the process-wide audio context on first use. The
// device allows exactly one, at one sample rate.
func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextSampleRate = sampleRate
		context = ebitaudio.NewContext(sampleRate)
	})
	if contextSampleRate != sampleRate {
		return nil, fmt.Errorf("%w: context already running at %d Hz (requested %d Hz)", ErrUnavailable, contextSampleRate, sampleRate)
	}
	return context, nil
}

// Open creates a paused device player pulling from source.
func Open(sampleRate int, source SampleSource) (*Device, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	pl.SetBufferSize(BufferTime)
	return &Device{player: pl, reader: reader}, nil
}

func (d *Device) Play()  { d.player.Play() }
func (d *Device) Pause() { d.player.Pause() }

func (d *Device) IsPlaying() bool { return d.player.IsPlaying() }

// Position returns what the listener has actually heard so far.
func (d *Device) Position() time.Duration {
	return d.player.Position()
}

func (d *Device) Close() error {
	d.player.Pause()
	if err := d.player.Close(); err != nil {
		return err
	}
	return d.reader.Close()
}
