package beatsmith

import (
	"github.com/cbegin/beatsmith-go/internal/audio"
	"github.com/cbegin/beatsmith-go/internal/graph"
)

// DefaultSampleRate is used unless WithSampleRate is given.
const DefaultSampleRate = 44100

// Output is a running audio sink pulling from the engine.
type Output interface {
	Play()
	Pause()
	Close() error
}

// OutputFactory opens an Output over source. It is called once per engine,
// on the first Start.
type OutputFactory func(sampleRate int, source audio.SampleSource) (Output, error)

// DeviceOutput opens the system audio device.
func DeviceOutput(sampleRate int, source audio.SampleSource) (Output, error) {
	d, err := audio.Open(sampleRate, source)
	if err != nil {
		return nil, err
	}
	return d, nil
}

type Option func(*options)

type options struct {
	sampleRate  int
	topology    graph.Topology
	output      OutputFactory
	blockFrames int
}

func defaultOptions() options {
	return options{
		sampleRate:  DefaultSampleRate,
		topology:    graph.DefaultTopology(),
		output:      DeviceOutput,
		blockFrames: 4096,
	}
}

func buildOptions(opts []Option) options {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func WithSampleRate(sampleRate int) Option {
	return func(o *options) {
		if sampleRate > 0 {
			o.sampleRate = sampleRate
		}
	}
}

// WithTopology replaces the default signal graph description.
func WithTopology(t graph.Topology) Option {
	return func(o *options) {
		o.topology = t
	}
}

// WithOutput replaces the audio device, e.g. with a fake in tests.
func WithOutput(f OutputFactory) Option {
	return func(o *options) {
		if f != nil {
			o.output = f
		}
	}
}

// WithBlockFrames sets how many frames the offline renderer processes
// between cancellation checks.
func WithBlockFrames(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.blockFrames = n
		}
	}
}
