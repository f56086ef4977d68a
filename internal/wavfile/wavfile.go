// Package wavfile packages float sample buffers as 16-bit PCM RIFF/WAVE.
package wavfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	BitDepth  = 16
	pcmFormat = 1
)

var ErrNotWAV = errors.New("not a valid wav stream")

// Audio is decoded interleaved PCM scaled to [-1, 1].
type Audio struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

// Frames returns the number of sample frames.
func (a *Audio) Frames() int {
	if a.Channels == 0 {
		return 0
	}
	return len(a.Samples) / a.Channels
}

// Quantize converts one float sample to 16-bit PCM. Input is clamped to
// [-1, 1]; negative values scale by 0x8000, positive by 0x7fff, and the
// result truncates toward zero.
func Quantize(v float32) int {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	if v < 0 {
		return int(v * 0x8000)
	}
	return int(v * 0x7fff)
}

// Encode writes interleaved samples as a 16-bit PCM WAV stream.
func Encode(w io.WriteSeeker, sampleRate, channels int, samples []float32) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("wavfile: invalid format %d Hz x %d", sampleRate, channels)
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: channels,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: BitDepth,
	}
	for i, v := range samples {
		buf.Data[i] = Quantize(v)
	}
	enc := wav.NewEncoder(w, sampleRate, BitDepth, channels, pcmFormat)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wavfile: write: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wavfile: close: %w", err)
	}
	return nil
}

// EncodeBytes encodes samples into a complete in-memory WAV file.
func EncodeBytes(sampleRate, channels int, samples []float32) ([]byte, error) {
	var f memFile
	if err := Encode(&f, sampleRate, channels, samples); err != nil {
		return nil, err
	}
	return f.buf, nil
}

// Decode reads a PCM WAV stream.
func Decode(r io.ReadSeeker) (*Audio, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotWAV
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavfile: read: %w", err)
	}
	out := &Audio{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		Samples:    make([]float32, len(pcm.Data)),
	}
	for i, v := range pcm.Data {
		if v < 0 {
			out.Samples[i] = float32(v) / 0x8000
		} else {
			out.Samples[i] = float32(v) / 0x7fff
		}
	}
	return out, nil
}

// DecodeBytes decodes an in-memory WAV file.
func DecodeBytes(b []byte) (*Audio, error) {
	return Decode(bytes.NewReader(b))
}

// memFile is an in-memory io.WriteSeeker; the encoder seeks back to patch
// chunk sizes.
type memFile struct {
	buf []byte
	pos int
}

func (m *memFile) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		m.buf = append(m.buf, make([]byte, end-len(m.buf))...)
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(m.pos)
	case io.SeekEnd:
		base = int64(len(m.buf))
	default:
		return 0, fmt.Errorf("wavfile: bad whence %d", whence)
	}
	next := base + offset
	if next < 0 {
		return 0, fmt.Errorf("wavfile: negative seek to %d", next)
	}
	m.pos = int(next)
	return next, nil
}
