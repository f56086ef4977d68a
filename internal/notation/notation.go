// Package notation converts the musical tokens found in a Composition
// (transport positions, note values, scientific pitch) into absolute
// seconds and MIDI note numbers. Every renderer and exporter goes through
// these functions so their timing and pitch always agree.
package notation

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// BeatsPerBar is the meter assumed by bar:beat:sixteenth positions.
const BeatsPerBar = 4

// TicksPerBeat is the resolution of the "Ni" tick token.
const TicksPerBeat = 192

var ErrBadToken = errors.New("unparseable token")

var (
	noteValueRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)([ntmi])(\.?)$`)
	pitchRe     = regexp.MustCompile(`^([A-Ga-g])(##|bb|#|b|x)?(-?\d+)$`)
)

var pitchClass = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

// Beats parses a time or duration token into beats. Accepted forms:
//
//	"1:2:3"   bar:beat:sixteenth (trailing fields optional, fractions allowed)
//	"4n"      note value (1n = whole note), "8n." dotted, "8t" triplet
//	"2m"      measures
//	"96i"     ticks at TicksPerBeat
//	"a + b"   sum of any of the above
//
// Plain numbers are seconds and cannot be expressed in beats without a
// tempo; use Seconds for those.
func Beats(token string) (float64, error) {
	beats, secs, err := parse(token)
	if err != nil {
		return 0, err
	}
	if secs != 0 {
		return 0, fmt.Errorf("%w: %q is in seconds", ErrBadToken, token)
	}
	return beats, nil
}

// Seconds converts a time or duration token to seconds at bpm.
func Seconds(token string, bpm float64) (float64, error) {
	if bpm <= 0 {
		return 0, fmt.Errorf("%w: bpm must be positive", ErrBadToken)
	}
	beats, secs, err := parse(token)
	if err != nil {
		return 0, err
	}
	return secs + beats*60/bpm, nil
}

// ParseTime converts a start-time token to seconds. Negative positions are
// rejected.
func ParseTime(token string, bpm float64) (float64, error) {
	s, err := Seconds(token, bpm)
	if err != nil {
		return 0, err
	}
	if s < 0 {
		return 0, fmt.Errorf("%w: negative time %q", ErrBadToken, token)
	}
	return s, nil
}

// ParseDuration converts a duration token to seconds. Durations must be
// strictly positive.
func ParseDuration(token string, bpm float64) (float64, error) {
	s, err := Seconds(token, bpm)
	if err != nil {
		return 0, err
	}
	if s <= 0 {
		return 0, fmt.Errorf("%w: non-positive duration %q", ErrBadToken, token)
	}
	return s, nil
}

func parse(token string) (beats float64, secs float64, err error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, 0, fmt.Errorf("%w: empty", ErrBadToken)
	}
	for _, term := range strings.Split(token, "+") {
		b, s, err := parseTerm(strings.TrimSpace(term))
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q", ErrBadToken, token)
		}
		beats += b
		secs += s
	}
	return beats, secs, nil
}

func parseTerm(term string) (beats float64, secs float64, err error) {
	if term == "" {
		return 0, 0, ErrBadToken
	}
	if strings.Contains(term, ":") {
		fields := strings.Split(term, ":")
		if len(fields) > 3 {
			return 0, 0, ErrBadToken
		}
		weights := [3]float64{BeatsPerBar, 1, 0.25}
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, 0, ErrBadToken
			}
			beats += v * weights[i]
		}
		return beats, 0, nil
	}
	if m := noteValueRe.FindStringSubmatch(term); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		switch m[2] {
		case "n":
			if n == 0 {
				return 0, 0, ErrBadToken
			}
			beats = BeatsPerBar / n
		case "t":
			if n == 0 {
				return 0, 0, ErrBadToken
			}
			beats = BeatsPerBar / n * 2 / 3
		case "m":
			beats = n * BeatsPerBar
		case "i":
			beats = n / TicksPerBeat
		}
		if m[3] == "." {
			beats *= 1.5
		}
		return beats, 0, nil
	}
	v, err := strconv.ParseFloat(term, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, 0, ErrBadToken
	}
	return 0, v, nil
}

// ParsePitch converts scientific pitch notation ("C4" = 60, "Bb2", "F#3")
// or a bare MIDI number to a MIDI note number in [0, 127].
func ParsePitch(token string) (int, error) {
	token = strings.TrimSpace(token)
	if n, err := strconv.Atoi(token); err == nil {
		if n < 0 || n > 127 {
			return 0, fmt.Errorf("%w: midi note %d out of range", ErrBadToken, n)
		}
		return n, nil
	}
	m := pitchRe.FindStringSubmatch(token)
	if m == nil {
		return 0, fmt.Errorf("%w: pitch %q", ErrBadToken, token)
	}
	pc := pitchClass[strings.ToLower(m[1])[0]]
	switch m[2] {
	case "#":
		pc++
	case "##", "x":
		pc += 2
	case "b":
		pc--
	case "bb":
		pc -= 2
	}
	octave, _ := strconv.Atoi(m[3])
	midi := (octave+1)*12 + pc
	if midi < 0 || midi > 127 {
		return 0, fmt.Errorf("%w: pitch %q out of range", ErrBadToken, token)
	}
	return midi, nil
}

// MIDIToFrequency returns the equal-tempered frequency of note (A4 = 440 Hz).
func MIDIToFrequency(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}
