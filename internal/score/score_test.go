package score

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Composition {
	return &Composition{
		ID:       "abc123",
		Producer: "Metro Boomin",
		Vibe:     "Dark/Evil",
		BPM:      140,
		Layers: []MelodyLayer{
			{Name: "Sub", Instrument: Bass, Notes: []NoteEvent{{Note: "C2", Time: "0:0:0", Duration: "4n", Velocity: 0.9}}},
			{Name: "Keys", Instrument: Piano},
		},
	}
}

func TestValidateAcceptsWellFormedComposition(t *testing.T) {
	require.NoError(t, sample().Validate())
}

func TestValidateRejectsStructuralProblems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Composition)
	}{
		{"missing id", func(c *Composition) { c.ID = "" }},
		{"bpm too low", func(c *Composition) { c.BPM = 20 }},
		{"bpm too high", func(c *Composition) { c.BPM = 400 }},
		{"bpm NaN", func(c *Composition) { c.BPM = math.NaN() }},
		{"nil layers", func(c *Composition) { c.Layers = nil }},
		{"unnamed layer", func(c *Composition) { c.Layers[0].Name = " " }},
		{"no instrument", func(c *Composition) { c.Layers[1].Instrument = "" }},
		{"velocity above one", func(c *Composition) { c.Layers[0].Notes[0].Velocity = 1.5 }},
		{"velocity NaN", func(c *Composition) { c.Layers[0].Notes[0].Velocity = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := sample()
			tt.mutate(c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidComposition)
		})
	}
}

func TestValidateAllowsUnknownInstrument(t *testing.T) {
	c := sample()
	c.Layers[0].Instrument = "theremin"
	assert.NoError(t, c.Validate())
	assert.False(t, c.Layers[0].Instrument.Known())
}

func TestReconcileTempoOnlyOnce(t *testing.T) {
	c := sample()
	require.NoError(t, c.ReconcileTempo(90))
	assert.Equal(t, 90.0, c.BPM)
	assert.ErrorIs(t, c.ReconcileTempo(100), ErrTempoLocked)
	assert.Equal(t, 90.0, c.BPM)
}

func TestReconcileTempoRejectsOutOfRange(t *testing.T) {
	c := sample()
	assert.ErrorIs(t, c.ReconcileTempo(10), ErrInvalidComposition)
	assert.ErrorIs(t, c.ReconcileTempo(math.NaN()), ErrInvalidComposition)
	assert.Equal(t, 140.0, c.BPM)
	require.NoError(t, c.ReconcileTempo(120))
}

func TestDurationIsFourBars(t *testing.T) {
	c := sample()
	assert.InDelta(t, 60.0/140*16, c.Duration(), 1e-12)
}

func TestSelect(t *testing.T) {
	c := sample()
	all, err := c.Select("")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := c.Select("Keys")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, Piano, one[0].Instrument)

	_, err = c.Select("Missing")
	assert.ErrorIs(t, err, ErrLayerNotFound)
}

func TestFilename(t *testing.T) {
	c := sample()
	assert.Equal(t, "Metro_Boomin.wav", Filename(c, nil, ".wav"))
	assert.Equal(t, "Metro_Boomin_bass.mid", Filename(c, &c.Layers[0], "mid"))
	c.Producer = ""
	assert.Equal(t, "abc123.wav", Filename(c, nil, "wav"))
}

func TestDecodeRejectsMalformedDocument(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"id": "x", "bpm": "fast"}`))
	assert.ErrorIs(t, err, ErrInvalidComposition)

	_, err = Decode(strings.NewReader(`{"id": "x", "bpm": 120}`))
	assert.ErrorIs(t, err, ErrInvalidComposition)
}

func TestDecode(t *testing.T) {
	doc := `{"id":"q1","producer":"Zaytoven","bpm":145,"layers":[{"name":"Run","instrument":"piano","notes":[{"note":"E4","time":"0:1:2","duration":"16n","velocity":0.7}]}],"createdAt":1700000000000}`
	c, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "Zaytoven", c.Producer)
	assert.Equal(t, []Instrument{Piano}, c.Instruments())
	assert.Equal(t, "0:1:2", c.Layers[0].Notes[0].Time)
}
