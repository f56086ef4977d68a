package generate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/cbegin/beatsmith-go/internal/score"
)

type fakeModels struct {
	text   string
	err    error
	model  string
	prompt string
	config *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

const validOutput = `{
  "bpm": 140,
  "layers": [
    {"name": "Sub", "instrument": "bass", "notes": [
      {"note": "C2", "time": "0:0:0", "duration": "4n", "velocity": 0.9}
    ]},
    {"name": "Bells", "instrument": "bell", "notes": [
      {"note": "G5", "time": "0:1:0", "duration": "8n", "velocity": 0.6}
    ]}
  ]
}`

func newTestClient(f *fakeModels) *Client {
	c := NewWithModels(f, "")
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }
	c.newID = func() string { return "fixed-id" }
	return c
}

func TestGenerate(t *testing.T) {
	f := &fakeModels{text: validOutput}
	c := newTestClient(f)
	comp, err := c.Generate(context.Background(), Request{Producer: "Metro Boomin", Vibe: "Dark/Evil", Key: "C#"})
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, f.model)
	assert.Equal(t, "application/json", f.config.ResponseMIMEType)
	assert.Equal(t, []string{"bpm", "layers"}, f.config.ResponseSchema.Required)
	assert.Contains(t, f.prompt, "legendary producer: Metro Boomin (Trap)")
	assert.Contains(t, f.prompt, "Musical Key: C#.")
	assert.Contains(t, f.prompt, "Exactly 4 Bars")

	assert.Equal(t, "fixed-id", comp.ID)
	assert.Equal(t, "Metro Boomin", comp.Producer)
	assert.Equal(t, "Trap", comp.Category)
	assert.Equal(t, "Dark/Evil", comp.Vibe)
	assert.Equal(t, 140.0, comp.BPM)
	assert.Equal(t, int64(1700000000000), comp.CreatedAt)
	require.Len(t, comp.Layers, 2)
	assert.Equal(t, score.Bass, comp.Layers[0].Instrument)
}

func TestGenerateTempoOverride(t *testing.T) {
	c := newTestClient(&fakeModels{text: validOutput})
	comp, err := c.Generate(context.Background(), Request{Producer: "Zaytoven", BPM: 150})
	require.NoError(t, err)
	assert.Equal(t, 150.0, comp.BPM)
	assert.ErrorIs(t, comp.ReconcileTempo(120), score.ErrTempoLocked)
}

func TestGenerateFailures(t *testing.T) {
	boom := errors.New("quota")
	cases := []struct {
		name  string
		f     *fakeModels
		req   Request
		stage string
	}{
		{"no producer", &fakeModels{text: validOutput}, Request{}, StageRequest},
		{"unknown producer", &fakeModels{text: validOutput}, Request{Producer: "Nobody"}, StageRequest},
		{"call", &fakeModels{err: boom}, Request{Producer: "RZA"}, StageCall},
		{"empty", &fakeModels{text: "  "}, Request{Producer: "RZA"}, StageDecode},
		{"not json", &fakeModels{text: "here is your beat"}, Request{Producer: "RZA"}, StageDecode},
		{"bad bpm", &fakeModels{text: `{"bpm": 900, "layers": []}`}, Request{Producer: "RZA"}, StageValidate},
		{"no layers", &fakeModels{text: `{"bpm": 90}`}, Request{Producer: "RZA"}, StageValidate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestClient(tc.f).Generate(context.Background(), tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrGeneration)
			var gerr *GenerationError
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, tc.stage, gerr.Stage)
		})
	}

	_, err := newTestClient(&fakeModels{err: boom}).Generate(context.Background(), Request{Producer: "RZA"})
	assert.ErrorIs(t, err, boom)
	_, err = newTestClient(&fakeModels{text: `{"bpm": 900, "layers": []}`}).Generate(context.Background(), Request{Producer: "RZA"})
	assert.ErrorIs(t, err, score.ErrInvalidComposition)
}

func TestCustomProducerNeedsCategory(t *testing.T) {
	c := newTestClient(&fakeModels{text: validOutput})
	comp, err := c.Generate(context.Background(), Request{Producer: "Someone New", Category: "Alternative"})
	require.NoError(t, err)
	assert.Equal(t, "Alternative", comp.Category)
	assert.Equal(t, Vibes[0], comp.Vibe)
	assert.Equal(t, "C", comp.Key)
}

func TestPresets(t *testing.T) {
	cat, ok := Category("dj paul")
	assert.True(t, ok)
	assert.Equal(t, "Horrorcore", cat, "first listing wins")
	assert.Len(t, Keys, 12)
	for _, g := range ProducerGroups {
		assert.NotEmpty(t, g.Producers, g.Category)
	}
}

func TestSchemaInstrumentsMatchScore(t *testing.T) {
	s := Schema()
	inst := s.Properties["layers"].Items.Properties["instrument"]
	require.NotNil(t, inst)
	assert.Len(t, inst.Enum, len(score.Instruments))
	assert.True(t, strings.Contains(strings.Join(inst.Enum, ","), "brass"))
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrGeneration)
}
