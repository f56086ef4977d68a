package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/beatsmith-go"
	"github.com/cbegin/beatsmith-go/internal/audio"
	"github.com/cbegin/beatsmith-go/internal/generate"
	"github.com/cbegin/beatsmith-go/internal/score"
)

const compositionJSON = `{
  "id": "c1",
  "producer": "Metro Boomin",
  "category": "Trap & Dark",
  "vibe": "Dark/Evil",
  "key": "C",
  "bpm": 140,
  "createdAt": 1700000000000,
  "layers": [
    {"name": "Sub", "instrument": "bass", "notes": [{"note": "C2", "time": "0:0:0", "duration": "4n", "velocity": 0.9}]},
    {"name": "Bells", "instrument": "bell", "notes": [{"note": "G5", "time": "0:2:0", "duration": "8n", "velocity": 0.6}]}
  ]
}`

type nopOutput struct{}

func (nopOutput) Play()        {}
func (nopOutput) Pause()       {}
func (nopOutput) Close() error { return nil }

type stubGenerator struct {
	comp *score.Composition
	err  error
}

func (g stubGenerator) Generate(context.Context, generate.Request) (*score.Composition, error) {
	return g.comp, g.err
}

func newTestServer(t *testing.T, gen beatsmith.Generator) *httptest.Server {
	t.Helper()
	e, err := beatsmith.NewEngine(
		beatsmith.WithSampleRate(8000),
		beatsmith.WithOutput(func(int, audio.SampleSource) (beatsmith.Output, error) { return nopOutput{}, nil }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	session := beatsmith.NewSession(e, beatsmith.NewRenderer(beatsmith.WithSampleRate(8000)), gen)
	srv := httptest.NewServer(New(Config{}, session).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, r)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, body := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestPresets(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, body := do(t, srv, http.MethodGet, "/api/presets", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]json.RawMessage](t, body)
	assert.Contains(t, got, "producers")
	assert.Contains(t, got, "vibes")
	assert.Contains(t, got, "keys")
}

func TestCompositionLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, _ := do(t, srv, http.MethodGet, "/api/composition", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPut, "/api/composition", compositionJSON)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, srv, http.MethodGet, "/api/composition", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	c := decode[score.Composition](t, body)
	assert.Equal(t, "c1", c.ID)
	assert.Len(t, c.Layers, 2)

	resp, body = do(t, srv, http.MethodPut, "/api/composition", `{"id": "x", "bpm": 900, "layers": []}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "error")

	resp, _ = do(t, srv, http.MethodPut, "/api/composition", `{not json`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	_, body = do(t, srv, http.MethodGet, "/api/composition", "")
	assert.Equal(t, "c1", decode[score.Composition](t, body).ID, "rejected documents leave the current one")
}

func TestGenerate(t *testing.T) {
	c, err := score.Decode(strings.NewReader(compositionJSON))
	require.NoError(t, err)

	srv := newTestServer(t, stubGenerator{comp: c})
	resp, body := do(t, srv, http.MethodPost, "/api/compositions", `{"producer": "Metro Boomin", "vibe": "Dark/Evil"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "c1", decode[score.Composition](t, body).ID)

	resp, _ = do(t, srv, http.MethodPost, "/api/compositions", `{"producer": 3}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"bad request", &generate.GenerationError{Stage: generate.StageRequest, Cause: errors.New("producer is required")}, http.StatusBadRequest},
		{"model failure", &generate.GenerationError{Stage: generate.StageCall, Cause: errors.New("quota")}, http.StatusBadGateway},
		{"bad output", &generate.GenerationError{Stage: generate.StageDecode, Cause: errors.New("eof")}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, stubGenerator{err: tt.err})
			resp, _ := do(t, srv, http.MethodPost, "/api/compositions", `{"producer": "Metro Boomin"}`)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestExports(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, _ := do(t, srv, http.MethodGet, "/api/export.wav", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodPut, "/api/composition", compositionJSON)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, srv, http.MethodGet, "/api/export.wav", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="Metro_Boomin.wav"`)
	assert.Equal(t, "RIFF", string(body[:4]))

	resp, body = do(t, srv, http.MethodGet, "/api/export.mid?layer=Bells", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/midi", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `filename="Metro_Boomin_bell.mid"`)
	assert.Equal(t, "MThd", string(body[:4]))

	resp, _ = do(t, srv, http.MethodGet, "/api/export.mid?layer=Nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTransport(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, _ := do(t, srv, http.MethodPost, "/api/transport/start", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	do(t, srv, http.MethodPut, "/api/composition", compositionJSON)

	resp, body := do(t, srv, http.MethodPost, "/api/transport/start", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := decode[map[string]any](t, body)
	assert.Equal(t, "playing", state["state"])
	assert.EqualValues(t, 2, state["scheduledEvents"])

	resp, body = do(t, srv, http.MethodPost, "/api/transport/stop", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "loaded", decode[map[string]any](t, body)["state"])

	_, body = do(t, srv, http.MethodGet, "/api/transport", "")
	assert.Equal(t, "loaded", decode[map[string]any](t, body)["state"])
}

func TestMix(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, body := do(t, srv, http.MethodPut, "/api/mix/master", `{"db": 100}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 6.0, decode[mixResponse](t, body).MasterDB)

	resp, body = do(t, srv, http.MethodPut, "/api/mix/tracks/bass", `{"gainDb": -12, "muted": true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mix := decode[mixResponse](t, body)
	assert.Equal(t, beatsmith.TrackSettings{GainDB: -12, Muted: true}, mix.Tracks[score.Bass])

	resp, _ = do(t, srv, http.MethodPut, "/api/mix/tracks/bass", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, srv, http.MethodPut, "/api/mix/master", `{"gain": 1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body = do(t, srv, http.MethodGet, "/api/mix", "")
	assert.True(t, decode[mixResponse](t, body).Tracks[score.Bass].Muted)
}

func TestSpectrum(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, body := do(t, srv, http.MethodGet, "/api/spectrum?bins=16", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[struct {
		Level    float64   `json:"level"`
		Spectrum []float64 `json:"spectrum"`
	}](t, body)
	assert.Len(t, got.Spectrum, 16)
}

func TestLiveRoutesNeedEngine(t *testing.T) {
	session := beatsmith.NewSession(nil, beatsmith.NewRenderer(), nil)
	srv := httptest.NewServer(New(Config{}, session).Handler())
	defer srv.Close()

	for _, path := range []string{"/api/mix", "/api/spectrum", "/api/transport"} {
		resp, _ := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
	}
}
