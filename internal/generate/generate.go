// Package generate asks a Gemini model for a Composition in a producer's
// style.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/cbegin/beatsmith-go/internal/logger"
	"github.com/cbegin/beatsmith-go/internal/score"
)

const mimeTypeJSON = "application/json"

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-3-flash-preview"

var ErrGeneration = errors.New("generation failed")

// Generation stages reported by GenerationError.
const (
	StageRequest  = "request"
	StageCall     = "call"
	StageDecode   = "decode"
	StageValidate = "validate"
)

// GenerationError reports which step of a generation failed. It matches
// ErrGeneration with errors.Is.
type GenerationError struct {
	Stage string
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%v at %s: %v", ErrGeneration, e.Stage, e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

func (e *GenerationError) Is(target error) bool { return target == ErrGeneration }

// Request is one preset selection. BPM, when positive, overrides the tempo
// the model picks.
type Request struct {
	Producer string  `json:"producer"`
	Category string  `json:"category"`
	Vibe     string  `json:"vibe"`
	Key      string  `json:"key"`
	BPM      float64 `json:"bpm,omitempty"`
}

// ContentGenerator is the model call; *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client generates compositions.
type Client struct {
	models ContentGenerator
	model  string
	now    func() time.Time
	newID  func() string
}

// NewClient connects to the Gemini API.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, &GenerationError{Stage: StageRequest, Cause: errors.New("GEMINI_API_KEY is not set")}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return NewWithModels(client.Models, model), nil
}

// NewWithModels builds a client over any ContentGenerator.
func NewWithModels(models ContentGenerator, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		models: models,
		model:  model,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

type modelOutput struct {
	BPM    float64             `json:"bpm"`
	Layers []score.MelodyLayer `json:"layers"`
}

// Generate returns a validated composition for req.
func (c *Client) Generate(ctx context.Context, req Request) (*score.Composition, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: mimeTypeJSON,
		ResponseSchema:   Schema(),
	}
	contents := []*genai.Content{genai.NewContentFromText(Prompt(req), genai.RoleUser)}

	spanCtx, span := logger.StartGenerationSpan(ctx, c.model)
	resp, err := c.models.GenerateContent(spanCtx, c.model, contents, config)
	logger.LogGenerationRequest(span, c.model, err, logger.Fields{
		"producer": req.Producer,
		"vibe":     req.Vibe,
	})
	if err != nil {
		return nil, &GenerationError{Stage: StageCall, Cause: err}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, &GenerationError{Stage: StageDecode, Cause: errors.New("model response did not include any output text")}
	}
	var out modelOutput
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, &GenerationError{Stage: StageDecode, Cause: err}
	}

	comp := &score.Composition{
		ID:        c.newID(),
		Producer:  req.Producer,
		Category:  req.Category,
		Vibe:      req.Vibe,
		Key:       req.Key,
		BPM:       out.BPM,
		Layers:    out.Layers,
		CreatedAt: c.now().UnixMilli(),
	}
	if req.BPM > 0 {
		if err := comp.ReconcileTempo(req.BPM); err != nil {
			return nil, &GenerationError{Stage: StageValidate, Cause: err}
		}
	}
	if err := comp.Validate(); err != nil {
		return nil, &GenerationError{Stage: StageValidate, Cause: err}
	}
	return comp, nil
}
