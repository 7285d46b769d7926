package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/jaxi-taxi/jaxitaxi/internal/lighting"
)

// Analyzer turns an audio clip into a lighting suggestion.
type Analyzer interface {
	Analyze(ctx context.Context, audioDataURI, currentSettings string) (lighting.Suggestion, error)
}

// Gemini analyzes audio with a Gemini model. There is no retry: a failed
// call is returned to the caller, which picks its own fallback.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
	baseURL     string
}

// Option configures a Gemini analyzer.
type Option func(*Gemini)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(g *Gemini) {
		g.temperature = t
	}
}

// WithTimeout bounds a single analysis call.
func WithTimeout(d time.Duration) Option {
	return func(g *Gemini) {
		g.timeout = d
	}
}

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(u string) Option {
	return func(g *Gemini) {
		g.baseURL = u
	}
}

func NewGemini(ctx context.Context, apiKey, model string, opts ...Option) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key not configured")
	}

	g := &Gemini{
		model:       model,
		temperature: 0.9,
		timeout:     60 * time.Second,
	}
	for _, o := range opts {
		o(g)
	}
	if g.model == "" {
		g.model = "gemini-2.5-flash"
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string {
	return g.model
}

// Analyze sends the clip and the serialized previous settings to the model.
func (g *Gemini) Analyze(ctx context.Context, audioDataURI, currentSettings string) (lighting.Suggestion, error) {
	mimeType, data, err := ParseDataURI(audioDataURI)
	if err != nil {
		return lighting.Suggestion{}, fmt.Errorf("audio input: %w", err)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(buildPrompt(currentSettings)),
			genai.NewPartFromBytes(data, mimeType),
		}, genai.RoleUser),
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   suggestionSchema,
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return lighting.Suggestion{}, fmt.Errorf("gemini analyze: %w", err)
	}

	s, err := parseSuggestion(resp.Text())
	if err != nil {
		return lighting.Suggestion{}, err
	}

	slog.Info("🎛️ AI suggested lighting",
		"model", g.model,
		"effect", s.Effect,
		"primary", s.PrimaryColor,
		"secondary", s.SecondaryColor,
		"intensity", s.Intensity,
		"took", time.Since(start).Round(time.Millisecond),
	)
	return s, nil
}

// rawSuggestion accepts numbers the model may send as floats.
type rawSuggestion struct {
	PrimaryColor    string  `json:"primaryColor"`
	SecondaryColor  string  `json:"secondaryColor"`
	Intensity       float64 `json:"intensity"`
	Effect          string  `json:"effect"`
	Speed           float64 `json:"speed"`
	EffectIntensity float64 `json:"effectIntensity"`
}

func parseSuggestion(text string) (lighting.Suggestion, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if text == "" {
		return lighting.Suggestion{}, errors.New("empty response from gemini")
	}

	var raw rawSuggestion
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return lighting.Suggestion{}, fmt.Errorf("parse suggestion JSON (%s): %w", text, err)
	}

	return lighting.Suggestion{
		PrimaryColor:    strings.TrimSpace(raw.PrimaryColor),
		SecondaryColor:  strings.TrimSpace(raw.SecondaryColor),
		Intensity:       raw.Intensity,
		Effect:          strings.TrimSpace(raw.Effect),
		Speed:           int(math.Round(raw.Speed)),
		EffectIntensity: int(math.Round(raw.EffectIntensity)),
	}, nil
}
