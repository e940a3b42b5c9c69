package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hivedesk/onboarding/backend/config"
	"google.golang.org/genai"
)

// GeminiAnalyzer sends documents to a Gemini model and parses its JSON verdict
type GeminiAnalyzer struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	timeout     time.Duration
}

// NewAnalyzer picks the analyzer for the configured AI mode
func NewAnalyzer(ctx context.Context, cfg *config.AIConfig) (Analyzer, error) {
	if cfg.Mock() {
		return MockAnalyzer{}, nil
	}
	return NewGeminiAnalyzer(ctx, cfg)
}

func NewGeminiAnalyzer(ctx context.Context, cfg *config.AIConfig) (*GeminiAnalyzer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required when ai.mode is live")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiAnalyzer{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxOutputTokens,
		timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
	}, nil
}

func (a *GeminiAnalyzer) Name() string {
	return "gemini:" + a.model
}

func (a *GeminiAnalyzer) Analyze(ctx context.Context, in AnalyzeInput) (*Finding, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	var parts []*genai.Part
	if inlineSupported(in.MimeType) {
		parts = append(parts, genai.NewPartFromBytes(in.Content, normalizeMime(in.MimeType)))
	}
	parts = append(parts, genai.NewPartFromText(BuildPrompt(in)))

	resp, err := a.client.Models.GenerateContent(ctx, a.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
			Temperature:       genai.Ptr(a.temperature),
			MaxOutputTokens:   a.maxTokens,
			ResponseMIMEType:  "application/json",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("gemini returned an empty response")
	}
	return ParseFinding(text)
}

// normalizeMime maps the legacy image/jpg alias to the registered type
func normalizeMime(mimeType string) string {
	if strings.EqualFold(mimeType, "image/jpg") {
		return "image/jpeg"
	}
	return strings.ToLower(mimeType)
}
