package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/scythe504/whos-human-backend/internal"
)

const defaultGeminiModel = "gemini-2.0-flash"

const chatSystemInstruction = "You are a participant in a casual group chat game. Reply with one or two sentences, 20-30 words, proper grammar and punctuation. Never mention that you are an AI."

// GeminiConfig holds configuration for the Gemini generator.
type GeminiConfig struct {
	APIKey          string
	Model           string
	Timeout         time.Duration
	Temperature     float32
	TopK            float32
	MaxOutputTokens int32
}

// DefaultGeminiConfig mirrors the sampling the chat personas were tuned with.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:          apiKey,
		Model:           defaultGeminiModel,
		Timeout:         8 * time.Second,
		Temperature:     0.8,
		TopK:            3,
		MaxOutputTokens: 120,
	}
}

// GeminiGenerator implements Generator on the Google Gen AI SDK.
type GeminiGenerator struct {
	client *genai.Client
	cfg    GeminiConfig
}

func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiGenerator{client: client, cfg: cfg}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(chatSystemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr(g.cfg.Temperature),
		TopK:              genai.Ptr(g.cfg.TopK),
		MaxOutputTokens:   g.cfg.MaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: gemini generate: %w", internal.ErrGenerationFailed, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: gemini returned no text", internal.ErrGenerationFailed)
	}
	return text, nil
}
