package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/scythe504/whos-human-backend/internal/content"
	"github.com/scythe504/whos-human-backend/internal/llm"
	"github.com/scythe504/whos-human-backend/internal/random"
)

func loadCatalog() (*content.Catalog, error) {
	if cfg.ContentFile == "" {
		return content.Default(), nil
	}
	return content.Load(cfg.ContentFile)
}

// newGenerator prefers Gemini and falls back to canned replies when no key is set
// or offline is requested.
func newGenerator(ctx context.Context, rng random.Source, offline bool) (llm.Generator, error) {
	if offline || cfg.GeminiAPIKey == "" {
		logger.Info("using offline generator")
		return llm.NewCanned(rng), nil
	}

	gc := llm.DefaultGeminiConfig(cfg.GeminiAPIKey)
	gc.Model = cfg.GeminiModel
	gc.Timeout = cfg.GenerationTimeout
	gen, err := llm.NewGeminiGenerator(ctx, gc)
	if err != nil {
		return nil, err
	}
	logger.Info("using gemini generator", zap.String("model", gc.Model))
	return gen, nil
}
