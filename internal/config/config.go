// Package config loads process configuration from the environment, after an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	GeminiAPIKey      string        `env:"GEMINI_API_KEY"`
	GeminiModel       string        `env:"GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT" envDefault:"10s"`

	// DatabaseURL enables the game archive when set.
	DatabaseURL string `env:"DATABASE_URL"`
	// ContentFile replaces the built-in themes and personas.
	ContentFile    string `env:"CONTENT_FILE"`
	AIParticipants int    `env:"AI_PARTICIPANTS" envDefault:"4"`

	// GameIdleTimeout removes a game this long after its last client disconnects.
	GameIdleTimeout time.Duration `env:"GAME_IDLE_TIMEOUT" envDefault:"2m"`
	// GameFinishedTTL removes a game this long after game over.
	GameFinishedTTL time.Duration `env:"GAME_FINISHED_TTL" envDefault:"5m"`
}

// Load reads the given .env files (".env" when none are named) and parses the
// environment. Missing .env files are not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.GenerationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("GENERATION_TIMEOUT must be positive"))
	}
	if c.GameIdleTimeout <= 0 || c.GameFinishedTTL <= 0 {
		errs = append(errs, fmt.Errorf("GAME_IDLE_TIMEOUT and GAME_FINISHED_TTL must be positive"))
	}
	if c.AIParticipants < 2 || c.AIParticipants > 8 {
		errs = append(errs, fmt.Errorf("AI_PARTICIPANTS %d, want 2-8", c.AIParticipants))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
