package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Token        string  `env:"TOKEN,required,notEmpty"`
	AllowedUsers []int64 `env:"ALLOWED_USERS"`
	DBPath       string  `env:"DB_PATH"                 envDefault:"db.sqlite"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	Model         string `env:"MODEL"           envDefault:"gpt-5-mini"`

	SummaryBound     int `env:"SUMMARY_BOUND"      envDefault:"4096"`
	SummaryMaxPasses int `env:"SUMMARY_MAX_PASSES" envDefault:"5"`

	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"10m"`
	HistoryRetention   time.Duration `env:"HISTORY_RETENTION"    envDefault:"720h"`
	PageFetchTimeout   time.Duration `env:"PAGE_FETCH_TIMEOUT"   envDefault:"20s"`
}

// LoadConfig reads the optional .env file at path into the environment and
// parses the environment.
func LoadConfig(path string) (Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err = cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	var errs []error

	if c.SummaryBound <= 0 {
		errs = append(errs, fmt.Errorf("SUMMARY_BOUND must be positive, got %d", c.SummaryBound))
	}

	if c.SummaryMaxPasses <= 0 {
		errs = append(errs, fmt.Errorf("SUMMARY_MAX_PASSES must be positive, got %d", c.SummaryMaxPasses))
	}

	if c.SessionIdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive, got %s", c.SessionIdleTimeout))
	}

	if c.HistoryRetention <= 0 {
		errs = append(errs, fmt.Errorf("HISTORY_RETENTION must be positive, got %s", c.HistoryRetention))
	}

	return errors.Join(errs...)
}

// Allowed reports whether userID may use the bot. An empty list allows
// everyone.
func (c Config) Allowed(userID int64) bool {
	return len(c.AllowedUsers) == 0 || slices.Contains(c.AllowedUsers, userID)
}
