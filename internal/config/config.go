package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/subosito/gotenv"
)

// Placeholder is used for unset credentials. The service rejects it, so a
// missing value surfaces as a transport or authentication failure.
const Placeholder = "SETCONFIG!"

const (
	ProviderLanguage = "language"
	ProviderOpenAI   = "openai"
)

type Config struct {
	Endpoint string `env:"AI_URL"    envDefault:"SETCONFIG!"`
	APIKey   string `env:"AI_SECRET" envDefault:"SETCONFIG!"`

	Provider     string `env:"PROVIDER"       envDefault:"language"`
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	OpenAIModel  string `env:"OPENAI_MODEL"`

	Language      string `env:"DOCUMENT_LANGUAGE" envDefault:"en"`
	SentenceCount int    `env:"SUMMARY_SENTENCES"`
	SortBy        string `env:"SUMMARY_ORDER"`

	PollInitialInterval time.Duration `env:"POLL_INITIAL_INTERVAL" envDefault:"1s"`
	PollMaxInterval     time.Duration `env:"POLL_MAX_INTERVAL"     envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads envFile (when it exists) into the process environment without
// overriding variables that are already set, then parses Config.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := gotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	}

	return parse(nil)
}

// parse reads environment, or the process environment when it is nil.
func parse(environment map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environment}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderLanguage, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}

	switch c.SortBy {
	case "", "Offset", "Rank":
	default:
		errs = append(errs, fmt.Errorf("unknown summary order %q", c.SortBy))
	}

	if c.SentenceCount < 0 {
		errs = append(errs, fmt.Errorf("summary sentences must not be negative: %d", c.SentenceCount))
	}

	if c.PollInitialInterval <= 0 || c.PollMaxInterval < c.PollInitialInterval {
		errs = append(errs, fmt.Errorf(
			"poll intervals are invalid (initial = %s, max = %s)",
			c.PollInitialInterval,
			c.PollMaxInterval,
		))
	}

	return errors.Join(errs...)
}

// UsesPlaceholder reports whether the endpoint or key was left unset.
func (c Config) UsesPlaceholder() bool {
	return c.Endpoint == Placeholder || c.APIKey == Placeholder
}
