package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables that steer loading itself.
const (
	EnvPrefix  = "LEADFLOW_"
	EnvConfig  = "LEADFLOW_CONFIG"
	EnvDotenv  = "LEADFLOW_ENV_FILE"
	defaultEnv = ".env"
)

// LoadOption adjusts how Load finds its sources.
type LoadOption func(*loadOptions)

type loadOptions struct {
	file string
}

// WithFile names the YAML file to load in place of LEADFLOW_CONFIG.
// An empty path keeps the environment's choice.
func WithFile(path string) LoadOption {
	return func(o *loadOptions) {
		if path != "" {
			o.file = path
		}
	}
}

// Load builds a Config by layering defaults, optional files, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New)
//  2. dotenv file (LEADFLOW_ENV_FILE, or ./.env when present); never overrides
//     variables already set in the process environment
//  3. file (YAML) named by WithFile or LEADFLOW_CONFIG
//  4. env (prefix LEADFLOW_)
func Load(ctx context.Context, opts ...LoadOption) (*Config, error) {
	lo := loadOptions{file: os.Getenv(EnvConfig)}
	for _, opt := range opts {
		opt(&lo)
	}


	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := New()

	if err := loadDotenv(); err != nil {
		return nil, fmt.Errorf("%w: dotenv: %w", ErrLoadConfig, err)
	}

	k := koanf.New(".")

	if path := lo.file; path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// LEADFLOW_IMPORT_WORKERS -> import_workers. Underscores are kept to
	// match the koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func loadDotenv() error {
	path := os.Getenv(EnvDotenv)
	explicit := path != ""
	if !explicit {
		path = defaultEnv
	}
	err := godotenv.Load(path)
	if err != nil && !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
