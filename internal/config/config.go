// Package config reads runtime settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/manash/azimg/pkg/models"
)

const DefaultDotEnvFile = ".env"

// Settings are the environment-provided settings. Empty connection fields
// leave the stored configuration untouched.
type Settings struct {
	Endpoint       string `env:"AZURE_OPENAI_ENDPOINT"`
	APIKey         string `env:"AZURE_OPENAI_API_KEY"`
	DeploymentName string `env:"AZURE_OPENAI_DEPLOYMENT"`
	APIVersion     string `env:"AZURE_OPENAI_API_VERSION"`

	LogLevel   string `env:"AZIMG_LOG_LEVEL" envDefault:"info"`
	TimeoutSec int    `env:"AZIMG_TIMEOUT_SEC" envDefault:"120"`
}

// Load merges the .env files (if present) under environ and parses the
// result. Variables already in environ win over the files.
func Load(environ []string, dotEnvFiles ...string) (*Settings, error) {
	vars := make(map[string]string)

	for _, file := range dotEnvFiles {
		values, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		for k, v := range values {
			if _, ok := vars[k]; !ok {
				vars[k] = v
			}
		}
	}

	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			vars[k] = v
		}
	}

	var s Settings
	if err := env.ParseWithOptions(&s, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if s.TimeoutSec < 0 {
		return nil, fmt.Errorf("invalid environment: AZIMG_TIMEOUT_SEC must not be negative")
	}
	return &s, nil
}

// LoadDefault reads the process environment and ./.env.
func LoadDefault() (*Settings, error) {
	return Load(os.Environ(), DefaultDotEnvFile)
}

// Patch returns the configuration overrides carried by the environment.
func (s *Settings) Patch() models.ConfigPatch {
	var p models.ConfigPatch
	if s.Endpoint != "" {
		p.Endpoint = &s.Endpoint
	}
	if s.APIKey != "" {
		p.APIKey = &s.APIKey
	}
	if s.DeploymentName != "" {
		p.DeploymentName = &s.DeploymentName
	}
	if s.APIVersion != "" {
		p.APIVersion = &s.APIVersion
	}
	return p
}

func (s *Settings) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// Level maps LogLevel onto a slog level; unknown names fall back to info.
func (s *Settings) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
