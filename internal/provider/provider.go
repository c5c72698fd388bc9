package provider

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/manash/azimg/pkg/models"
)

var (
	ErrAPIKeyRequired     = errors.New("API key is required")
	ErrEndpointRequired   = errors.New("endpoint is required")
	ErrDeploymentRequired = errors.New("deployment name is required")
)

// Provider performs generation and edit requests against a remote image API.
type Provider interface {
	Generate(ctx context.Context, req *models.GenerateRequest) (*models.Response, error)
	Edit(ctx context.Context, req *models.EditRequest) (*models.Response, error)
}

type Config struct {
	Endpoint       string
	APIKey         string
	DeploymentName string
	APIVersion     string
	TimeoutSec     int
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

func ConfigFrom(c models.Configuration) *Config {
	return &Config{
		Endpoint:       c.Endpoint,
		APIKey:         c.APIKey,
		DeploymentName: c.DeploymentName,
		APIVersion:     c.APIVersion,
	}
}

// Factory builds a Provider for the configuration current at submit time.
type Factory func(cfg *Config) (Provider, error)
