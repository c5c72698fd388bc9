package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/manash/azimg/internal/provider"
	"github.com/manash/azimg/pkg/models"
)

const (
	defaultTimeout = 120 * time.Second
	apiKeyHeader   = "api-key"
)

type apiRequest struct {
	Prompt            string `json:"prompt"`
	Model             string `json:"model"`
	Size              string `json:"size"`
	N                 int    `json:"n"`
	Quality           string `json:"quality"`
	OutputFormat      string `json:"output_format"`
	OutputCompression int    `json:"output_compression"`
	Stream            bool   `json:"stream"`
	User              string `json:"user,omitempty"`
}

type apiResponse struct {
	Created int64       `json:"created"`
	Data    []imageData `json:"data"`
}

type imageData struct {
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// Provider talks to an Azure OpenAI image deployment.
type Provider struct {
	endpoint   string
	apiKey     string
	deployment string
	apiVersion string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ provider.Provider = (*Provider)(nil)

func New(cfg *provider.Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, provider.ErrAPIKeyRequired
	}
	if cfg.Endpoint == "" {
		return nil, provider.ErrEndpointRequired
	}
	if cfg.DeploymentName == "" {
		return nil, provider.ErrDeploymentRequired
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = models.DefaultAPIVersion
	}

	timeout := defaultTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Provider{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		deployment: cfg.DeploymentName,
		apiVersion: apiVersion,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

func (p *Provider) Generate(ctx context.Context, req *models.GenerateRequest) (*models.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(buildAPIRequest(req))
	if err != nil {
		return nil, &provider.UnknownError{Message: fmt.Sprintf("failed to marshal request: %v", err), Err: err}
	}

	reqURL := p.operationURL("generations")
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, &provider.UnknownError{Message: fmt.Sprintf("failed to create request: %v", err), Err: err}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(apiKeyHeader, p.apiKey)

	p.logRequest(ctx, httpReq, jsonData)

	return p.do(ctx, httpReq)
}

func buildAPIRequest(req *models.GenerateRequest) *apiRequest {
	params := req.Params
	return &apiRequest{
		Prompt:            req.Prompt,
		Model:             models.ImageModel,
		Size:              string(params.Size),
		N:                 params.N,
		Quality:           string(params.Quality),
		OutputFormat:      params.OutputFormat.String(),
		OutputCompression: params.OutputCompression,
		Stream:            params.Stream,
		User:              params.User,
	}
}

// operationURL builds {endpoint}/openai/deployments/{deployment}/images/{op}?api-version={v}.
func (p *Provider) operationURL(operation string) string {
	return fmt.Sprintf("%s/openai/deployments/%s/images/%s?api-version=%s",
		p.endpoint, url.PathEscape(p.deployment), operation, url.QueryEscape(p.apiVersion))
}

func (p *Provider) do(ctx context.Context, httpReq *http.Request) (*models.Response, error) {
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &provider.NetworkError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &provider.NetworkError{Err: err}
	}

	p.logResponse(ctx, resp.StatusCode, body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, body)
	}

	return normalize(body)
}

// classifyStatus maps a non-success reply to a ServerError when the body
// carries an error object, else to an HTTPError.
func classifyStatus(status int, body []byte) error {
	if gjson.ValidBytes(body) {
		if errObj := gjson.GetBytes(body, "error"); errObj.IsObject() {
			return &provider.ServerError{
				Status:  status,
				Code:    errObj.Get("code").String(),
				Message: errObj.Get("message").String(),
			}
		}
	}
	return &provider.HTTPError{Status: status, StatusText: http.StatusText(status)}
}

func normalize(body []byte) (*models.Response, error) {
	if !gjson.ValidBytes(body) {
		return nil, &provider.FormatError{}
	}

	root := gjson.ParseBytes(body)
	if errObj := root.Get("error"); errObj.Exists() && errObj.Type != gjson.Null {
		msg := errObj.Get("message").String()
		if msg == "" {
			msg = "API returned an error"
		}
		return nil, &provider.UnknownError{Message: msg}
	}

	if !root.Get("data").IsArray() {
		return nil, &provider.FormatError{}
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, &provider.FormatError{Err: err}
	}

	return buildResponse(apiResp), nil
}

func buildResponse(apiResp apiResponse) *models.Response {
	response := &models.Response{
		Created: apiResp.Created,
		Images:  make([]models.ImageResult, 0, len(apiResp.Data)),
	}

	for i, data := range apiResp.Data {
		response.Images = append(response.Images,
			models.NewImageResult(apiResp.Created, i, data.B64JSON, data.RevisedPrompt))
	}

	return response
}
