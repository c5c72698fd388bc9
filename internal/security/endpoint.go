package security

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	ErrInvalidScheme = errors.New("endpoint must use https")
	ErrMissingHost   = errors.New("endpoint has no host")
	ErrEndpointPath  = errors.New("endpoint must not carry a query or fragment")
)

// ValidateEndpoint checks a resource URL before it is stored. Plain http is
// only accepted for loopback hosts such as a local proxy.
func ValidateEndpoint(rawURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}

	host := parsed.Hostname()
	if host == "" {
		return ErrMissingHost
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !isLoopback(host) {
			return ErrInvalidScheme
		}
	default:
		return ErrInvalidScheme
	}

	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return ErrEndpointPath
	}
	return nil
}

// IsAzureHost reports whether the endpoint points at an Azure OpenAI or
// Cognitive Services resource.
func IsAzureHost(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, suffix := range []string{".openai.azure.com", ".cognitiveservices.azure.com", ".services.ai.azure.com"} {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
