package provider

import (
	"errors"
	"fmt"
)

// CodeContentFilter is the error code the service returns when the safety
// system rejects a prompt or an image.
const CodeContentFilter = "contentFilter"

// ServerError is a non-success reply carrying a structured error body.
type ServerError struct {
	Status  int
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Code == CodeContentFilter {
		return "Content was filtered by safety system: " + e.Message
	}
	return fmt.Sprintf("API Error (%d): %s", e.Status, e.Message)
}

func (e *ServerError) IsContentFiltered() bool {
	return e.Code == CodeContentFilter
}

// HTTPError is a non-success reply without a usable error body.
type HTTPError struct {
	Status     int
	StatusText string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP Error %d: %s", e.Status, e.StatusText)
}

// NetworkError means no response arrived, including timeouts.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "Network error: Unable to reach Azure OpenAI service"
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

type UnknownError struct {
	Message string
	Err     error
}

func (e *UnknownError) Error() string {
	if e.Message == "" {
		return "Unknown error occurred"
	}
	return e.Message
}

func (e *UnknownError) Unwrap() error {
	return e.Err
}

// FormatError is a success reply whose payload has no list of images.
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string {
	return "Invalid response format"
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err came from the API client boundary.
func IsTransportError(err error) bool {
	var (
		se *ServerError
		he *HTTPError
		ne *NetworkError
		ue *UnknownError
		fe *FormatError
	)
	return errors.As(err, &se) || errors.As(err, &he) || errors.As(err, &ne) ||
		errors.As(err, &ue) || errors.As(err, &fe)
}
