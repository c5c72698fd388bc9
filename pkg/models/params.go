package models

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ParamsPatch is a partial parameter set for either mode. InputFidelity is
// ignored when applied to generation parameters.
type ParamsPatch struct {
	Size              *Size
	Quality           *Quality
	N                 *int
	OutputFormat      *OutputFormat
	OutputCompression *int
	Stream            *bool
	User              *string
	InputFidelity     *Fidelity
}

func (p ParamsPatch) ApplyGeneration(g GenerationParameters) GenerationParameters {
	if p.Size != nil {
		g.Size = *p.Size
	}
	if p.Quality != nil {
		g.Quality = *p.Quality
	}
	if p.N != nil {
		g.N = *p.N
	}
	if p.OutputFormat != nil {
		g.OutputFormat = *p.OutputFormat
	}
	if p.OutputCompression != nil {
		g.OutputCompression = *p.OutputCompression
	}
	if p.Stream != nil {
		g.Stream = *p.Stream
	}
	if p.User != nil {
		g.User = *p.User
	}
	return g
}

func (p ParamsPatch) ApplyEdit(e EditParameters) EditParameters {
	e.GenerationParameters = p.ApplyGeneration(e.GenerationParameters)
	if p.InputFidelity != nil {
		e.InputFidelity = *p.InputFidelity
	}
	return e
}

// Set parses one parameter form field. Values are checked against the
// enums here so a bad value never reaches the state.
func (p *ParamsPatch) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch normalizeKey(key) {
	case "size":
		s, err := parseSize(value)
		if err != nil {
			return err
		}
		p.Size = &s
	case "quality":
		q := Quality(strings.ToLower(value))
		if !slices.Contains(ValidQualities(), q) {
			return fmt.Errorf("%w: quality %q not in %v", ErrInvalidParameters, value, ValidQualities())
		}
		p.Quality = &q
	case "n", "count":
		n, err := strconv.Atoi(value)
		if err != nil || n < MinCount || n > MaxCount {
			return fmt.Errorf("%w: n must be between %d and %d", ErrInvalidParameters, MinCount, MaxCount)
		}
		p.N = &n
	case "outputformat", "format":
		f := OutputFormat(strings.ToLower(value))
		if f == "jpg" {
			f = FormatJPEG
		}
		if !f.IsValid() {
			return fmt.Errorf("%w: output_format %q not in %v", ErrInvalidParameters, value, ValidFormats())
		}
		p.OutputFormat = &f
	case "outputcompression", "compression":
		c, err := strconv.Atoi(value)
		if err != nil || c < 0 || c > MaxCompression {
			return fmt.Errorf("%w: output_compression must be between 0 and %d", ErrInvalidParameters, MaxCompression)
		}
		p.OutputCompression = &c
	case "stream":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: stream must be true or false", ErrInvalidParameters)
		}
		p.Stream = &b
	case "user":
		p.User = &value
	case "inputfidelity", "fidelity":
		f := Fidelity(strings.ToLower(value))
		if !slices.Contains(ValidFidelities(), f) {
			return fmt.Errorf("%w: input_fidelity %q not in %v", ErrInvalidParameters, value, ValidFidelities())
		}
		p.InputFidelity = &f
	default:
		return fmt.Errorf("%w: %q", ErrUnknownParameter, key)
	}
	return nil
}

// parseSize accepts the wire value or one of the shape names.
func parseSize(value string) (Size, error) {
	switch strings.ToLower(value) {
	case "square":
		return SizeSquare, nil
	case "portrait":
		return SizePortrait, nil
	case "landscape":
		return SizeLandscape, nil
	}
	s := Size(value)
	if !slices.Contains(ValidSizes(), s) {
		return "", fmt.Errorf("%w: size %q not in %v", ErrInvalidParameters, value, ValidSizes())
	}
	return s, nil
}
