package models

import (
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ImageModel is the model identifier sent with every request. The Azure
// deployment decides what actually serves it.
const ImageModel = "gpt-image-1"

const (
	DefaultDeploymentName = "gpt-image-1"
	DefaultAPIVersion     = "2025-04-01-preview"

	MinCount       = 1
	MaxCount       = 10
	MaxCompression = 100
)

type Mode string

const (
	ModeGeneration Mode = "generation"
	ModeEdit       Mode = "edit"
)

func (m Mode) IsValid() bool {
	return m == ModeGeneration || m == ModeEdit
}

func (m Mode) String() string {
	return string(m)
}

type View string

const (
	ViewGenerate View = "generate"
	ViewEdit     View = "edit"
	ViewGallery  View = "gallery"
)

func ValidViews() []View {
	return []View{ViewGenerate, ViewEdit, ViewGallery}
}

func (v View) IsValid() bool {
	return slices.Contains(ValidViews(), v)
}

type Size string

const (
	SizeSquare    Size = "1024x1024"
	SizePortrait  Size = "1024x1536"
	SizeLandscape Size = "1536x1024"
)

func ValidSizes() []Size {
	return []Size{SizeSquare, SizePortrait, SizeLandscape}
}

type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

func ValidQualities() []Quality {
	return []Quality{QualityLow, QualityMedium, QualityHigh}
}

type OutputFormat string

const (
	FormatPNG  OutputFormat = "png"
	FormatJPEG OutputFormat = "jpeg"
)

func ValidFormats() []OutputFormat {
	return []OutputFormat{FormatPNG, FormatJPEG}
}

func (f OutputFormat) IsValid() bool {
	return slices.Contains(ValidFormats(), f)
}

func (f OutputFormat) String() string {
	return string(f)
}

type Fidelity string

const (
	FidelityLow    Fidelity = "low"
	FidelityMedium Fidelity = "medium"
	FidelityHigh   Fidelity = "high"
)

func ValidFidelities() []Fidelity {
	return []Fidelity{FidelityLow, FidelityMedium, FidelityHigh}
}

type GenerationParameters struct {
	Size              Size         `json:"size" validate:"oneof=1024x1024 1024x1536 1536x1024"`
	Quality           Quality      `json:"quality" validate:"oneof=low medium high"`
	N                 int          `json:"n" validate:"min=1,max=10"`
	OutputFormat      OutputFormat `json:"output_format" validate:"oneof=png jpeg"`
	OutputCompression int          `json:"output_compression" validate:"min=0,max=100"`
	Stream            bool         `json:"stream"`
	User              string       `json:"user,omitempty"`
}

func DefaultGenerationParameters() GenerationParameters {
	return GenerationParameters{
		Size:              SizeSquare,
		Quality:           QualityHigh,
		N:                 1,
		OutputFormat:      FormatPNG,
		OutputCompression: 100,
	}
}

type EditParameters struct {
	GenerationParameters
	InputFidelity Fidelity `json:"input_fidelity,omitempty" validate:"omitempty,oneof=low medium high"`
}

func DefaultEditParameters() EditParameters {
	return EditParameters{
		GenerationParameters: DefaultGenerationParameters(),
		InputFidelity:        FidelityHigh,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (p GenerationParameters) Validate() error {
	return validationError(validate.Struct(p))
}

func (p EditParameters) Validate() error {
	return validationError(validate.Struct(p))
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s=%v (%s)", fe.Field(), fe.Value(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidParameters, strings.Join(fields, ", "))
}

type GenerateRequest struct {
	Prompt string
	Params GenerationParameters
}

func (r *GenerateRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

type EditRequest struct {
	Prompt string
	Images []InputFile
	Mask   *InputFile
	Params EditParameters
}

func (r *EditRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrEmptyPrompt
	}
	if len(r.Images) == 0 {
		return ErrNoImages
	}
	return nil
}

// InputFile is an uploaded source image or mask.
type InputFile struct {
	Name        string
	ContentType string
	Data        []byte
}

func (f InputFile) Size() int64 {
	return int64(len(f.Data))
}

// ImageResult is one normalized item of an API response.
type ImageResult struct {
	ID            string `json:"id"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
	URL           string `json:"url,omitempty"`
}

// NewImageResult builds the result for item index of a response created
// at the given timestamp.
func NewImageResult(created int64, index int, b64, revisedPrompt string) ImageResult {
	return NewImageResultWithID(fmt.Sprintf("%d_%d", created, index), b64, revisedPrompt)
}

func NewImageResultWithID(id, b64, revisedPrompt string) ImageResult {
	img := ImageResult{
		ID:            id,
		B64JSON:       b64,
		RevisedPrompt: revisedPrompt,
	}
	if b64 != "" {
		img.URL = "data:image/png;base64," + b64
	}
	return img
}

func (r ImageResult) HasData() bool {
	return r.B64JSON != ""
}

func (r ImageResult) Decode() ([]byte, error) {
	if r.B64JSON == "" {
		return nil, ErrNoImageData
	}
	data, err := base64.StdEncoding.DecodeString(r.B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", r.ID, err)
	}
	return data, nil
}

type Response struct {
	Created int64
	Images  []ImageResult
}

type GalleryEntry struct {
	Image     ImageResult
	Mode      Mode
	Prompt    string
	CreatedAt time.Time
}

func NewGalleryEntries(images []ImageResult, mode Mode, prompt string, at time.Time) []GalleryEntry {
	entries := make([]GalleryEntry, 0, len(images))
	for _, img := range images {
		entries = append(entries, GalleryEntry{
			Image:     img,
			Mode:      mode,
			Prompt:    prompt,
			CreatedAt: at,
		})
	}
	return entries
}
