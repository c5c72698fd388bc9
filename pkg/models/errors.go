package models

import "errors"

// ValidationError is an input problem caught before any request is sent.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var (
	ErrEmptyPrompt          = NewValidationError("please enter a prompt")
	ErrNoImages             = NewValidationError("please upload at least one image")
	ErrConfigIncomplete     = NewValidationError("please configure the Azure OpenAI service first")
	ErrUnsupportedImageType = NewValidationError("only png and jpeg images are supported")
	ErrImageTooLarge        = NewValidationError("image exceeds the 50MB size limit")
	ErrMaskNotPNG           = NewValidationError("mask file must be a png image")
	ErrInvalidParameters    = NewValidationError("invalid parameters")
	ErrInvalidMode          = NewValidationError("invalid mode")
	ErrInvalidView          = NewValidationError("invalid view")
	ErrUnknownParameter     = NewValidationError("unknown parameter")
)

var ErrNoImageData = errors.New("image has no data")
