package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnreadableDocument  = errors.New("document could not be read")
	ErrMissingCredential   = errors.New("completion API key is not configured")
	ErrExtractionFailure   = errors.New("structured extraction failed")
	ErrMalformedResponse   = errors.New("model response is not valid invoice JSON")
	ErrEmptyInvoice        = errors.New("invoice has no line items")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionBusy         = errors.New("session is already processing a document")
	ErrNoInvoice           = errors.New("session has no invoice to allocate")
	ErrItemOutOfRange      = errors.New("line item index out of range")
	ErrUnknownParticipant  = errors.New("unknown participant")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrUnsupportedFormat   = errors.New("unsupported export format")
)

// MalformedResponseError carries the raw completion text that failed to decode.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	if e.Err == nil {
		return ErrMalformedResponse.Error()
	}
	return fmt.Sprintf("%s: %v", ErrMalformedResponse, e.Err)
}

func (e *MalformedResponseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedResponse}
	}
	return []error{ErrMalformedResponse, e.Err}
}

// NewMalformedResponseError wraps a decode error together with the raw text.
func NewMalformedResponseError(raw string, err error) *MalformedResponseError {
	return &MalformedResponseError{Raw: raw, Err: err}
}

// ErrorCode returns the stable machine code for a processing error.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnreadableDocument):
		return "UNREADABLE_DOCUMENT"
	case errors.Is(err, ErrMissingCredential):
		return "MISSING_CREDENTIAL"
	case errors.Is(err, ErrMalformedResponse):
		return "MALFORMED_RESPONSE"
	case errors.Is(err, ErrExtractionFailure):
		return "EXTRACTION_FAILURE"
	case errors.Is(err, ErrEmptyInvoice):
		return "EMPTY_INVOICE"
	default:
		return "INTERNAL_ERROR"
	}
}
