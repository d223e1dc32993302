// Package handler implements the JSON API and the HTML form.
//
// Money values (line item prices, totals and the settlement amount) are
// encoded as JSON strings holding an exact decimal, for example "12.5" or
// "1234.56", so clients never see binary floating point rounding. They are
// not padded to two decimals; the summary's message carries the display form.
package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"invoicesplit/internal/domain"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
// Document processing errors carry their underlying message so the user can act on it.
func MapDomainError(err error) (status int, code, msg string) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND", "session not found"
	case errors.Is(err, domain.ErrSessionBusy):
		return http.StatusConflict, "SESSION_BUSY", "a document is already being processed for this session"
	case errors.Is(err, domain.ErrNoInvoice):
		return http.StatusConflict, "NO_INVOICE", "session has no processed invoice"
	case errors.Is(err, domain.ErrItemOutOfRange):
		return http.StatusBadRequest, "ITEM_OUT_OF_RANGE", err.Error()
	case errors.Is(err, domain.ErrUnknownParticipant):
		return http.StatusBadRequest, "UNKNOWN_PARTICIPANT", "participant must be a or b"
	case errors.Is(err, domain.ErrUnsupportedFileType):
		return http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "unsupported file type; allowed: pdf"
	case errors.Is(err, domain.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size"
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", "unsupported export format; allowed: csv, xlsx"
	case errors.Is(err, domain.ErrUnreadableDocument):
		return http.StatusUnprocessableEntity, "UNREADABLE_DOCUMENT", err.Error()
	case errors.Is(err, domain.ErrMissingCredential):
		return http.StatusServiceUnavailable, "MISSING_CREDENTIAL", "no API key is configured for the completion provider"
	case errors.Is(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway, "MALFORMED_RESPONSE", err.Error()
	case errors.Is(err, domain.ErrExtractionFailure):
		return http.StatusBadGateway, "EXTRACTION_FAILURE", err.Error()
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
	}
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	HandleErrorWithData(c, err, nil)
}

// HandleErrorWithData is HandleError with a payload, used to return a failed
// session alongside the reason it failed.
func HandleErrorWithData(c *gin.Context, err error, data interface{}) {
	status, code, msg := MapDomainError(err)
	requestID, _ := c.Get("request_id")
	if status >= 500 {
		slog.Error("request.failed", "request_id", requestID, "code", code, "error", err)
	} else {
		slog.Debug("request.rejected", "request_id", requestID, "code", code, "error", err)
	}
	c.JSON(status, APIResponse{
		Success: false,
		Data:    data,
		Error:   &APIError{Code: code, Message: msg},
	})
}
