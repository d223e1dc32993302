package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"invoicesplit/internal/domain"
	"invoicesplit/internal/export"
	"invoicesplit/internal/service"
)

// SessionHandler serves the split session JSON API.
type SessionHandler struct {
	svc      service.SplitService
	maxBytes int64
}

// NewSessionHandler creates a new SessionHandler. maxUploadMB caps document uploads.
func NewSessionHandler(svc service.SplitService, maxUploadMB int64) *SessionHandler {
	return &SessionHandler{svc: svc, maxBytes: maxUploadMB << 20}
}

type namesRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

type submitRequest struct {
	URI  string `json:"uri" binding:"required"`
	Name string `json:"name"`
}

type toggleRequest struct {
	Participant string `json:"participant" binding:"required"`
	Index       *int   `json:"index" binding:"required"`
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	var req namesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
	}
	session, err := h.svc.Create(c.Request.Context(), domain.Names{A: req.A, B: req.B})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, session)
}

// List handles GET /api/v1/sessions
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.svc.List(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, sessions)
}

// Get handles GET /api/v1/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	session, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, session)
}

// Delete handles DELETE /api/v1/sessions/:id
func (h *SessionHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, gin.H{"message": "session deleted"})
}

// Submit handles POST /api/v1/sessions/:id/document. The document is either a
// multipart "file" field or a JSON body {"uri": "s3://bucket/key"}.
func (h *SessionHandler) Submit(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var input service.SubmitInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		path, name, err := h.receiveUpload(c)
		if err != nil {
			HandleError(c, err)
			return
		}
		defer func() { _ = os.Remove(path) }()
		input = service.SubmitInput{Path: path, Name: name}
	} else {
		var req submitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondError(c, http.StatusBadRequest, "MISSING_FILE", "multipart file field or JSON uri is required")
			return
		}
		input = service.SubmitInput{URI: req.URI, Name: req.Name}
	}

	session, err := h.svc.Submit(c.Request.Context(), id, input)
	if err != nil {
		HandleErrorWithData(c, err, session)
		return
	}
	RespondOK(c, session)
}

// receiveUpload stores the multipart "file" field in a temporary file.
func (h *SessionHandler) receiveUpload(c *gin.Context) (path, name string, err error) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+1<<20)
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", "", domain.ErrFileTooLarge
		}
		return "", "", fmt.Errorf("%w: file field is required", domain.ErrUnreadableDocument)
	}
	defer func() { _ = file.Close() }()

	if err := h.checkUpload(header); err != nil {
		return "", "", err
	}
	path, err = saveTemp(file)
	if err != nil {
		return "", "", err
	}
	return path, header.Filename, nil
}

func (h *SessionHandler) checkUpload(header *multipart.FileHeader) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if _, ok := domain.AllowedExtensions[ext]; !ok {
		return domain.ErrUnsupportedFileType
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		return domain.ErrFileTooLarge
	}
	return nil
}

func saveTemp(r io.Reader) (string, error) {
	f, err := os.CreateTemp("", "invoicesplit-upload-*.pdf")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("closing temp file: %w", err)
	}
	return f.Name(), nil
}

// Toggle handles POST /api/v1/sessions/:id/toggle
func (h *SessionHandler) Toggle(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "participant and index are required")
		return
	}
	p, err := domain.ParseParticipant(req.Participant)
	if err != nil {
		HandleError(c, err)
		return
	}
	summary, err := h.svc.Toggle(c.Request.Context(), id, p, *req.Index)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, summary)
}

// Rename handles PUT /api/v1/sessions/:id/participants
func (h *SessionHandler) Rename(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req namesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	session, err := h.svc.Rename(c.Request.Context(), id, domain.Names{A: req.A, B: req.B})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, session)
}

// Summary handles GET /api/v1/sessions/:id/summary
func (h *SessionHandler) Summary(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	summary, err := h.svc.Summary(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, summary)
}

// Export handles GET /api/v1/sessions/:id/export?format=csv|xlsx
func (h *SessionHandler) Export(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		HandleError(c, err)
		return
	}
	out, err := h.svc.Export(c.Request.Context(), id, format)
	if err != nil {
		HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, out.Filename))
	c.Data(http.StatusOK, out.ContentType, out.Data)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid session ID")
		return uuid.Nil, false
	}
	return id, true
}
