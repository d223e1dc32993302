package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"invoicesplit/internal/domain"
	"invoicesplit/internal/service"
	"invoicesplit/internal/settlement"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded HTML templates for gin's SetHTMLTemplate.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"money": settlement.FormatMoney,
		"owns": func(item settlement.ItemLine, p string) bool {
			return string(item.Owner) == p
		},
	}).ParseFS(templateFS, "templates/*.html"))
}

// WebHandler serves the interactive HTML form.
type WebHandler struct {
	svc      service.SplitService
	sessions *SessionHandler
}

// NewWebHandler creates a new WebHandler. Uploads go through sessions so
// both surfaces share the same size and type checks.
func NewWebHandler(svc service.SplitService, sessions *SessionHandler) *WebHandler {
	return &WebHandler{svc: svc, sessions: sessions}
}

type pageData struct {
	Session *domain.Session
	Summary *settlement.Summary
	Error   string
}

// Index handles GET / with the start page. It does not create a session.
func (h *WebHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "start.html", nil)
}

// Start handles POST / by creating a session and redirecting to its page.
func (h *WebHandler) Start(c *gin.Context) {
	session, err := h.svc.Create(c.Request.Context(), domain.Names{})
	if err != nil {
		c.String(http.StatusInternalServerError, "could not create session")
		return
	}
	c.Redirect(http.StatusSeeOther, "/s/"+session.ID.String())
}

// Show handles GET /s/:id
func (h *WebHandler) Show(c *gin.Context) {
	h.render(c, http.StatusOK, "")
}

// Upload handles POST /s/:id/document
func (h *WebHandler) Upload(c *gin.Context) {
	id, ok := h.pageID(c)
	if !ok {
		return
	}
	path, name, err := h.sessions.receiveUpload(c)
	if err != nil {
		_, _, msg := MapDomainError(err)
		h.render(c, http.StatusBadRequest, msg)
		return
	}
	defer func() { _ = os.Remove(path) }()

	if _, err := h.svc.Submit(c.Request.Context(), id, service.SubmitInput{Path: path, Name: name}); err != nil {
		// The failure is recorded on the session and rendered from there.
		slog.Info("web.submit_failed", "session_id", id, "error", err)
	}
	c.Redirect(http.StatusSeeOther, "/s/"+id.String())
}

// Toggle handles POST /s/:id/toggle
func (h *WebHandler) Toggle(c *gin.Context) {
	id, ok := h.pageID(c)
	if !ok {
		return
	}
	p, err := domain.ParseParticipant(c.PostForm("participant"))
	if err != nil {
		h.render(c, http.StatusBadRequest, err.Error())
		return
	}
	index, err := strconv.Atoi(c.PostForm("index"))
	if err != nil {
		h.render(c, http.StatusBadRequest, "invalid item index")
		return
	}
	if _, err := h.svc.Toggle(c.Request.Context(), id, p, index); err != nil {
		_, _, msg := MapDomainError(err)
		h.render(c, http.StatusBadRequest, msg)
		return
	}
	c.Redirect(http.StatusSeeOther, "/s/"+id.String())
}

// Rename handles POST /s/:id/names
func (h *WebHandler) Rename(c *gin.Context) {
	id, ok := h.pageID(c)
	if !ok {
		return
	}
	names := domain.Names{A: c.PostForm("a"), B: c.PostForm("b")}
	if _, err := h.svc.Rename(c.Request.Context(), id, names); err != nil {
		_, _, msg := MapDomainError(err)
		h.render(c, http.StatusBadRequest, msg)
		return
	}
	c.Redirect(http.StatusSeeOther, "/s/"+id.String())
}

func (h *WebHandler) pageID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.String(http.StatusBadRequest, "invalid session ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *WebHandler) render(c *gin.Context, status int, errMsg string) {
	id, ok := h.pageID(c)
	if !ok {
		return
	}
	session, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	data := pageData{Session: session, Error: errMsg}
	if session.State == domain.SessionStateReady {
		if summary, err := h.svc.Summary(c.Request.Context(), id); err == nil {
			data.Summary = summary
		}
	}
	c.HTML(status, "split.html", data)
}
