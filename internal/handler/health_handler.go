package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CredentialChecker reports whether the completion provider can be called.
type CredentialChecker interface {
	CheckCredential() error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	completer CredentialChecker
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(completer CredentialChecker) *HealthHandler {
	return &HealthHandler{completer: completer}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz. Documents cannot be processed without a
// provider credential, so its absence makes the service unready.
func (h *HealthHandler) Readiness(c *gin.Context) {
	if err := h.completer.CheckCredential(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "completion provider credential missing"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
