// README: Read-only audit trail handler.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"transit/internal/modules/audit"
)

type AuditHandler struct {
	audit *audit.Store
}

func NewAuditHandler(store *audit.Store) *AuditHandler {
	return &AuditHandler{audit: store}
}

func (h *AuditHandler) List(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 0)
	if !ok {
		return
	}
	offset, ok := intQuery(c, "offset", 0)
	if !ok {
		return
	}
	entries, err := h.audit.List(c.Request.Context(), limit, offset)
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
