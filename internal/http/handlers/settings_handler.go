// README: Operational settings handlers (autoAccept, strictLifecycle).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"transit/internal/http/middleware"
	"transit/internal/modules/settings"
)

type SettingsHandler struct {
	settings *settings.Store
}

func NewSettingsHandler(store *settings.Store) *SettingsHandler {
	return &SettingsHandler{settings: store}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	s, err := h.settings.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, settings.ErrNotFound) {
			writeError(c, http.StatusNotFound, "not_found", "setting not found")
			return
		}
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

type setSettingReq struct {
	Value any `json:"value" binding:"required"`
}

func (h *SettingsHandler) Set(c *gin.Context) {
	var req setSettingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	s, err := h.settings.Set(c.Request.Context(), c.Param("key"), req.Value, middleware.CallerUsername(c))
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
