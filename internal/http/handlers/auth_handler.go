// README: Login handler issuing staff JWTs.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"transit/internal/modules/user"
)

type AuthHandler struct {
	users *user.Service
}

func NewAuthHandler(svc *user.Service) *AuthHandler {
	return &AuthHandler{users: svc}
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	token, u, err := h.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"username":   u.Username,
			"role":       u.Role,
			"vehicle_id": u.VehicleID,
		},
	})
}
