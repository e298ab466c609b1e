// README: Shared handler utilities: JSON helpers and error mapping.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"transit/internal/modules/fleet"
	"transit/internal/modules/ride"
	"transit/internal/modules/user"
)

// errorResponse carries a stable machine-readable kind next to the
// human message so callers can branch without string matching.
type errorResponse struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

func writeError(c *gin.Context, status int, kind string, msg string) {
	c.JSON(status, errorResponse{Kind: kind, Error: msg})
}

// writeRideError maps the dispatch error taxonomy onto HTTP statuses.
// Capacity conflicts are deliberately distinct from validation failures
// so booking clients can offer a different time instead of a form error.
func writeRideError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrBadRequest):
		writeError(c, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, ride.ErrCapacity):
		writeError(c, http.StatusConflict, "capacity_conflict", err.Error())
	case errors.Is(err, ride.ErrBillingLocked):
		writeError(c, http.StatusLocked, "billing_locked", err.Error())
	case errors.Is(err, ride.ErrNotFound), errors.Is(err, fleet.ErrNotFound):
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ride.ErrUnauthorized):
		writeError(c, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, ride.ErrInvalidState):
		writeError(c, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, ride.ErrConflict):
		writeError(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, fleet.ErrBadRequest):
		writeError(c, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, user.ErrBadCredentials):
		writeError(c, http.StatusUnauthorized, "bad_credentials", err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal", "internal error")
	}
}

// statusForRideErr and kindForRideErr exist for handlers that need to
// attach extra payload fields beside the standard error envelope.
func statusForRideErr(err error) int {
	switch {
	case errors.Is(err, ride.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ride.ErrCapacity):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func kindForRideErr(err error) string {
	switch {
	case errors.Is(err, ride.ErrBadRequest):
		return "validation"
	case errors.Is(err, ride.ErrCapacity):
		return "capacity_conflict"
	default:
		return "internal"
	}
}

// intQuery parses an optional integer query parameter. On a malformed
// value it writes the 400 itself and reports false.
func intQuery(c *gin.Context, name string, def int) (int, bool) {
	v := c.Query(name)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		writeError(c, http.StatusBadRequest, "validation", name+" must be an integer")
		return 0, false
	}
	return n, true
}
