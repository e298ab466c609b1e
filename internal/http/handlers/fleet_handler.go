// README: Vehicle roster, availability and maintenance handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"transit/internal/http/middleware"
	"transit/internal/modules/fleet"
	"transit/internal/modules/ride"
	"transit/internal/types"
)

type FleetHandler struct {
	fleet *fleet.Service
	rides *ride.Service
}

func NewFleetHandler(fl *fleet.Service, rides *ride.Service) *FleetHandler {
	return &FleetHandler{fleet: fl, rides: rides}
}

func (h *FleetHandler) List(c *gin.Context) {
	vehicles, err := h.fleet.List(c.Request.Context())
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": vehicles})
}

func (h *FleetHandler) Get(c *gin.Context) {
	v, err := h.fleet.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *FleetHandler) Snapshot(c *gin.Context) {
	snap, err := h.fleet.Snapshot(c.Request.Context())
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type vehicleStatusReq struct {
	Status string `json:"status" binding:"required"`
}

// SetStatus goes through the ride service so the change lands in the
// audit trail next to the rides it affects.
func (h *FleetHandler) SetStatus(c *gin.Context) {
	var req vehicleStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	err := h.rides.SetVehicleStatus(c.Request.Context(),
		types.ID(c.Param("id")), fleet.Status(req.Status), middleware.CallerUsername(c))
	if err != nil {
		writeRideError(c, err)
		return
	}
	v, err := h.fleet.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

type maintenanceReq struct {
	Kind        string    `json:"kind" binding:"required"`
	Date        time.Time `json:"date"`
	CostCents   int64     `json:"cost_cents"`
	Notes       string    `json:"notes"`
	EngineHours float64   `json:"engine_hours_at_service"`
}

func (h *FleetHandler) AddMaintenance(c *gin.Context) {
	var req maintenanceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	if req.Date.IsZero() {
		req.Date = time.Now()
	}
	entry := &fleet.MaintenanceEntry{
		VehicleID:        types.ID(c.Param("id")),
		Kind:             req.Kind,
		Date:             req.Date,
		CostCents:        req.CostCents,
		Notes:            req.Notes,
		EngineHoursAtSvc: req.EngineHours,
	}
	if err := h.rides.AddVehicleMaintenance(c.Request.Context(), entry, middleware.CallerUsername(c)); err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *FleetHandler) ListMaintenance(c *gin.Context) {
	entries, err := h.fleet.ListMaintenance(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"maintenance": entries})
}
