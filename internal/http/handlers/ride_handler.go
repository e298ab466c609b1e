// README: Ride intake, capacity preview, dispatch and tracking handlers.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"transit/internal/http/middleware"
	"transit/internal/modules/fare"
	"transit/internal/modules/ride"
	"transit/internal/types"
)

type RideHandler struct {
	rides *ride.Service
}

func NewRideHandler(svc *ride.Service) *RideHandler {
	return &RideHandler{rides: svc}
}

type createRideReq struct {
	RiderName     string    `json:"rider_name" binding:"required"`
	Phone         string    `json:"phone" binding:"required"`
	Pickup        string    `json:"pickup" binding:"required"`
	PickupNotes   string    `json:"pickup_notes"`
	Dropoff       string    `json:"dropoff" binding:"required"`
	Category      string    `json:"category" binding:"required"`
	Party         int       `json:"party" binding:"required"`
	SameDay       bool      `json:"same_day"`
	OutOfTown     bool      `json:"out_of_town"`
	Miles         float64   `json:"miles"`
	RequestedTime time.Time `json:"requested_time" binding:"required"`
}

func (h *RideHandler) Create(c *gin.Context) {
	var req createRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	r, decision, err := h.rides.Create(c.Request.Context(), ride.CreateCommand{
		RiderName:     req.RiderName,
		Phone:         req.Phone,
		Pickup:        req.Pickup,
		PickupNotes:   req.PickupNotes,
		Dropoff:       req.Dropoff,
		Category:      fare.Category(req.Category),
		Party:         req.Party,
		SameDay:       req.SameDay,
		OutOfTown:     req.OutOfTown,
		Miles:         req.Miles,
		RequestedTime: req.RequestedTime,
	})
	if err != nil {
		if decision.Reason != "" && decision.Reason != ride.ReasonOK {
			c.JSON(statusForRideErr(err), gin.H{
				"kind":     kindForRideErr(err),
				"error":    err.Error(),
				"decision": decision,
			})
			return
		}
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ride": r, "decision": decision})
}

func (h *RideHandler) CheckCapacity(c *gin.Context) {
	at, err := time.Parse(time.RFC3339, c.Query("requested_time"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "validation", "requested_time must be RFC3339")
		return
	}
	party, ok := intQuery(c, "party", 1)
	if !ok {
		return
	}
	decision, err := h.rides.CheckCapacity(c.Request.Context(), at, party)
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

func (h *RideHandler) Quote(c *gin.Context) {
	party, ok := intQuery(c, "party", 1)
	if !ok {
		return
	}
	var miles float64
	if v := c.Query("miles"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(c, http.StatusBadRequest, "validation", "miles must be numeric")
			return
		}
		miles = parsed
	}
	quote := fare.Quote(fare.Input{
		Category:  fare.Category(c.Query("category")),
		SameDay:   c.Query("same_day") == "true",
		Party:     party,
		OutOfTown: c.Query("out_of_town") == "true",
		Miles:     miles,
	})
	c.JSON(http.StatusOK, gin.H{"fare": quote})
}

func (h *RideHandler) List(c *gin.Context) {
	f := ride.ListFilter{
		Status:     ride.Status(c.Query("status")),
		VehicleID:  types.ID(c.Query("vehicle_id")),
		Unassigned: c.Query("unassigned") == "true",
	}
	if v := c.Query("day"); v != "" {
		day, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(c, http.StatusBadRequest, "validation", "day must be YYYY-MM-DD")
			return
		}
		f.Day = day
	}
	rides, err := h.rides.List(c.Request.Context(), f)
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rides": rides})
}

func (h *RideHandler) Get(c *gin.Context) {
	r, err := h.rides.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type statusReq struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
	Force  bool   `json:"force"`
}

func (h *RideHandler) UpdateStatus(c *gin.Context) {
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	cmd := ride.StatusCommand{
		RideID: types.ID(c.Param("id")),
		To:     ride.Status(req.Status),
		Actor:  middleware.CallerUsername(c),
		Role:   callerRole(c),
		Note:   req.Note,
		Force:  req.Force,
	}
	if v := middleware.CallerVehicle(c); v != "" {
		id := types.ID(v)
		cmd.ActorVehicle = &id
	}
	r, err := h.rides.UpdateStatus(c.Request.Context(), cmd)
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type assignReq struct {
	// Empty vehicle_id unassigns the ride.
	VehicleID string `json:"vehicle_id"`
}

func (h *RideHandler) Assign(c *gin.Context) {
	var req assignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	cmd := ride.AssignCommand{
		RideID: types.ID(c.Param("id")),
		Actor:  middleware.CallerUsername(c),
	}
	if req.VehicleID != "" {
		id := types.ID(req.VehicleID)
		cmd.VehicleID = &id
	}
	r, err := h.rides.AssignVehicle(c.Request.Context(), cmd)
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type claimReq struct {
	Depart bool `json:"depart"`
}

func (h *RideHandler) Claim(c *gin.Context) {
	var req claimReq
	_ = c.ShouldBindJSON(&req)
	vehicle := middleware.CallerVehicle(c)
	if vehicle == "" {
		writeError(c, http.StatusForbidden, "unauthorized", "driver has no vehicle")
		return
	}
	r, err := h.rides.Claim(c.Request.Context(), ride.ClaimCommand{
		RideID:    types.ID(c.Param("id")),
		VehicleID: types.ID(vehicle),
		Actor:     middleware.CallerUsername(c),
		Depart:    req.Depart,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type detailsReq struct {
	FareCents     *int64     `json:"fare_cents"`
	RequestedTime *time.Time `json:"requested_time"`
}

func (h *RideHandler) UpdateDetails(c *gin.Context) {
	var req detailsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	r, err := h.rides.UpdateDetails(c.Request.Context(), ride.DetailsCommand{
		RideID:        types.ID(c.Param("id")),
		FareCents:     req.FareCents,
		RequestedTime: req.RequestedTime,
		Actor:         middleware.CallerUsername(c),
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *RideHandler) Track(c *gin.Context) {
	view, err := h.rides.TrackByTicket(c.Request.Context(), c.Param("ticket"))
	if err != nil {
		writeRideError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func callerRole(c *gin.Context) ride.Role {
	switch middleware.CallerRole(c) {
	case "driver":
		return ride.RoleDriver
	case "dispatcher", "admin":
		return ride.RoleDispatcher
	}
	return ""
}
