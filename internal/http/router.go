// README: HTTP router registration and role gating.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"transit/internal/http/handlers"
	"transit/internal/http/middleware"
	"transit/internal/logger"
	"transit/internal/modules/audit"
	"transit/internal/modules/fleet"
	"transit/internal/modules/ride"
	"transit/internal/modules/settings"
	"transit/internal/modules/user"
)

func NewRouter(
	log logger.Logger,
	verifier middleware.TokenVerifier,
	rideService *ride.Service,
	fleetService *fleet.Service,
	userService *user.Service,
	auditStore *audit.Store,
	settingsStore *settings.Store,
) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logging(log))

	rideHandler := handlers.NewRideHandler(rideService)
	fleetHandler := handlers.NewFleetHandler(fleetService, rideService)
	authHandler := handlers.NewAuthHandler(userService)
	auditHandler := handlers.NewAuditHandler(auditStore)
	settingsHandler := handlers.NewSettingsHandler(settingsStore)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	// Riders book and track without accounts.
	r.POST("/api/auth/login", authHandler.Login)
	r.POST("/api/rides", rideHandler.Create)
	r.GET("/api/rides/capacity", rideHandler.CheckCapacity)
	r.GET("/api/rides/quote", rideHandler.Quote)
	r.GET("/api/track/:ticket", rideHandler.Track)

	staff := r.Group("/api", middleware.Auth(verifier))
	{
		staff.GET("/rides", rideHandler.List)
		staff.GET("/rides/:id", rideHandler.Get)
		staff.POST("/rides/:id/status", rideHandler.UpdateStatus)
		staff.GET("/vehicles", fleetHandler.List)
		staff.GET("/vehicles/:id", fleetHandler.Get)
		staff.GET("/vehicles/snapshot", fleetHandler.Snapshot)
		staff.GET("/vehicles/:id/maintenance", fleetHandler.ListMaintenance)
	}

	dispatch := r.Group("/api", middleware.Auth(verifier), middleware.RequireRole("dispatcher"))
	{
		dispatch.POST("/rides/:id/assign", rideHandler.Assign)
		dispatch.PATCH("/rides/:id", rideHandler.UpdateDetails)
		dispatch.POST("/vehicles/:id/status", fleetHandler.SetStatus)
		dispatch.POST("/vehicles/:id/maintenance", fleetHandler.AddMaintenance)
		dispatch.GET("/audit", auditHandler.List)
		dispatch.GET("/settings/:key", settingsHandler.Get)
		dispatch.PUT("/settings/:key", settingsHandler.Set)
	}

	driver := r.Group("/api", middleware.Auth(verifier), middleware.RequireRole("driver"))
	{
		driver.POST("/rides/:id/claim", rideHandler.Claim)
	}

	return r
}
