// README: Entry point; loads config, wires module services, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transit/internal/config"
	httptransport "transit/internal/http"
	"transit/internal/http/middleware"
	"transit/internal/infra"
	"transit/internal/logger"
	"transit/internal/modules/audit"
	"transit/internal/modules/fleet"
	"transit/internal/modules/ride"
	"transit/internal/modules/settings"
	"transit/internal/modules/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logg := logger.New(cfg.Log.Level)

	loc, err := time.LoadLocation(cfg.Dispatch.SchedulingTZ)
	if err != nil {
		log.Fatalf("scheduling timezone: %v", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	fleetStore := fleet.NewStore(dbPool)
	fleetSvc := fleet.NewService(fleetStore)

	settingsStore := settings.NewStore(dbPool)
	auditStore := audit.NewStore(dbPool)

	userStore := user.NewStore(dbPool)
	userSvc := user.NewService(userStore, cfg.Auth.JWTSecret)

	rideStore := ride.NewStore(dbPool, loc)
	trackCache := ride.NewTrackCache(redisClient, time.Duration(cfg.Dispatch.TrackTTLSeconds)*time.Second)
	rideSvc := ride.NewService(rideStore, fleetSvc, settingsStore, trackCache, cfg.Dispatch.BusyMargin)

	handler := httptransport.NewRouter(
		logg,
		&middleware.JWTVerifier{Secret: cfg.Auth.JWTSecret},
		rideSvc,
		fleetSvc,
		userSvc,
		auditStore,
		settingsStore,
	)

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logg.Action("startup").Info("listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
