// README: Development seeder; registers the fleet, staff accounts and default settings.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"transit/internal/config"
	"transit/internal/infra"
	"transit/internal/modules/fleet"
	"transit/internal/modules/settings"
	"transit/internal/modules/user"
	"transit/internal/types"
)

const seedPassword = "password123"

type seedVehicle struct {
	name     string
	class    fleet.Class
	capacity int
}

var fleetSeed = []seedVehicle{
	{"Van 1", fleet.ClassLargeVan, 5},
	{"Van 2", fleet.ClassLargeVan, 5},
	{"Van 3", fleet.ClassLargeVan, 5},
	{"Van 4", fleet.ClassLargeVan, 5},
	{"Van 5", fleet.ClassLargeVan, 5},
	{"Car 1", fleet.ClassSmallCar, 2},
	{"Car 2", fleet.ClassSmallCar, 2},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	fleetStore := fleet.NewStore(dbPool)
	fleetSvc := fleet.NewService(fleetStore)
	userStore := user.NewStore(dbPool)
	userSvc := user.NewService(userStore, cfg.Auth.JWTSecret)
	settingsStore := settings.NewStore(dbPool)

	vehicleIDs := make([]types.ID, 0, len(fleetSeed))
	for _, sv := range fleetSeed {
		v, err := fleetStore.GetByName(ctx, sv.name)
		if err == nil {
			vehicleIDs = append(vehicleIDs, v.ID)
			continue
		}
		if !errors.Is(err, fleet.ErrNotFound) {
			log.Fatal(err)
		}
		v = &fleet.Vehicle{
			Name:     sv.name,
			Class:    sv.class,
			Capacity: sv.capacity,
			Status:   fleet.StatusActive,
		}
		if err := fleetSvc.Register(ctx, v); err != nil {
			log.Fatal(err)
		}
		vehicleIDs = append(vehicleIDs, v.ID)
		fmt.Printf("vehicle %s (%s, %d seats)\n", v.Name, v.Class, v.Capacity)
	}

	seedUser := func(username string, role user.Role, vehicleID *types.ID) {
		if _, err := userStore.GetByUsername(ctx, username); err == nil {
			return
		} else if !errors.Is(err, user.ErrNotFound) {
			log.Fatal(err)
		}
		if _, err := userSvc.Register(ctx, username, seedPassword, role, vehicleID); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("user %s (%s)\n", username, role)
	}

	seedUser("admin", user.RoleAdmin, nil)
	seedUser("dispatcher", user.RoleDispatcher, nil)
	seedUser("driver", user.RoleDriver, nil)
	for i, id := range vehicleIDs {
		vid := id
		seedUser(fmt.Sprintf("driver%d", i+1), user.RoleDriver, &vid)
	}

	if _, err := settingsStore.Set(ctx, settings.KeyAutoAccept, false, "seed"); err != nil {
		log.Fatal(err)
	}
	if _, err := settingsStore.Set(ctx, settings.KeyStrictLifecycle, false, "seed"); err != nil {
		log.Fatal(err)
	}
	fmt.Println("seed complete")
}
