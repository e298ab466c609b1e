// README: Vehicle asset model for the dispatch capacity pool.
package fleet

import (
	"time"

	"transit/internal/types"
)

type Status string

const (
	StatusActive       Status = "active"
	StatusOutOfService Status = "out_of_service"
)

func ValidStatus(s Status) bool {
	return s == StatusActive || s == StatusOutOfService
}

type Class string

const (
	ClassSmallCar Class = "small_car"
	ClassLargeVan Class = "large_van"
)

// Vehicle is a fleet asset. Only Status participates in admission;
// the maintenance fields are informational.
type Vehicle struct {
	ID              types.ID   `json:"id"`
	Name            string     `json:"name"`
	Class           Class      `json:"class"`
	Capacity        int        `json:"capacity"`
	Status          Status     `json:"status"`
	EngineHours     float64    `json:"engine_hours"`
	LastServiceDate *time.Time `json:"last_service_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// MaintenanceEntry is an append-only service record for a vehicle.
type MaintenanceEntry struct {
	ID               int64     `json:"id"`
	VehicleID        types.ID  `json:"vehicle_id"`
	Kind             string    `json:"kind"` // e.g. "oil_change", "tire_rotation"
	Date             time.Time `json:"date"`
	CostCents        int64     `json:"cost_cents"`
	Notes            string    `json:"notes,omitempty"`
	EngineHoursAtSvc float64   `json:"engine_hours_at_service"`
}

// Snapshot is the live capacity pool: active vehicles only.
type Snapshot struct {
	ActiveVehicles  int
	ActiveSeats     int
	LargestCapacity int
}
