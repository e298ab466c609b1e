// README: Staff account model (dispatchers and drivers).
package user

import (
	"time"

	"transit/internal/types"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDispatcher Role = "dispatcher"
	RoleDriver     Role = "driver"
)

type User struct {
	ID           types.ID  `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	// VehicleID links a driver account to the vehicle it operates.
	VehicleID *types.ID `json:"vehicle_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
