// README: Ride aggregate, status machine and lifecycle events.
package ride

import (
	"time"

	"transit/internal/modules/fare"
	"transit/internal/types"
)

type Status string

const (
	StatusPendingReview Status = "pending_review"
	StatusConfirmed     Status = "confirmed"
	StatusRejected      Status = "rejected"
	StatusEnRoute       Status = "en_route"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
	StatusNoShow        Status = "no_show"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusPendingReview, StatusConfirmed, StatusRejected, StatusEnRoute, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Occupies reports whether a ride in this status holds a vehicle slot in
// its hour window. Pending, rejected, completed and cancelled rides do not.
func Occupies(s Status) bool {
	return s == StatusConfirmed || s == StatusEnRoute
}

type Role string

const (
	RoleDispatcher Role = "dispatcher"
	RoleDriver     Role = "driver"
	RoleSystem     Role = "system"
)

// transitions is the closed state table: current status -> allowed next
// statuses -> roles that may perform the move. Anything missing here is
// rejected; a raw status write does not exist.
var transitions = map[Status]map[Status][]Role{
	StatusPendingReview: {
		StatusConfirmed: {RoleDispatcher},
		StatusRejected:  {RoleDispatcher},
	},
	StatusConfirmed: {
		StatusEnRoute:   {RoleDriver},
		StatusCancelled: {RoleDispatcher},
		StatusRejected:  {RoleDispatcher},
		StatusNoShow:    {RoleDispatcher},
	},
	StatusEnRoute: {
		StatusCompleted: {RoleDriver, RoleDispatcher},
		StatusCancelled: {RoleDispatcher},
	},
}

// lenientExtra is consulted when the strictLifecycle policy is off: the
// simplified flow lets a confirmed ride complete without an en_route leg.
var lenientExtra = map[Status]map[Status][]Role{
	StatusConfirmed: {
		StatusCompleted: {RoleDriver, RoleDispatcher},
	},
}

func CanTransition(from, to Status, strict bool) bool {
	return allowedRoles(from, to, strict) != nil
}

// ActorAllowed reports whether role may move a ride from -> to under the
// given lifecycle policy.
func ActorAllowed(from, to Status, role Role, strict bool) bool {
	for _, r := range allowedRoles(from, to, strict) {
		if r == role {
			return true
		}
	}
	return false
}

func allowedRoles(from, to Status, strict bool) []Role {
	if next, ok := transitions[from]; ok {
		if roles, ok := next[to]; ok {
			return roles
		}
	}
	if strict {
		return nil
	}
	if next, ok := lenientExtra[from]; ok {
		return next[to]
	}
	return nil
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentDue     PaymentStatus = "due"
	PaymentPaid    PaymentStatus = "paid"
)

// Ride is a single transport request. Status only ever changes through
// Service transitions; FinalizedFare is written once, at completion.
type Ride struct {
	ID            types.ID      `json:"id"`
	TicketCode    string        `json:"ticket_code"`
	RiderName     string        `json:"rider_name"`
	Phone         string        `json:"phone"`
	Pickup        string        `json:"pickup"`
	PickupNotes   string        `json:"pickup_notes,omitempty"`
	Dropoff       string        `json:"dropoff"`
	Category      fare.Category `json:"category"`
	Party         int           `json:"party"`
	SameDay       bool          `json:"same_day"`
	OutOfTown     bool          `json:"out_of_town"`
	Miles         float64       `json:"miles"`
	Fare          types.Money   `json:"fare"`
	FinalizedFare *types.Money  `json:"finalized_fare,omitempty"`
	Payment       PaymentStatus `json:"payment"`
	Status        Status        `json:"status"`
	StatusVersion int           `json:"-"`
	VehicleID     *types.ID     `json:"vehicle_id,omitempty"`
	Notes         string        `json:"dispatcher_notes,omitempty"`
	RequestedTime time.Time     `json:"requested_time"`
	CreatedAt     time.Time     `json:"created_at"`
	Events        []Event       `json:"events,omitempty"`
}

// Event is one line of the ride's inline lifecycle log, shown to
// dispatchers alongside the ride.
type Event struct {
	ID        int64     `json:"id"`
	RideID    types.ID  `json:"-"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TrackView is the rider-safe subset served by the public ticket lookup.
// No internal ids, phone numbers or dispatcher notes.
type TrackView struct {
	TicketCode    string      `json:"ticket_code"`
	Status        Status      `json:"status"`
	RequestedTime time.Time   `json:"requested_time"`
	Pickup        string      `json:"pickup"`
	Dropoff       string      `json:"dropoff"`
	Party         int         `json:"party"`
	Fare          types.Money `json:"fare"`
	Vehicle       string      `json:"vehicle"` // vehicle name or "unassigned"
}

// ListFilter narrows ride listings. Zero values mean "no filter".
// Unassigned with Status=confirmed is the driver claim pool.
type ListFilter struct {
	Status     Status
	VehicleID  types.ID
	Unassigned bool
	Day        time.Time // any instant inside the wanted day (scheduling TZ)
}
