// README: Capacity admission; pure decision over a fleet/window snapshot.
package ride

import "time"

// Reason classifies a capacity decision for the caller.
type Reason string

const (
	ReasonOK            Reason = "ok"
	ReasonPastTime      Reason = "past_time"
	ReasonPartyTooLarge Reason = "party_too_large"
	ReasonVehiclesFull  Reason = "vehicles_full"
	ReasonSeatsFull     Reason = "seats_full"
)

// Pool is the active fleet at evaluation time.
type Pool struct {
	Vehicles        int
	Seats           int
	LargestCapacity int
}

// Usage is what the requested hour window already holds: one reservation
// per confirmed/en-route ride, plus their summed party sizes.
type Usage struct {
	Reservations int
	Seats        int
}

// Decision is the admission outcome for one request.
type Decision struct {
	Admitted       bool   `json:"admitted"`
	Busy           bool   `json:"busy"`
	RemainingSeats int    `json:"remaining_seats"`
	Reason         Reason `json:"reason"`
}

// Window returns the start of the wall-clock hour containing t in the
// scheduling location. Rides in the same window compete for the same pool.
func Window(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), 0, 0, 0, loc)
}

// Admit decides whether a party-sized request for requestedTime fits the
// window. It is pure: callers supply the pool and usage, so the same
// function backs both the read-only preview and the locked creation path.
func Admit(now, requestedTime time.Time, party int, pool Pool, usage Usage, busyMargin int) Decision {
	remaining := pool.Seats - usage.Seats
	if remaining < 0 {
		remaining = 0
	}
	d := Decision{RemainingSeats: remaining, Reason: ReasonOK}

	if requestedTime.Before(now) {
		d.Reason = ReasonPastTime
		return d
	}
	if party > pool.LargestCapacity {
		// Hard cap: no single vehicle can carry the group, regardless of load.
		d.Reason = ReasonPartyTooLarge
		return d
	}
	if usage.Reservations >= pool.Vehicles {
		d.Reason = ReasonVehiclesFull
		return d
	}
	if usage.Seats+party > pool.Seats {
		d.Reason = ReasonSeatsFull
		return d
	}

	d.Admitted = true
	d.Busy = pool.Vehicles-usage.Reservations <= busyMargin
	return d
}
