// README: Pure admission decision tests; no database required.
package ride

import (
	"testing"
	"time"
)

func TestWindowBucketing(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	a := time.Date(2026, 3, 9, 14, 5, 0, 0, loc)
	b := time.Date(2026, 3, 9, 14, 59, 59, 0, loc)
	c := time.Date(2026, 3, 9, 15, 0, 0, 0, loc)

	if !Window(a, loc).Equal(Window(b, loc)) {
		t.Errorf("14:05 and 14:59 should share a window, got %v vs %v", Window(a, loc), Window(b, loc))
	}
	if Window(b, loc).Equal(Window(c, loc)) {
		t.Error("14:59 and 15:00 should not share a window")
	}
	if got := Window(a, loc); got.Minute() != 0 || got.Second() != 0 {
		t.Errorf("window start should be on the hour, got %v", got)
	}

	// A UTC instant buckets by its wall-clock hour in the scheduling zone,
	// not by its UTC hour.
	utc := time.Date(2026, 3, 9, 19, 30, 0, 0, time.UTC) // 14:30 Chicago (CDT)
	if !Window(utc, loc).Equal(Window(a, loc)) {
		t.Errorf("UTC instant should bucket into the Chicago window: %v vs %v", Window(utc, loc), Window(a, loc))
	}
}

func TestAdmit(t *testing.T) {
	now := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	future := now.Add(3 * time.Hour)

	// Two vans, five seats each.
	pool := Pool{Vehicles: 2, Seats: 10, LargestCapacity: 5}

	cases := []struct {
		name      string
		requested time.Time
		party     int
		usage     Usage
		margin    int
		admitted  bool
		busy      bool
		reason    Reason
		remaining int
	}{
		{
			name:      "empty window admits",
			requested: future, party: 2,
			usage:  Usage{},
			margin: 0, admitted: true, reason: ReasonOK, remaining: 10,
		},
		{
			name:      "past request refused",
			requested: now.Add(-time.Minute), party: 1,
			usage:  Usage{},
			reason: ReasonPastTime, remaining: 10,
		},
		{
			name:      "party larger than any vehicle",
			requested: future, party: 6,
			usage:  Usage{},
			reason: ReasonPartyTooLarge, remaining: 10,
		},
		{
			name:      "every vehicle already reserved",
			requested: future, party: 1,
			usage:  Usage{Reservations: 2, Seats: 4},
			reason: ReasonVehiclesFull, remaining: 6,
		},
		{
			name:      "seats exhausted before vehicles",
			requested: future, party: 5,
			usage:  Usage{Reservations: 1, Seats: 7},
			reason: ReasonSeatsFull, remaining: 3,
		},
		{
			name:      "exact seat fit admits",
			requested: future, party: 3,
			usage:  Usage{Reservations: 1, Seats: 7},
			margin: 0, admitted: true, busy: false, reason: ReasonOK, remaining: 3,
		},
		{
			name:      "busy margin flags near-full window",
			requested: future, party: 1,
			usage:  Usage{Reservations: 1, Seats: 2},
			margin: 2, admitted: true, busy: true, reason: ReasonOK, remaining: 8,
		},
		{
			name:      "quiet window is not busy",
			requested: future, party: 1,
			usage:  Usage{},
			margin: 1, admitted: true, busy: false, reason: ReasonOK, remaining: 10,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Admit(now, tc.requested, tc.party, pool, tc.usage, tc.margin)
			if d.Admitted != tc.admitted {
				t.Errorf("admitted = %v, want %v", d.Admitted, tc.admitted)
			}
			if d.Reason != tc.reason {
				t.Errorf("reason = %s, want %s", d.Reason, tc.reason)
			}
			if d.Busy != tc.busy {
				t.Errorf("busy = %v, want %v", d.Busy, tc.busy)
			}
			if d.RemainingSeats != tc.remaining {
				t.Errorf("remaining = %d, want %d", d.RemainingSeats, tc.remaining)
			}
		})
	}
}

func TestAdmitEmptyFleet(t *testing.T) {
	now := time.Now()
	d := Admit(now, now.Add(time.Hour), 1, Pool{}, Usage{}, 0)
	if d.Admitted {
		t.Fatal("no active vehicles should never admit")
	}
	if d.Reason != ReasonPartyTooLarge {
		t.Fatalf("reason = %s, want %s", d.Reason, ReasonPartyTooLarge)
	}
}

func TestAdmitReasonPriority(t *testing.T) {
	// A request that is both in the past and oversized reports past_time:
	// the caller should fix the time before anything else.
	now := time.Now()
	d := Admit(now, now.Add(-time.Hour), 99, Pool{Vehicles: 1, Seats: 4, LargestCapacity: 4}, Usage{}, 0)
	if d.Reason != ReasonPastTime {
		t.Fatalf("reason = %s, want %s", d.Reason, ReasonPastTime)
	}
}
