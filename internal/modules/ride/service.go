// README: Ride dispatch engine; admission, state transitions, audit side effects.
package ride

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"transit/internal/modules/audit"
	"transit/internal/modules/fare"
	"transit/internal/modules/fleet"
	"transit/internal/modules/settings"
	"transit/internal/types"
)

var (
	ErrBadRequest    = errors.New("bad ride request")
	ErrCapacity      = errors.New("window capacity conflict")
	ErrBillingLocked = errors.New("ride billing is locked")
	ErrNotFound      = errors.New("ride not found")
	ErrUnauthorized  = errors.New("actor not allowed")
	ErrInvalidState  = errors.New("invalid state transition")
	ErrConflict      = errors.New("ride state conflict")
)

const maxParty = 5

// Fleet is the slice of the fleet registry the dispatch engine needs.
type Fleet interface {
	Get(ctx context.Context, id types.ID) (*fleet.Vehicle, error)
	SetStatus(ctx context.Context, id types.ID, status fleet.Status) (fleet.Status, error)
	AddMaintenance(ctx context.Context, e *fleet.MaintenanceEntry) error
}

// Policies reads global dispatch policy at call time; never cached.
type Policies interface {
	GetBool(ctx context.Context, key string, def bool) (bool, error)
}

// Tracker caches rider-safe tracking views. A nil Tracker disables caching.
type Tracker interface {
	Get(ctx context.Context, ticket string) (*TrackView, error)
	Set(ctx context.Context, view *TrackView) error
	Invalidate(ctx context.Context, ticket string) error
}

type Service struct {
	store      *Store
	fleet      Fleet
	policies   Policies
	tracker    Tracker
	busyMargin int
}

func NewService(store *Store, fl Fleet, policies Policies, tracker Tracker, busyMargin int) *Service {
	return &Service{store: store, fleet: fl, policies: policies, tracker: tracker, busyMargin: busyMargin}
}

type CreateCommand struct {
	RiderName     string
	Phone         string
	Pickup        string
	PickupNotes   string
	Dropoff       string
	Category      fare.Category
	Party         int
	SameDay       bool
	OutOfTown     bool
	Miles         float64
	RequestedTime time.Time
}

// Create prices the request and runs the atomic admission unit. On a
// capacity refusal the returned decision explains why; a lost same-window
// race surfaces as ErrCapacity, not a generic validation failure.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Ride, Decision, error) {
	if cmd.RiderName == "" || cmd.Phone == "" || cmd.Pickup == "" || cmd.Dropoff == "" {
		return nil, Decision{}, ErrBadRequest
	}
	if cmd.Party < 1 || cmd.Party > maxParty {
		return nil, Decision{}, ErrBadRequest
	}
	if !fare.ValidCategory(cmd.Category) {
		return nil, Decision{}, ErrBadRequest
	}
	if cmd.RequestedTime.IsZero() {
		return nil, Decision{}, ErrBadRequest
	}
	if cmd.Miles < 0 {
		return nil, Decision{}, ErrBadRequest
	}

	quote := fare.Quote(fare.Input{
		Category:  cmd.Category,
		SameDay:   cmd.SameDay,
		Party:     cmd.Party,
		OutOfTown: cmd.OutOfTown,
		Miles:     cmd.Miles,
	})

	r := &Ride{
		ID:            newID(),
		RiderName:     cmd.RiderName,
		Phone:         cmd.Phone,
		Pickup:        cmd.Pickup,
		PickupNotes:   cmd.PickupNotes,
		Dropoff:       cmd.Dropoff,
		Category:      cmd.Category,
		Party:         cmd.Party,
		SameDay:       cmd.SameDay,
		OutOfTown:     cmd.OutOfTown,
		Miles:         cmd.Miles,
		Fare:          quote,
		RequestedTime: cmd.RequestedTime,
	}

	decision, err := s.store.CreateAdmitted(ctx, r, s.busyMargin)
	if err != nil {
		return nil, Decision{}, err
	}
	if !decision.Admitted {
		if decision.Reason == ReasonPastTime {
			return nil, decision, ErrBadRequest
		}
		return nil, decision, ErrCapacity
	}
	return r, decision, nil
}

// CheckCapacity is the read-only preview; no lock, no side effects.
func (s *Service) CheckCapacity(ctx context.Context, requestedTime time.Time, party int) (Decision, error) {
	if party < 1 || party > maxParty {
		return Decision{}, ErrBadRequest
	}
	if requestedTime.IsZero() {
		return Decision{}, ErrBadRequest
	}
	return s.store.CapacityPreview(ctx, requestedTime, party, s.busyMargin)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Ride, error) {
	if f.Status != "" && !ValidStatus(f.Status) {
		return nil, ErrBadRequest
	}
	return s.store.List(ctx, f)
}

type StatusCommand struct {
	RideID types.ID
	To     Status
	Actor  string
	Role   Role
	Note   string
	// Force acknowledges confirming into a window already at the
	// vehicle cap; the override is logged as an overbooking event.
	Force bool
	// ActorVehicle is the acting driver's vehicle, required to start
	// an assigned ride.
	ActorVehicle *types.ID
}

// UpdateStatus applies one transition from the state table, with the
// lifecycle event and audit entry written atomically alongside it.
func (s *Service) UpdateStatus(ctx context.Context, cmd StatusCommand) (*Ride, error) {
	if !ValidStatus(cmd.To) || cmd.Actor == "" {
		return nil, ErrBadRequest
	}
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}

	strict, err := s.policies.GetBool(ctx, settings.KeyStrictLifecycle, false)
	if err != nil {
		return nil, err
	}
	if !CanTransition(r.Status, cmd.To, strict) {
		return nil, ErrInvalidState
	}
	if !ActorAllowed(r.Status, cmd.To, cmd.Role, strict) {
		return nil, ErrUnauthorized
	}

	if cmd.To == StatusEnRoute {
		if r.VehicleID == nil {
			// Unassigned rides are started through Claim.
			return nil, ErrInvalidState
		}
		if cmd.Role == RoleDriver && (cmd.ActorVehicle == nil || *cmd.ActorVehicle != *r.VehicleID) {
			return nil, ErrUnauthorized
		}
	}

	if cmd.To == StatusConfirmed {
		return s.confirm(ctx, r, cmd)
	}

	finalize := cmd.To == StatusCompleted
	e := &Event{RideID: r.ID, Actor: cmd.Actor, Action: "status " + string(r.Status) + " -> " + string(cmd.To), Note: cmd.Note}
	a := &audit.Entry{
		Action:     "ride.status",
		Actor:      cmd.Actor,
		TargetID:   r.ID,
		TargetKind: audit.TargetRide,
		Changes:    audit.Change("status", string(r.Status), string(cmd.To)),
		Metadata:   cmd.Note,
	}
	ok, err := s.store.UpdateStatus(ctx, r, cmd.To, finalize, e, a)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.invalidate(ctx, r.TicketCode)
	return s.store.Get(ctx, r.ID)
}

func (s *Service) confirm(ctx context.Context, r *Ride, cmd StatusCommand) (*Ride, error) {
	e := &Event{RideID: r.ID, Actor: cmd.Actor, Action: "status " + string(r.Status) + " -> confirmed", Note: cmd.Note}
	a := &audit.Entry{
		Action:     "ride.status",
		Actor:      cmd.Actor,
		TargetID:   r.ID,
		TargetKind: audit.TargetRide,
		Changes:    audit.Change("status", string(r.Status), string(StatusConfirmed)),
		Metadata:   cmd.Note,
	}
	if cmd.Force {
		a.Action = "ride.force_confirm"
		a.Metadata = "overbooking override acknowledged"
		e.Note = "force-confirmed into a full window"
	}
	ok, overbooked, err := s.store.Confirm(ctx, r, cmd.Force, e, a)
	if err != nil {
		return nil, err
	}
	if !ok {
		if overbooked {
			return nil, ErrCapacity
		}
		return nil, ErrConflict
	}
	s.invalidate(ctx, r.TicketCode)
	return s.store.Get(ctx, r.ID)
}

type AssignCommand struct {
	RideID    types.ID
	VehicleID *types.ID // nil unassigns
	Actor     string
}

// AssignVehicle moves assignment metadata only; the ride keeps its status.
func (s *Service) AssignVehicle(ctx context.Context, cmd AssignCommand) (*Ride, error) {
	if cmd.Actor == "" {
		return nil, ErrBadRequest
	}
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}

	before, after := "unassigned", "unassigned"
	if r.VehicleID != nil {
		before = string(*r.VehicleID)
	}
	if cmd.VehicleID != nil {
		if _, err := s.fleet.Get(ctx, *cmd.VehicleID); err != nil {
			if errors.Is(err, fleet.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		after = string(*cmd.VehicleID)
	}

	e := &Event{RideID: r.ID, Actor: cmd.Actor, Action: "assigned " + after}
	a := &audit.Entry{
		Action:     "ride.assign",
		Actor:      cmd.Actor,
		TargetID:   r.ID,
		TargetKind: audit.TargetRide,
		Changes:    audit.Change("vehicle", before, after),
	}
	ok, err := s.store.AssignVehicle(ctx, r, cmd.VehicleID, e, a)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.invalidate(ctx, r.TicketCode)
	return s.store.Get(ctx, r.ID)
}

type ClaimCommand struct {
	RideID    types.ID
	VehicleID types.ID
	Actor     string
	// Depart moves straight to en_route; otherwise the ride stays
	// confirmed with the claim recorded.
	Depart bool
}

// Claim lets a driver take an unclaimed confirmed ride: assignment and,
// when departing, the status change happen in one atomic mutation.
func (s *Service) Claim(ctx context.Context, cmd ClaimCommand) (*Ride, error) {
	if cmd.Actor == "" || cmd.VehicleID == "" {
		return nil, ErrBadRequest
	}
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusConfirmed || r.VehicleID != nil {
		return nil, ErrInvalidState
	}
	if _, err := s.fleet.Get(ctx, cmd.VehicleID); err != nil {
		if errors.Is(err, fleet.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	to := StatusConfirmed
	if cmd.Depart {
		to = StatusEnRoute
	}
	e := &Event{RideID: r.ID, Actor: cmd.Actor, Action: "claimed by " + string(cmd.VehicleID)}
	a := &audit.Entry{
		Action:     "ride.claim",
		Actor:      cmd.Actor,
		TargetID:   r.ID,
		TargetKind: audit.TargetRide,
		Changes: map[string]any{
			"vehicle": map[string]any{"before": "unassigned", "after": string(cmd.VehicleID)},
			"status":  map[string]any{"before": string(r.Status), "after": string(to)},
		},
	}
	ok, err := s.store.Claim(ctx, r, cmd.VehicleID, to, e, a)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	s.invalidate(ctx, r.TicketCode)
	return s.store.Get(ctx, r.ID)
}

type DetailsCommand struct {
	RideID        types.ID
	FareCents     *int64
	RequestedTime *time.Time
	Actor         string
}

// UpdateDetails edits fare and/or scheduled time. Rides whose fare has
// been finalized refuse all edits with ErrBillingLocked.
func (s *Service) UpdateDetails(ctx context.Context, cmd DetailsCommand) (*Ride, error) {
	if cmd.Actor == "" || (cmd.FareCents == nil && cmd.RequestedTime == nil) {
		return nil, ErrBadRequest
	}
	if cmd.FareCents != nil && *cmd.FareCents < 0 {
		return nil, ErrBadRequest
	}
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	if r.FinalizedFare != nil {
		return nil, ErrBillingLocked
	}

	changes := map[string]any{}
	if cmd.FareCents != nil {
		changes["fare_cents"] = map[string]any{"before": r.Fare.Amount, "after": *cmd.FareCents}
	}
	if cmd.RequestedTime != nil {
		changes["requested_time"] = map[string]any{"before": r.RequestedTime, "after": *cmd.RequestedTime}
	}
	e := &Event{RideID: r.ID, Actor: cmd.Actor, Action: "details updated"}
	a := &audit.Entry{
		Action:     "ride.details",
		Actor:      cmd.Actor,
		TargetID:   r.ID,
		TargetKind: audit.TargetRide,
		Changes:    changes,
	}
	ok, err := s.store.UpdateDetails(ctx, r, cmd.FareCents, cmd.RequestedTime, e, a)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The guarded UPDATE also refuses when finalization landed
		// between our read and the write.
		fresh, ferr := s.store.Get(ctx, cmd.RideID)
		if ferr == nil && fresh.FinalizedFare != nil {
			return nil, ErrBillingLocked
		}
		return nil, ErrConflict
	}
	s.invalidate(ctx, r.TicketCode)
	return s.store.Get(ctx, r.ID)
}

// TrackByTicket serves the rider-facing lookup, cached briefly since
// riders poll it.
func (s *Service) TrackByTicket(ctx context.Context, ticket string) (*TrackView, error) {
	if ticket == "" {
		return nil, ErrBadRequest
	}
	if s.tracker != nil {
		if view, err := s.tracker.Get(ctx, ticket); err == nil && view != nil {
			return view, nil
		}
	}

	r, err := s.store.GetByTicket(ctx, ticket)
	if err != nil {
		return nil, err
	}
	view := &TrackView{
		TicketCode:    r.TicketCode,
		Status:        r.Status,
		RequestedTime: r.RequestedTime,
		Pickup:        r.Pickup,
		Dropoff:       r.Dropoff,
		Party:         r.Party,
		Fare:          r.Fare,
		Vehicle:       "unassigned",
	}
	if r.VehicleID != nil {
		if v, err := s.fleet.Get(ctx, *r.VehicleID); err == nil {
			view.Vehicle = v.Name
		}
	}
	if s.tracker != nil {
		_ = s.tracker.Set(ctx, view)
	}
	return view, nil
}

// SetVehicleStatus flips a vehicle's operational state. The registry
// itself stays a pure state holder; the audit write happens here.
func (s *Service) SetVehicleStatus(ctx context.Context, vehicleID types.ID, status fleet.Status, actor string) error {
	if actor == "" {
		return ErrBadRequest
	}
	prev, err := s.fleet.SetStatus(ctx, vehicleID, status)
	if err != nil {
		if errors.Is(err, fleet.ErrNotFound) {
			return ErrNotFound
		}
		if errors.Is(err, fleet.ErrBadRequest) {
			return ErrBadRequest
		}
		return err
	}
	return s.store.AppendAudit(ctx, &audit.Entry{
		Action:     "vehicle.status",
		Actor:      actor,
		TargetID:   vehicleID,
		TargetKind: audit.TargetVehicle,
		Changes:    audit.Change("status", string(prev), string(status)),
	})
}

// AddVehicleMaintenance records a service entry and audits it.
func (s *Service) AddVehicleMaintenance(ctx context.Context, e *fleet.MaintenanceEntry, actor string) error {
	if actor == "" {
		return ErrBadRequest
	}
	if err := s.fleet.AddMaintenance(ctx, e); err != nil {
		if errors.Is(err, fleet.ErrNotFound) {
			return ErrNotFound
		}
		if errors.Is(err, fleet.ErrBadRequest) {
			return ErrBadRequest
		}
		return err
	}
	return s.store.AppendAudit(ctx, &audit.Entry{
		Action:     "vehicle.maintenance",
		Actor:      actor,
		TargetID:   e.VehicleID,
		TargetKind: audit.TargetVehicle,
		Changes:    audit.Change("maintenance", nil, e.Kind),
		Metadata:   e.Notes,
	})
}

func (s *Service) invalidate(ctx context.Context, ticket string) {
	if s.tracker != nil {
		_ = s.tracker.Invalidate(ctx, ticket)
	}
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
