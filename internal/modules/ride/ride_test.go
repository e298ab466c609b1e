// README: Ride dispatch tests (state machine + DB-backed lifecycle flows).
package ride

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"transit/internal/modules/fare"
	"transit/internal/modules/fleet"
	"transit/internal/modules/settings"
	"transit/internal/types"
)

// TestCanTransition verifies the state table without a database.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		strict   bool
		want     bool
	}{
		// dispatch review
		{StatusPendingReview, StatusConfirmed, true, true},
		{StatusPendingReview, StatusRejected, true, true},
		// confirmed rides
		{StatusConfirmed, StatusEnRoute, true, true},
		{StatusConfirmed, StatusCancelled, true, true},
		{StatusConfirmed, StatusRejected, true, true},
		{StatusConfirmed, StatusNoShow, true, true},
		// en-route rides
		{StatusEnRoute, StatusCompleted, true, true},
		{StatusEnRoute, StatusCancelled, true, true},
		// the simplified flow skips en_route; only when lenient
		{StatusConfirmed, StatusCompleted, false, true},
		{StatusConfirmed, StatusCompleted, true, false},
		// invalid: terminal states have no outgoing transitions
		{StatusCompleted, StatusEnRoute, false, false},
		{StatusCancelled, StatusConfirmed, false, false},
		{StatusRejected, StatusConfirmed, false, false},
		{StatusNoShow, StatusConfirmed, false, false},
		// invalid: skipping or reversing
		{StatusPendingReview, StatusEnRoute, false, false},
		{StatusPendingReview, StatusCompleted, false, false},
		{StatusPendingReview, StatusNoShow, false, false},
		{StatusEnRoute, StatusConfirmed, false, false},
		{StatusEnRoute, StatusNoShow, false, false},
		{StatusCompleted, StatusCompleted, false, false},
	}
	for _, tc := range cases {
		got := CanTransition(tc.from, tc.to, tc.strict)
		if got != tc.want {
			t.Errorf("CanTransition(%s, %s, strict=%v) = %v, want %v", tc.from, tc.to, tc.strict, got, tc.want)
		}
	}
}

func TestActorAllowed(t *testing.T) {
	cases := []struct {
		from, to Status
		role     Role
		want     bool
	}{
		{StatusPendingReview, StatusConfirmed, RoleDispatcher, true},
		{StatusPendingReview, StatusConfirmed, RoleDriver, false},
		{StatusPendingReview, StatusRejected, RoleDriver, false},
		{StatusConfirmed, StatusEnRoute, RoleDriver, true},
		{StatusConfirmed, StatusEnRoute, RoleDispatcher, false},
		{StatusConfirmed, StatusNoShow, RoleDispatcher, true},
		{StatusConfirmed, StatusNoShow, RoleDriver, false},
		{StatusEnRoute, StatusCompleted, RoleDriver, true},
		{StatusEnRoute, StatusCompleted, RoleDispatcher, true},
		{StatusEnRoute, StatusCancelled, RoleDriver, false},
		{StatusConfirmed, StatusCompleted, RoleDriver, true}, // lenient shortcut
	}
	for _, tc := range cases {
		got := ActorAllowed(tc.from, tc.to, tc.role, false)
		if got != tc.want {
			t.Errorf("ActorAllowed(%s, %s, %s) = %v, want %v", tc.from, tc.to, tc.role, got, tc.want)
		}
	}
}

func TestTicketCodeShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code := NewTicketCode()
		if !strings.HasPrefix(code, "AT-") {
			t.Fatalf("ticket %q missing AT- prefix", code)
		}
		if len(code) != len("AT-")+6 {
			t.Fatalf("ticket %q has wrong length", code)
		}
		for _, ch := range code[3:] {
			if strings.ContainsRune("01IO", ch) {
				t.Fatalf("ticket %q contains ambiguous character %c", code, ch)
			}
		}
		seen[code] = true
	}
	// Not a uniqueness guarantee, but 1000 draws from a 32^6 space
	// colliding would point at a broken generator.
	if len(seen) < 990 {
		t.Fatalf("expected mostly distinct codes, got %d of 1000", len(seen))
	}
}

func TestTicketCollisionRetries(t *testing.T) {
	env := setupTestEnv(t)

	first := mustCreateRide(t, env.svc, "First Rider", 1)

	// Force the next draw to collide with an existing code; the unique
	// constraint must trigger a fresh draw, never persist the duplicate.
	draws := 0
	env.store.newTicket = func() string {
		draws++
		if draws == 1 {
			return first.TicketCode
		}
		return NewTicketCode()
	}

	second := mustCreateRide(t, env.svc, "Second Rider", 1)
	if draws < 2 {
		t.Fatalf("expected a retry after the collision, got %d draws", draws)
	}
	if second.TicketCode == first.TicketCode {
		t.Fatal("colliding ticket code was persisted twice")
	}
}

func TestRideFlowHappyPath(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	r := mustCreateRide(t, env.svc, "Alice Johnson", 2)
	assertRideStatus(t, env.svc, r.ID, StatusPendingReview)
	if r.TicketCode == "" {
		t.Fatal("expected ticket code on created ride")
	}
	if r.Fare.Amount != 300 { // standard base plus one half-fare extra rider
		t.Fatalf("expected 300 cent fare, got %d", r.Fare.Amount)
	}

	if _, err := env.svc.UpdateStatus(ctx, StatusCommand{
		RideID: r.ID, To: StatusConfirmed, Actor: "dispatcher", Role: RoleDispatcher,
	}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	assertRideStatus(t, env.svc, r.ID, StatusConfirmed)

	claimed, err := env.svc.Claim(ctx, ClaimCommand{
		RideID: r.ID, VehicleID: env.vehicles[0], Actor: "driver1", Depart: true,
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != StatusEnRoute {
		t.Fatalf("expected en_route after departing claim, got %s", claimed.Status)
	}
	if claimed.VehicleID == nil || *claimed.VehicleID != env.vehicles[0] {
		t.Fatal("expected claiming vehicle to be assigned")
	}

	vid := env.vehicles[0]
	done, err := env.svc.UpdateStatus(ctx, StatusCommand{
		RideID: r.ID, To: StatusCompleted, Actor: "driver1", Role: RoleDriver, ActorVehicle: &vid,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.FinalizedFare == nil || done.FinalizedFare.Amount != 300 {
		t.Fatalf("expected finalized fare 300, got %+v", done.FinalizedFare)
	}
	if done.Payment != PaymentDue {
		t.Fatalf("expected payment due after completion, got %s", done.Payment)
	}
}

func TestRideRejectAndNoShow(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	r := mustCreateRide(t, env.svc, "Reject Me", 1)
	if _, err := env.svc.UpdateStatus(ctx, StatusCommand{
		RideID: r.ID, To: StatusRejected, Actor: "dispatcher", Role: RoleDispatcher, Note: "out of service area",
	}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	assertRideStatus(t, env.svc, r.ID, StatusRejected)

	// Rejected is terminal.
	if _, err := env.svc.UpdateStatus(ctx, StatusCommand{
		RideID: r.ID, To: StatusConfirmed, Actor: "dispatcher", Role: RoleDispatcher,
	}); err != ErrInvalidState {
		t.Fatalf("confirm after reject: expected ErrInvalidState, got %v", err)
	}

	r2 := mustCreateRide(t, env.svc, "No Show", 1)
	if _, err := env.svc.UpdateStatus(ctx, StatusCommand{
		RideID: r2.ID, To: StatusConfirmed, Actor: "dispatcher", Role: RoleDispatcher,
	}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := env.svc.UpdateStatus(ctx, StatusCommand{
		RideID: r2.ID, To: StatusNoShow, Actor: "dispatcher", Role: RoleDispatcher,
	}); err != nil {
		t.Fatalf("no-show: %v", err)
	}
	assertRideStatus(t, env.svc, r2.ID, StatusNoShow)
}

func TestRideActorGating(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	r := mustCreateRide(t, env.svc, "Gated", 1)

	// Drivers cannot review.
	if _, err := env.svc.UpdateStatus(ctx, StatusCommand{
		RideID: r.ID, To: StatusConfirmed, Actor: "driver1", Role: RoleDriver,
	}); err != ErrUnauthorized {
		t.Fatalf("driver confirm: expected ErrUnauthorized, got %v", err)
	}

	if _, err := env.svc.UpdateStatus(ctx, StatusCommand{
		RideID: r.ID, To: StatusConfirmed, Actor: "dispatcher", Role: RoleDispatcher,
	}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// Starting an unassigned ride goes through Claim, not a bare status write.
	vid := env.vehicles[0]
	if _, err := env.svc.UpdateStatus(ctx, StatusCommand{
		RideID: r.ID, To: StatusEnRoute, Actor: "driver1", Role: RoleDriver, ActorVehicle: &vid,
	}); err != ErrInvalidState {
		t.Fatalf("depart unassigned: expected ErrInvalidState, got %v", err)
	}

	// Assign to vehicle 0, then a driver on vehicle 1 may not start it.
	if _, err := env.svc.AssignVehicle(ctx, AssignCommand{
		RideID: r.ID, VehicleID: &vid, Actor: "dispatcher",
	}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	other := env.vehicles[1]
	if _, err := env.svc.UpdateStatus(ctx, StatusCommand{
		RideID: r.ID, To: StatusEnRoute, Actor: "driver2", Role: RoleDriver, ActorVehicle: &other,
	}); err != ErrUnauthorized {
		t.Fatalf("wrong-vehicle depart: expected ErrUnauthorized, got %v", err)
	}
}

func TestWindowCapacityEnforced(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	at := time.Now().Add(48 * time.Hour).Truncate(time.Hour).Add(15 * time.Minute)

	// Two active vehicles: two confirmed rides fill the window.
	for i := 0; i < 2; i++ {
		r := mustCreateRideAt(t, env.svc, "Rider", 1, at)
		if _, err := env.svc.UpdateStatus(ctx, StatusCommand{
			RideID: r.ID, To: StatusConfirmed, Actor: "dispatcher", Role: RoleDispatcher,
		}); err != nil {
			t.Fatalf("confirm ride %d: %v", i, err)
		}
	}

	// Third request in the same window is refused, not queued.
	_, decision, err := env.svc.Create(ctx, newCreateCommand("Third Rider", 1, at))
	if err != ErrCapacity {
		t.Fatalf("expected ErrCapacity, got %v", err)
	}
	if decision.Reason != ReasonVehiclesFull {
		t.Fatalf("expected vehicles_full, got %s", decision.Reason)
	}

	// The next hour's window is unaffected.
	later := at.Add(time.Hour)
	if _, _, err := env.svc.Create(ctx, newCreateCommand("Later Rider", 1, later)); err != nil {
		t.Fatalf("create in next window: %v", err)
	}
}

func TestConfirmIntoFullWindowNeedsForce(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	at := time.Now().Add(72 * time.Hour).Truncate(time.Hour).Add(10 * time.Minute)

	// Admit three rides while the window is empty, then confirm two.
	var rides []*Ride
	for i := 0; i < 3; i++ {
		rides = append(rides, mustCreateRideAt(t, env.svc, "Rider", 1, at))
	}
	for i := 0; i < 2; i++ {
		if _, err := env.svc.UpdateStatus(ctx, StatusCommand{
			RideID: rides[i].ID, To: StatusConfirmed, Actor: "dispatcher", Role: RoleDispatcher,
		}); err != nil {
			t.Fatalf("confirm %d: %v", i, err)
		}
	}

	// The third confirm would overbook the two-vehicle window.
	if _, err := env.svc.UpdateStatus(ctx, StatusCommand{
		RideID: rides[2].ID, To: StatusConfirmed, Actor: "dispatcher", Role: RoleDispatcher,
	}); err != ErrCapacity {
		t.Fatalf("overbooking confirm: expected ErrCapacity, got %v", err)
	}
	assertRideStatus(t, env.svc, rides[2].ID, StatusPendingReview)

	// With force the dispatcher may override; the override is audited.
	if _, err := env.svc.UpdateStatus(ctx, StatusCommand{
		RideID: rides[2].ID, To: StatusConfirmed, Actor: "dispatcher", Role: RoleDispatcher, Force: true,
	}); err != nil {
		t.Fatalf("forced confirm: %v", err)
	}
	assertRideStatus(t, env.svc, rides[2].ID, StatusConfirmed)

	var n int
	if err := env.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_log WHERE action = 'ride.force_confirm' AND target_id = $1`,
		string(rides[2].ID),
	).Scan(&n); err != nil {
		t.Fatalf("count force_confirm audits: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 force_confirm audit entry, got %d", n)
	}
}

func TestAuditTrailPerMutation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	r := mustCreateRide(t, env.svc, "Audited Rider", 1)
	if _, err := env.svc.UpdateStatus(ctx, StatusCommand{
		RideID: r.ID, To: StatusConfirmed, Actor: "dispatcher", Role: RoleDispatcher,
	}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	vid := env.vehicles[0]
	if _, err := env.svc.AssignVehicle(ctx, AssignCommand{
		RideID: r.ID, VehicleID: &vid, Actor: "dispatcher",
	}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	countAudits := func(action string) int {
		t.Helper()
		var n int
		if err := env.db.QueryRow(ctx,
			`SELECT COUNT(*) FROM audit_log WHERE action = $1 AND target_id = $2`,
			action, string(r.ID),
		).Scan(&n); err != nil {
			t.Fatalf("count %s audits: %v", action, err)
		}
		return n
	}
	for action, want := range map[string]int{
		"ride.create": 1,
		"ride.status": 1,
		"ride.assign": 1,
	} {
		if got := countAudits(action); got != want {
			t.Fatalf("expected %d %s audit entries, got %d", want, action, got)
		}
	}

	// Before/after on the status entry must match the mutation.
	var before, after string
	if err := env.db.QueryRow(ctx, `
		SELECT changes #>> '{status,before}', changes #>> '{status,after}'
		FROM audit_log WHERE action = 'ride.status' AND target_id = $1`,
		string(r.ID),
	).Scan(&before, &after); err != nil {
		t.Fatalf("read status audit changes: %v", err)
	}
	if before != string(StatusPendingReview) || after != string(StatusConfirmed) {
		t.Fatalf("status audit recorded %q -> %q", before, after)
	}

	// Existing entries are immutable at the storage layer: the trigger
	// raises, it does not silently swallow.
	if _, err := env.db.Exec(ctx,
		`UPDATE audit_log SET actor = 'tamper' WHERE target_id = $1`, string(r.ID),
	); err == nil {
		t.Fatal("expected UPDATE on audit_log to fail")
	}
	if _, err := env.db.Exec(ctx,
		`DELETE FROM audit_log WHERE target_id = $1`, string(r.ID),
	); err == nil {
		t.Fatal("expected DELETE on audit_log to fail")
	}
	if got := countAudits("ride.create"); got != 1 {
		t.Fatalf("audit row did not survive tampering, count %d", got)
	}
}

func TestBillingLock(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	r := mustCreateRide(t, env.svc, "Billable", 1)
	if _, err := env.svc.UpdateStatus(ctx, StatusCommand{
		RideID: r.ID, To: StatusConfirmed, Actor: "dispatcher", Role: RoleDispatcher,
	}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// Fare edits work while the ride is open.
	newFare := int64(750)
	edited, err := env.svc.UpdateDetails(ctx, DetailsCommand{
		RideID: r.ID, FareCents: &newFare, Actor: "dispatcher",
	})
	if err != nil {
		t.Fatalf("edit fare: %v", err)
	}
	if edited.Fare.Amount != 750 {
		t.Fatalf("expected fare 750, got %d", edited.Fare.Amount)
	}

	// Lenient flow: confirmed -> completed finalizes billing.
	done, err := env.svc.UpdateStatus(ctx, StatusCommand{
		RideID: r.ID, To: StatusCompleted, Actor: "dispatcher", Role: RoleDispatcher,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.FinalizedFare == nil || done.FinalizedFare.Amount != 750 {
		t.Fatalf("expected finalized fare 750, got %+v", done.FinalizedFare)
	}

	// All edits refuse after finalization.
	if _, err := env.svc.UpdateDetails(ctx, DetailsCommand{
		RideID: r.ID, FareCents: &newFare, Actor: "dispatcher",
	}); err != ErrBillingLocked {
		t.Fatalf("edit after completion: expected ErrBillingLocked, got %v", err)
	}
}

func TestStrictLifecyclePolicy(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	if _, err := env.settings.Set(ctx, settings.KeyStrictLifecycle, true, "test"); err != nil {
		t.Fatalf("set strictLifecycle: %v", err)
	}

	r := mustCreateRide(t, env.svc, "Strict", 1)
	if _, err := env.svc.UpdateStatus(ctx, StatusCommand{
		RideID: r.ID, To: StatusConfirmed, Actor: "dispatcher", Role: RoleDispatcher,
	}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// Under strict lifecycle the en_route leg is mandatory.
	if _, err := env.svc.UpdateStatus(ctx, StatusCommand{
		RideID: r.ID, To: StatusCompleted, Actor: "dispatcher", Role: RoleDispatcher,
	}); err != ErrInvalidState {
		t.Fatalf("complete without en_route: expected ErrInvalidState, got %v", err)
	}
}

func TestAutoAcceptPolicy(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	if _, err := env.settings.Set(ctx, settings.KeyAutoAccept, true, "test"); err != nil {
		t.Fatalf("set autoAccept: %v", err)
	}

	r := mustCreateRide(t, env.svc, "Auto", 1)
	assertRideStatus(t, env.svc, r.ID, StatusConfirmed)
}

func TestTrackByTicket(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	r := mustCreateRide(t, env.svc, "Tracked Rider", 2)

	view, err := env.svc.TrackByTicket(ctx, r.TicketCode)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if view.TicketCode != r.TicketCode {
		t.Fatalf("ticket mismatch: %s vs %s", view.TicketCode, r.TicketCode)
	}
	if view.Status != StatusPendingReview {
		t.Fatalf("expected pending_review, got %s", view.Status)
	}
	if view.Vehicle != "unassigned" {
		t.Fatalf("expected unassigned vehicle, got %s", view.Vehicle)
	}

	if _, err := env.svc.TrackByTicket(ctx, "AT-XXXXXX"); err != ErrNotFound {
		t.Fatalf("unknown ticket: expected ErrNotFound, got %v", err)
	}
}

func TestListFilters(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	a := mustCreateRide(t, env.svc, "Pool Rider", 1)
	b := mustCreateRide(t, env.svc, "Assigned Rider", 1)
	for _, id := range []types.ID{a.ID, b.ID} {
		if _, err := env.svc.UpdateStatus(ctx, StatusCommand{
			RideID: id, To: StatusConfirmed, Actor: "dispatcher", Role: RoleDispatcher,
		}); err != nil {
			t.Fatalf("confirm: %v", err)
		}
	}
	vid := env.vehicles[0]
	if _, err := env.svc.AssignVehicle(ctx, AssignCommand{
		RideID: b.ID, VehicleID: &vid, Actor: "dispatcher",
	}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	// The driver claim pool: confirmed and unassigned.
	pool, err := env.svc.List(ctx, ListFilter{Status: StatusConfirmed, Unassigned: true})
	if err != nil {
		t.Fatalf("list pool: %v", err)
	}
	if len(pool) != 1 || pool[0].ID != a.ID {
		t.Fatalf("expected only the unassigned ride in the pool, got %d rides", len(pool))
	}

	// A vehicle's manifest.
	manifest, err := env.svc.List(ctx, ListFilter{VehicleID: vid})
	if err != nil {
		t.Fatalf("list manifest: %v", err)
	}
	if len(manifest) != 1 || manifest[0].ID != b.ID {
		t.Fatalf("expected only the assigned ride on the manifest, got %d rides", len(manifest))
	}

	if _, err := env.svc.List(ctx, ListFilter{Status: "teleporting"}); err != ErrBadRequest {
		t.Fatalf("bad status filter: expected ErrBadRequest, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	base := newCreateCommand("Valid Rider", 1, time.Now().Add(24*time.Hour))

	cases := []struct {
		name   string
		mutate func(*CreateCommand)
	}{
		{"missing name", func(c *CreateCommand) { c.RiderName = "" }},
		{"missing phone", func(c *CreateCommand) { c.Phone = "" }},
		{"missing pickup", func(c *CreateCommand) { c.Pickup = "" }},
		{"missing dropoff", func(c *CreateCommand) { c.Dropoff = "" }},
		{"zero party", func(c *CreateCommand) { c.Party = 0 }},
		{"oversized party", func(c *CreateCommand) { c.Party = 6 }},
		{"bad category", func(c *CreateCommand) { c.Category = "first_class" }},
		{"zero time", func(c *CreateCommand) { c.RequestedTime = time.Time{} }},
		{"negative miles", func(c *CreateCommand) { c.Miles = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := base
			tc.mutate(&cmd)
			if _, _, err := env.svc.Create(ctx, cmd); err != ErrBadRequest {
				t.Fatalf("expected ErrBadRequest, got %v", err)
			}
		})
	}

	// Past times are a validation failure, not a capacity refusal.
	cmd := base
	cmd.RequestedTime = time.Now().Add(-time.Hour)
	if _, _, err := env.svc.Create(ctx, cmd); err != ErrBadRequest {
		t.Fatalf("past time: expected ErrBadRequest, got %v", err)
	}
}

// --- test harness ---

type testEnv struct {
	svc      *Service
	store    *Store
	db       *pgxpool.Pool
	fleet    *fleet.Service
	settings *settings.Store
	vehicles []types.ID
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := os.Getenv("TRANSIT_TEST_DSN")
	if dsn == "" {
		t.Skip("TRANSIT_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	// TRUNCATE fires no row-level triggers, so resetting audit_log here
	// does not trip its append-only guard.
	if _, err := db.Exec(ctx,
		"TRUNCATE TABLE ride_events, rides, vehicle_maintenance, users, vehicles, settings, audit_log",
	); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	fleetSvc := fleet.NewService(fleet.NewStore(db))
	var vehicleIDs []types.ID
	for _, seed := range []struct {
		name string
		cap  int
	}{{"Test Van 1", 5}, {"Test Van 2", 5}} {
		v := &fleet.Vehicle{Name: seed.name, Class: fleet.ClassLargeVan, Capacity: seed.cap}
		if err := fleetSvc.Register(ctx, v); err != nil {
			t.Fatalf("register vehicle: %v", err)
		}
		vehicleIDs = append(vehicleIDs, v.ID)
	}

	settingsStore := settings.NewStore(db)
	store := NewStore(db, loc)
	svc := NewService(store, fleetSvc, settingsStore, nil, 0)

	return &testEnv{svc: svc, store: store, db: db, fleet: fleetSvc, settings: settingsStore, vehicles: vehicleIDs}
}

func newCreateCommand(name string, party int, at time.Time) CreateCommand {
	return CreateCommand{
		RiderName:     name,
		Phone:         "555-0100",
		Pickup:        "120 E Main St",
		Dropoff:       "Rogue Valley Medical Center",
		Category:      fare.CategoryStandard,
		Party:         party,
		RequestedTime: at,
	}
}

func mustCreateRide(t *testing.T, svc *Service, name string, party int) *Ride {
	t.Helper()
	return mustCreateRideAt(t, svc, name, party, time.Now().Add(24*time.Hour))
}

func mustCreateRideAt(t *testing.T, svc *Service, name string, party int, at time.Time) *Ride {
	t.Helper()
	r, _, err := svc.Create(context.Background(), newCreateCommand(name, party, at))
	if err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return r
}

func assertRideStatus(t *testing.T, svc *Service, id types.ID, want Status) {
	t.Helper()
	r, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	if r.Status != want {
		t.Fatalf("expected status %s, got %s", want, r.Status)
	}
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	cleaned := stripSQLComments(string(content))
	for _, stmt := range splitSQL(cleaned) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

// splitSQL splits on statement-terminating semicolons; semicolons inside
// dollar-quoted function bodies do not end a statement.
func splitSQL(input string) []string {
	var out []string
	var b strings.Builder
	inDollar := false
	for i := 0; i < len(input); i++ {
		if input[i] == '$' && i+1 < len(input) && input[i+1] == '$' {
			inDollar = !inDollar
			b.WriteString("$$")
			i++
			continue
		}
		if input[i] == ';' && !inDollar {
			if stmt := strings.TrimSpace(b.String()); stmt != "" {
				out = append(out, stmt)
			}
			b.Reset()
			continue
		}
		b.WriteByte(input[i])
	}
	if stmt := strings.TrimSpace(b.String()); stmt != "" {
		out = append(out, stmt)
	}
	return out
}
