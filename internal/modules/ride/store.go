// README: Ride store backed by PostgreSQL; admission and mutations are single transactions.
package ride

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"transit/internal/modules/audit"
	"transit/internal/modules/settings"
	"transit/internal/types"
)

// Advisory lock class for window admission; keeps ride locks from
// colliding with any other advisory-lock user of the same database.
const windowLockClass = 7401

const ticketAttempts = 5

type Store struct {
	db  *pgxpool.Pool
	loc *time.Location

	// newTicket is swapped in tests to force ticket collisions.
	newTicket func() string
}

func NewStore(db *pgxpool.Pool, loc *time.Location) *Store {
	return &Store{db: db, loc: loc, newTicket: NewTicketCode}
}

const rideColumns = `id, ticket_code, rider_name, phone, pickup, pickup_notes, dropoff,
	category, party, same_day, out_of_town, miles,
	fare_cents, finalized_fare_cents, payment, status, status_version,
	vehicle_id, notes, requested_time, created_at`

// CreateAdmitted runs the whole admission unit: take the window's
// advisory lock, read policy and capacity under it, decide, and insert.
// The ride is persisted iff the returned decision is admitted. Requests
// for different windows take different locks and never block each other.
func (s *Store) CreateAdmitted(ctx context.Context, r *Ride, busyMargin int) (Decision, error) {
	ws := Window(r.RequestedTime, s.loc)

	for attempt := 0; attempt < ticketAttempts; attempt++ {
		r.TicketCode = s.newTicket()
		decision, err := s.tryCreate(ctx, r, ws, busyMargin)
		if isUniqueViolation(err, "rides_ticket_code_key") {
			continue
		}
		return decision, err
	}
	return Decision{}, fmt.Errorf("ticket code generation: %d collisions in a row", ticketAttempts)
}

func (s *Store) tryCreate(ctx context.Context, r *Ride, windowStart time.Time, busyMargin int) (Decision, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Decision{}, err
	}
	defer tx.Rollback(ctx)

	// Serialize same-window admissions. xact-scoped: released on commit
	// or rollback, never held across a caller round-trip.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`,
		windowLockClass, int32(windowStart.Unix()/3600)); err != nil {
		return Decision{}, err
	}

	// Policy is read inside the admission transaction so a concurrent
	// settings flip cannot race the initial status.
	var autoAccept bool
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE((SELECT (value #>> '{}')::boolean FROM settings WHERE key = $1), false)`,
		settings.KeyAutoAccept,
	).Scan(&autoAccept); err != nil {
		return Decision{}, err
	}

	pool, err := readPool(ctx, tx)
	if err != nil {
		return Decision{}, err
	}
	usage, err := readUsage(ctx, tx, windowStart)
	if err != nil {
		return Decision{}, err
	}

	decision := Admit(time.Now(), r.RequestedTime, r.Party, pool, usage, busyMargin)
	if !decision.Admitted {
		return decision, nil
	}

	r.Status = StatusPendingReview
	if autoAccept {
		r.Status = StatusConfirmed
	}
	r.StatusVersion = 0
	r.Payment = PaymentPending
	r.CreatedAt = time.Now()

	if _, err := tx.Exec(ctx, `
		INSERT INTO rides (
			id, ticket_code, rider_name, phone, pickup, pickup_notes, dropoff,
			category, party, same_day, out_of_town, miles,
			fare_cents, payment, status, status_version, vehicle_id, notes,
			requested_time, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18,
			$19, $20
		)`,
		string(r.ID), r.TicketCode, r.RiderName, r.Phone, r.Pickup, r.PickupNotes, r.Dropoff,
		string(r.Category), r.Party, r.SameDay, r.OutOfTown, r.Miles,
		r.Fare.Amount, string(r.Payment), string(r.Status), r.StatusVersion, idPtr(r.VehicleID), r.Notes,
		r.RequestedTime, r.CreatedAt,
	); err != nil {
		return Decision{}, err
	}

	if err := insertEvent(ctx, tx, &Event{
		RideID: r.ID,
		Actor:  string(RoleSystem),
		Action: "created",
		Note:   fmt.Sprintf("admitted into %s window as %s", windowStart.Format("15:04"), r.Status),
	}); err != nil {
		return Decision{}, err
	}
	if err := insertAudit(ctx, tx, &audit.Entry{
		Action:     "ride.create",
		Actor:      string(RoleSystem),
		TargetID:   r.ID,
		TargetKind: audit.TargetRide,
		Changes:    audit.Change("status", nil, string(r.Status)),
		Metadata:   "ticket " + r.TicketCode,
	}); err != nil {
		return Decision{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Decision{}, err
	}
	return decision, nil
}

// CapacityPreview is the read-only checkCapacity path: same decision
// function as admission, no lock, no side effects.
func (s *Store) CapacityPreview(ctx context.Context, requestedTime time.Time, party, busyMargin int) (Decision, error) {
	ws := Window(requestedTime, s.loc)
	pool, err := readPool(ctx, s.db)
	if err != nil {
		return Decision{}, err
	}
	usage, err := readUsage(ctx, s.db, ws)
	if err != nil {
		return Decision{}, err
	}
	return Admit(time.Now(), requestedTime, party, pool, usage, busyMargin), nil
}

// WindowUsage exposes current usage for a window; the dispatch layer uses
// it to detect overbooked confirmations.
func (s *Store) WindowUsage(ctx context.Context, at time.Time) (Pool, Usage, error) {
	ws := Window(at, s.loc)
	pool, err := readPool(ctx, s.db)
	if err != nil {
		return Pool{}, Usage{}, err
	}
	usage, err := readUsage(ctx, s.db, ws)
	if err != nil {
		return Pool{}, Usage{}, err
	}
	return pool, usage, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func readPool(ctx context.Context, q querier) (Pool, error) {
	var p Pool
	err := q.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(capacity), 0), COALESCE(MAX(capacity), 0)
		FROM vehicles WHERE status = 'active'`,
	).Scan(&p.Vehicles, &p.Seats, &p.LargestCapacity)
	return p, err
}

func readUsage(ctx context.Context, q querier, windowStart time.Time) (Usage, error) {
	var u Usage
	err := q.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(party), 0)
		FROM rides
		WHERE status IN ('confirmed', 'en_route')
		  AND requested_time >= $1 AND requested_time < $2`,
		windowStart, windowStart.Add(time.Hour),
	).Scan(&u.Reservations, &u.Seats)
	return u, err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Ride, error) {
	row := s.db.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, string(id))
	r, err := scanRide(row)
	if err != nil {
		return nil, err
	}
	r.Events, err = s.listEvents(ctx, r.ID)
	return r, err
}

func (s *Store) GetByTicket(ctx context.Context, ticket string) (*Ride, error) {
	row := s.db.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE ticket_code = $1`, ticket)
	return scanRide(row)
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]*Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides`
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.VehicleID != "" {
		args = append(args, string(f.VehicleID))
		where = append(where, fmt.Sprintf("vehicle_id = $%d", len(args)))
	}
	if f.Unassigned {
		where = append(where, "vehicle_id IS NULL")
	}
	if !f.Day.IsZero() {
		day := f.Day.In(s.loc)
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
		args = append(args, start)
		where = append(where, fmt.Sprintf("requested_time >= $%d", len(args)))
		args = append(args, start.AddDate(0, 0, 1))
		where = append(where, fmt.Sprintf("requested_time < $%d", len(args)))
	}
	for i, w := range where {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}
	query += " ORDER BY requested_time DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateStatus applies one transition via compare-and-swap on the prior
// status+version, writing the lifecycle event and audit entry in the
// same transaction. finalize copies fare into finalized_fare (once) and
// advances payment; it is set when entering completed.
// Returns false when the CAS missed (concurrent mutation won).
func (s *Store) UpdateStatus(ctx context.Context, r *Ride, to Status, finalize bool, e *Event, a *audit.Entry) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET status = $1,
		    status_version = status_version + 1,
		    finalized_fare_cents = CASE WHEN $2 AND finalized_fare_cents IS NULL THEN fare_cents ELSE finalized_fare_cents END,
		    payment = CASE WHEN $2 AND payment = 'pending' THEN 'due' ELSE payment END
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to), finalize, string(r.ID), string(r.Status), r.StatusVersion,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if err := writeTrail(ctx, tx, e, a); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// Confirm moves a pending ride to confirmed under the same per-window
// advisory lock the creation path uses, so concurrent confirms cannot
// push a window past the vehicle cap unnoticed. overbooked reports that
// the window was already at/over cap; without force that refuses the
// confirm, with force it proceeds (the caller logs the override).
func (s *Store) Confirm(ctx context.Context, r *Ride, force bool, e *Event, a *audit.Entry) (ok, overbooked bool, err error) {
	ws := Window(r.RequestedTime, s.loc)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, false, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`,
		windowLockClass, int32(ws.Unix()/3600)); err != nil {
		return false, false, err
	}

	pool, err := readPool(ctx, tx)
	if err != nil {
		return false, false, err
	}
	usage, err := readUsage(ctx, tx, ws)
	if err != nil {
		return false, false, err
	}
	overbooked = usage.Reservations >= pool.Vehicles
	if overbooked && !force {
		return false, true, nil
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET status = $1, status_version = status_version + 1
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(StatusConfirmed), string(r.ID), string(r.Status), r.StatusVersion,
	)
	if err != nil {
		return false, false, err
	}
	if tag.RowsAffected() != 1 {
		return false, false, nil
	}
	if err := writeTrail(ctx, tx, e, a); err != nil {
		return false, false, err
	}
	return true, overbooked, tx.Commit(ctx)
}

// AssignVehicle changes assignment metadata only; status is untouched but
// the version still bumps so concurrent mutations cannot interleave.
// vehicleID nil means unassign.
func (s *Store) AssignVehicle(ctx context.Context, r *Ride, vehicleID *types.ID, e *Event, a *audit.Entry) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET vehicle_id = $1, status_version = status_version + 1
		WHERE id = $2 AND status_version = $3`,
		idPtr(vehicleID), string(r.ID), r.StatusVersion,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if err := writeTrail(ctx, tx, e, a); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// Claim atomically hands an unassigned confirmed ride to a vehicle,
// optionally moving it straight to en_route.
func (s *Store) Claim(ctx context.Context, r *Ride, vehicleID types.ID, to Status, e *Event, a *audit.Entry) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET vehicle_id = $1, status = $2, status_version = status_version + 1
		WHERE id = $3 AND status = 'confirmed' AND vehicle_id IS NULL AND status_version = $4`,
		string(vehicleID), string(to), string(r.ID), r.StatusVersion,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if err := writeTrail(ctx, tx, e, a); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// UpdateDetails edits fare and/or requested time. The finalized-fare
// guard lives in the WHERE clause as well as the service layer, so a
// billing-locked ride can never slip an edit through a stale read.
func (s *Store) UpdateDetails(ctx context.Context, r *Ride, fareCents *int64, requestedTime *time.Time, e *Event, a *audit.Entry) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET fare_cents = COALESCE($1, fare_cents),
		    requested_time = COALESCE($2, requested_time),
		    status_version = status_version + 1
		WHERE id = $3 AND status_version = $4 AND finalized_fare_cents IS NULL`,
		fareCents, requestedTime, string(r.ID), r.StatusVersion,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if err := writeTrail(ctx, tx, e, a); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// AppendAudit records a mutation that happened outside the rides table
// (vehicle status changes) on the shared audit trail.
func (s *Store) AppendAudit(ctx context.Context, a *audit.Entry) error {
	return insertAudit(ctx, s.db, a)
}

func (s *Store) listEvents(ctx context.Context, rideID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, ride_id, actor, action, note, created_at
		FROM ride_events WHERE ride_id = $1 ORDER BY id`,
		string(rideID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.RideID, &e.Actor, &e.Action, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func writeTrail(ctx context.Context, tx pgx.Tx, e *Event, a *audit.Entry) error {
	if err := insertEvent(ctx, tx, e); err != nil {
		return err
	}
	return insertAudit(ctx, tx, a)
}

func insertEvent(ctx context.Context, x execer, e *Event) error {
	_, err := x.Exec(ctx, `
		INSERT INTO ride_events (ride_id, actor, action, note, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		string(e.RideID), e.Actor, e.Action, e.Note,
	)
	return err
}

func insertAudit(ctx context.Context, x execer, a *audit.Entry) error {
	var changes []byte
	if a.Changes != nil {
		b, err := json.Marshal(a.Changes)
		if err != nil {
			return err
		}
		changes = b
	}
	_, err := x.Exec(ctx, `
		INSERT INTO audit_log (action, actor, target_id, target_kind, changes, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		a.Action, a.Actor, string(a.TargetID), string(a.TargetKind), changes, a.Metadata,
	)
	return err
}

func scanRide(row pgx.Row) (*Ride, error) {
	var (
		r         Ride
		finalized *int64
		vehicleID *string
	)
	err := row.Scan(
		&r.ID, &r.TicketCode, &r.RiderName, &r.Phone, &r.Pickup, &r.PickupNotes, &r.Dropoff,
		&r.Category, &r.Party, &r.SameDay, &r.OutOfTown, &r.Miles,
		&r.Fare.Amount, &finalized, &r.Payment, &r.Status, &r.StatusVersion,
		&vehicleID, &r.Notes, &r.RequestedTime, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Fare.Currency = "USD"
	if finalized != nil {
		m := types.USD(*finalized)
		r.FinalizedFare = &m
	}
	if vehicleID != nil {
		id := types.ID(*vehicleID)
		r.VehicleID = &id
	}
	return &r, nil
}

func idPtr(id *types.ID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
	}
	return false
}
