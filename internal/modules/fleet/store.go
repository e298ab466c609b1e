// README: Vehicle store backed by PostgreSQL.
package fleet

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"transit/internal/types"
)

var ErrNotFound = errors.New("vehicle not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, v *Vehicle) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO vehicles (id, name, class, capacity, status, engine_hours, last_service_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		string(v.ID), v.Name, string(v.Class), v.Capacity, string(v.Status), v.EngineHours, v.LastServiceDate,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Vehicle, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, class, capacity, status, engine_hours, last_service_date, created_at
		FROM vehicles WHERE id = $1`, string(id),
	)
	return scanVehicle(row)
}

func (s *Store) GetByName(ctx context.Context, name string) (*Vehicle, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, class, capacity, status, engine_hours, last_service_date, created_at
		FROM vehicles WHERE name = $1`, name,
	)
	return scanVehicle(row)
}

func (s *Store) List(ctx context.Context) ([]*Vehicle, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, class, capacity, status, engine_hours, last_service_date, created_at
		FROM vehicles ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SetStatus returns the previous status so the caller can audit the change.
func (s *Store) SetStatus(ctx context.Context, id types.ID, status Status) (Status, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE vehicles v SET status = $1
		FROM (SELECT status AS prev FROM vehicles WHERE id = $2) old
		WHERE v.id = $2
		RETURNING old.prev`,
		string(status), string(id),
	)
	var prev string
	if err := row.Scan(&prev); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return Status(prev), nil
}

// ActiveSnapshot reads the live capacity pool. Out-of-service vehicles
// drop out of the pool the moment their row changes.
func (s *Store) ActiveSnapshot(ctx context.Context) (Snapshot, error) {
	row := s.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(capacity), 0), COALESCE(MAX(capacity), 0)
		FROM vehicles WHERE status = 'active'`,
	)
	var snap Snapshot
	if err := row.Scan(&snap.ActiveVehicles, &snap.ActiveSeats, &snap.LargestCapacity); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) AddMaintenance(ctx context.Context, e *MaintenanceEntry) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO vehicle_maintenance (vehicle_id, kind, date, cost_cents, notes, engine_hours_at_service)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		string(e.VehicleID), e.Kind, e.Date, e.CostCents, e.Notes, e.EngineHoursAtSvc,
	)
	return row.Scan(&e.ID)
}

func (s *Store) ListMaintenance(ctx context.Context, vehicleID types.ID) ([]*MaintenanceEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, vehicle_id, kind, date, cost_cents, notes, engine_hours_at_service
		FROM vehicle_maintenance WHERE vehicle_id = $1 ORDER BY date DESC`,
		string(vehicleID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MaintenanceEntry
	for rows.Next() {
		var e MaintenanceEntry
		if err := rows.Scan(&e.ID, &e.VehicleID, &e.Kind, &e.Date, &e.CostCents, &e.Notes, &e.EngineHoursAtSvc); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func scanVehicle(row pgx.Row) (*Vehicle, error) {
	var v Vehicle
	err := row.Scan(&v.ID, &v.Name, &v.Class, &v.Capacity, &v.Status, &v.EngineHours, &v.LastServiceDate, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
