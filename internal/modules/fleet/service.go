// README: Fleet registry service; pure state holder over the vehicle store.
package fleet

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"transit/internal/types"
)

var ErrBadRequest = errors.New("bad vehicle request")

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) Register(ctx context.Context, v *Vehicle) error {
	if v.Name == "" || v.Capacity <= 0 {
		return ErrBadRequest
	}
	if v.Status == "" {
		v.Status = StatusActive
	}
	if v.ID == "" {
		v.ID = newID()
	}
	return s.store.Create(ctx, v)
}

func newID() types.ID {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return types.ID(hex.EncodeToString(b))
}

func (s *Service) List(ctx context.Context) ([]*Vehicle, error) {
	return s.store.List(ctx)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Vehicle, error) {
	return s.store.Get(ctx, id)
}

// SetStatus flips a vehicle in or out of the capacity pool and returns
// the previous status. Audit logging happens in the dispatch layer.
func (s *Service) SetStatus(ctx context.Context, id types.ID, status Status) (Status, error) {
	if !ValidStatus(status) {
		return "", ErrBadRequest
	}
	return s.store.SetStatus(ctx, id, status)
}

func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	return s.store.ActiveSnapshot(ctx)
}

func (s *Service) AddMaintenance(ctx context.Context, e *MaintenanceEntry) error {
	if e.VehicleID == "" || e.Kind == "" {
		return ErrBadRequest
	}
	if e.Date.IsZero() {
		e.Date = time.Now()
	}
	if _, err := s.store.Get(ctx, e.VehicleID); err != nil {
		return err
	}
	return s.store.AddMaintenance(ctx, e)
}

func (s *Service) ListMaintenance(ctx context.Context, vehicleID types.ID) ([]*MaintenanceEntry, error) {
	return s.store.ListMaintenance(ctx, vehicleID)
}
