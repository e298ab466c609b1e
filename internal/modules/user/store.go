// README: User store backed by PostgreSQL.
package user

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"transit/internal/types"
)

var ErrNotFound = errors.New("user not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, u *User) error {
	var vehicleID *string
	if u.VehicleID != nil {
		v := string(*u.VehicleID)
		vehicleID = &v
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, role, vehicle_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		string(u.ID), u.Username, u.PasswordHash, string(u.Role), vehicleID,
	)
	return err
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, username, password_hash, role, vehicle_id, created_at
		FROM users WHERE username = $1`, username,
	)
	var u User
	var vehicleID *string
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &vehicleID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if vehicleID != nil {
		id := types.ID(*vehicleID)
		u.VehicleID = &id
	}
	return &u, nil
}
