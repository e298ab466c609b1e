// README: Login and JWT issuing for staff accounts.
package user

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"

	"transit/internal/types"
)

var (
	ErrBadCredentials = errors.New("unknown username or password")
	ErrBadRequest     = errors.New("bad user request")
)

const tokenTTL = 12 * time.Hour

type Service struct {
	store  *Store
	secret string
}

func NewService(store *Store, secret string) *Service {
	return &Service{store: store, secret: secret}
}

// Login checks the password hash and returns a signed token carrying
// the user's role, and for drivers their vehicle.
func (s *Service) Login(ctx context.Context, username, password string) (string, *User, error) {
	if username == "" || password == "" {
		return "", nil, ErrBadRequest
	}
	u, err := s.store.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return "", nil, ErrBadCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrBadCredentials
	}

	claims := jwt.MapClaims{
		"user_id":  string(u.ID),
		"username": u.Username,
		"role":     string(u.Role),
		"exp":      time.Now().Add(tokenTTL).Unix(),
	}
	if u.VehicleID != nil {
		claims["vehicle_id"] = string(*u.VehicleID)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secret))
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// Register creates a staff account; used by seeding.
func (s *Service) Register(ctx context.Context, username, password string, role Role, vehicleID *types.ID) (*User, error) {
	if username == "" || password == "" {
		return nil, ErrBadRequest
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:           newID(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		VehicleID:    vehicleID,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
