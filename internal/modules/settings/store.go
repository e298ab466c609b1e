// README: Settings store backed by PostgreSQL; versioned rows, no in-memory cache.
package settings

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("setting not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, key string) (*Setting, error) {
	row := s.db.QueryRow(ctx, `
		SELECT key, value, version, updated_by, updated_at
		FROM settings WHERE key = $1`, key,
	)
	var st Setting
	var raw []byte
	err := row.Scan(&st.Key, &raw, &st.Version, &st.UpdatedBy, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &st.Value); err != nil {
		return nil, err
	}
	return &st, nil
}

// Set upserts a key, bumping the version on every write.
func (s *Store) Set(ctx context.Context, key string, value any, updatedBy string) (*Setting, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO settings (key, value, version, updated_by, updated_at)
		VALUES ($1, $2, 1, $3, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    version = settings.version + 1,
		    updated_by = EXCLUDED.updated_by,
		    updated_at = NOW()
		RETURNING key, value, version, updated_by, updated_at`,
		key, raw, updatedBy,
	)
	var st Setting
	var out []byte
	if err := row.Scan(&st.Key, &out, &st.Version, &st.UpdatedBy, &st.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(out, &st.Value); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetBool reads a boolean policy key, falling back to def when the key
// is missing or not a bool.
func (s *Store) GetBool(ctx context.Context, key string, def bool) (bool, error) {
	st, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	if b, ok := st.Value.(bool); ok {
		return b, nil
	}
	return def, nil
}
