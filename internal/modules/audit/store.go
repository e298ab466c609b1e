// README: Audit store backed by PostgreSQL; append and list only.
package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, e *Entry) error {
	var changes []byte
	if e.Changes != nil {
		b, err := json.Marshal(e.Changes)
		if err != nil {
			return err
		}
		changes = b
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO audit_log (action, actor, target_id, target_kind, changes, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at`,
		e.Action, e.Actor, string(e.TargetID), string(e.TargetKind), changes, e.Metadata,
	)
	return row.Scan(&e.ID, &e.CreatedAt)
}

// List returns entries newest first.
func (s *Store) List(ctx context.Context, limit, offset int) ([]*Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, action, actor, target_id, target_kind, changes, metadata, created_at
		FROM audit_log ORDER BY id DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		var changes []byte
		if err := rows.Scan(&e.ID, &e.Action, &e.Actor, &e.TargetID, &e.TargetKind, &changes, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &e.Changes); err != nil {
				return nil, err
			}
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
