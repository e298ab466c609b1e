// README: Immutable audit record written for every mutating action.
package audit

import (
	"time"

	"transit/internal/types"
)

type TargetKind string

const (
	TargetRide    TargetKind = "ride"
	TargetVehicle TargetKind = "vehicle"
)

// Entry is append-only. There is deliberately no update or delete path
// for entries anywhere in this package; the storage layer additionally
// rejects UPDATE/DELETE on the table itself.
type Entry struct {
	ID         int64          `json:"id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	TargetID   types.ID       `json:"target_id"`
	TargetKind TargetKind     `json:"target_kind"`
	Changes    map[string]any `json:"changes,omitempty"`
	Metadata   string         `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Change builds a before/after payload for a single mutated field.
func Change(field string, before, after any) map[string]any {
	return map[string]any{
		field: map[string]any{"before": before, "after": after},
	}
}
