// README: Keyed global dispatch policy settings.
package settings

import "time"

// Known keys. Values are stored as JSON so new policy knobs do not need
// schema changes.
const (
	KeyAutoAccept      = "autoAccept"      // bool: new rides start confirmed
	KeyStrictLifecycle = "strictLifecycle" // bool: completion requires en_route
)

type Setting struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	Version   int       `json:"version"`
	UpdatedBy string    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}
