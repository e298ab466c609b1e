// README: Human-facing ticket code generation.
package ride

import "crypto/rand"

const ticketPrefix = "AT-"

// No 0/1/O/I: codes get read over the phone.
const ticketAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// NewTicketCode returns a short code like AT-7KQ2MX. Uniqueness is
// enforced by the storage layer; callers retry on collision.
func NewTicketCode() string {
	var b [6]byte
	_, _ = rand.Read(b[:])
	out := make([]byte, 0, len(ticketPrefix)+len(b))
	out = append(out, ticketPrefix...)
	for _, c := range b {
		out = append(out, ticketAlphabet[int(c)%len(ticketAlphabet)])
	}
	return string(out)
}
