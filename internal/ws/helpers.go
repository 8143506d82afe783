package ws

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// newConnID mints the transport-level connection id. These ids key hub and
// registry state and go into lifecycle events; they are never user-facing.
func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}
