// Package ids generates the identifiers shared by the stores.
package ids

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewULID returns a 26-character ULID stamped with now; a zero now falls
// back to the wall clock. ULIDs sort lexicographically by creation time,
// which the keyset pagination over (created_at, id) relies on.
func NewULID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
