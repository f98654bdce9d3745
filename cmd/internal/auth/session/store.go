package session

import (
	"context"
	"time"
)

// Record mirrors one session lineage row.
//
// A lineage is created at login and mutated in place on every rotation:
// CurrentTokenID and HashedSecret always describe the only refresh
// credential that will be accepted next. Records are never deleted by the
// auth core; revocation and reuse detection freeze them for audit.
type Record struct {
	ID             string
	UserID         string
	DeviceID       string
	CurrentTokenID string

	// PreviousTokenID is the jti the lineage rotated away from, kept so a
	// replay of the rotated credential still resolves to its lineage and
	// can be flagged as reuse. Empty until the first rotation.
	PreviousTokenID string

	// HashedSecret is the argon2id PHC hash of the raw refresh credential.
	// The plain credential is never stored.
	HashedSecret string

	IP        string
	UserAgent string

	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time

	RevokedAt       *time.Time
	ReuseDetectedAt *time.Time
}

// Active reports whether the lineage still accepts its current credential.
func (r Record) Active(now time.Time) bool {
	return r.RevokedAt == nil && r.ExpiresAt.After(now)
}

// Summary is the listing projection of a Record. It deliberately omits
// HashedSecret and CurrentTokenID's secret material counterpart.
type Summary struct {
	ID             string     `json:"id"`
	DeviceID       string     `json:"deviceId"`
	CurrentTokenID string     `json:"jti"`
	IP             string     `json:"ip,omitempty"`
	UserAgent      string     `json:"userAgent,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastUsedAt     time.Time  `json:"lastUsedAt"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	RevokedAt      *time.Time `json:"revokedAt,omitempty"`
}

// Rotation carries the in-place overwrite applied when a refresh wins the
// compare-and-swap. ExpiresAt advances to the new credential's expiry so
// the record's advisory window matches the credential that rules it.
type Rotation struct {
	NewTokenID      string
	NewHashedSecret string
	IP              string
	UserAgent       string
	Now             time.Time
	ExpiresAt       time.Time
}

// Page is one slice of a newest-first session listing.
type Page struct {
	Items      []Summary
	NextCursor string
}

// Store abstracts persistence for session lineages.
//
// RotateCAS is the single operation requiring atomicity; implementations
// must express it as one conditional write keyed on the previous token id,
// never as read-modify-write across calls.
type Store interface {
	// Insert persists a new lineage. Multiple live lineages per
	// (user, device) are allowed; no uniqueness beyond the token id.
	Insert(ctx context.Context, rec Record) error

	// FindByTokenID loads the lineage whose current or immediately
	// previous credential is jti. The previous match is what lets the
	// service flag a replayed rotated-away credential as reuse.
	// Returns ErrInvalidSession when no such lineage exists.
	FindByTokenID(ctx context.Context, userID, tokenID string) (Record, error)

	// RotateCAS atomically swaps the lineage's credential fields, keyed on
	// current_token_id = oldTokenID and revoked_at unset; the displaced
	// jti becomes PreviousTokenID. Returns swapped=false (and no error)
	// when the guard did not match.
	RotateCAS(ctx context.Context, userID, oldTokenID string, rot Rotation) (swapped bool, err error)

	// MarkReuse freezes a lineage after a reuse event: sets
	// reuse_detected_at and revoked_at if not already set. Idempotent.
	MarkReuse(ctx context.Context, userID, tokenID string, now time.Time) error

	// RevokeAllForUser revokes every live lineage of the user. Idempotent.
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) error

	// RevokeForDevice revokes every live lineage of (user, device). Idempotent.
	RevokeForDevice(ctx context.Context, userID, deviceID string, now time.Time) error

	// RevokeByTokenID revokes the single lineage owning jti.
	// Returns ErrInvalidSession when no live lineage matches.
	RevokeByTokenID(ctx context.Context, userID, tokenID string, now time.Time) error

	// ListByUser pages the user's lineages newest-first. cursor is the
	// opaque value from a previous Page; empty starts from the top.
	ListByUser(ctx context.Context, userID string, limit int, cursor string) (Page, error)
}
