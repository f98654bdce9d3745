package session

import "errors"

var (
	// ErrInvalidSession is returned for every refresh failure that is not
	// proven reuse: bad signature, expired credential, unknown lineage,
	// lost rotation race. Callers must not distinguish these cases.
	ErrInvalidSession = errors.New("invalid session")

	// ErrTokenReuseDetected is returned when a rotated-away or mismatched
	// refresh credential is presented for a known lineage. The lineage is
	// revoked before this error is returned.
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")

	// ErrBadCursor is returned for malformed pagination cursors.
	ErrBadCursor = errors.New("bad cursor")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
