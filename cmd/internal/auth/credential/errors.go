package credential

import "errors"

var (
	// ErrInvalidCredential is returned for every structural, signature, or
	// expiry failure. Callers must not distinguish "expired" from "tampered"
	// at the HTTP boundary; a single error avoids an oracle.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrConfig is returned for invalid signer configuration.
	ErrConfig = errors.New("invalid credential config")
)
