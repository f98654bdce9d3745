package identity

import "ecom/cmd/security/password"

// Password hashing hardening:
//
// identity delegates all password hashing to cmd/security/password as the
// single source of truth (argon2id, PHC encoded). Stores must never see a
// plain password beyond the call into these helpers.

// HashPassword validates a password against the policy in cfg and returns
// its PHC-encoded argon2id hash.
func HashPassword(plain string, cfg password.Config) (string, error) {
	return cfg.Hash(plain)
}

// VerifyPassword reports whether plain matches the stored PHC hash.
// Errors indicate a malformed or hostile hash, not a mismatch.
func VerifyPassword(encodedHash, plain string, cfg password.Config) (bool, error) {
	return cfg.Verify(encodedHash, plain)
}
