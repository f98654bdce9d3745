// Package credential mints and checks the signed bearer credentials used by
// the auth subsystem.
//
// Access credentials are short-lived JWTs carrying subject, role, scopes and
// a unique token id. Refresh credentials are long-lived JWTs carrying subject
// and device id; their token id is persisted by the session layer, which also
// stores an Argon2id digest of the raw credential.
//
// Signing keys are asymmetric (RSA or EC, PEM-encoded) when configured. When
// key material is absent or unparsable the signer falls back to HS256 with a
// deployment secret; this is a degraded-security mode that the caller must
// surface as a warning, never a startup failure.
//
// The package is stateless: no I/O beyond randomness for token ids.
package credential
