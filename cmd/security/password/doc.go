// Package password provides Argon2id hashing and verification for the
// e-commerce backend.
//
// It protects two kinds of material:
//   - user passwords at registration/login
//   - raw refresh credentials, whose Argon2id digest becomes the session
//     record's hashed secret
//
// Hashes use a PHC-style encoded string format. Encoded hashes are treated
// as untrusted input during Verify: parsing is strict, and verification
// refuses hashes whose parameters exceed reasonable bounds (anti-DoS).
package password
