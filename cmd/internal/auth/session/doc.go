// Package session implements refresh-credential session lineages: one
// mutable record per login that is rotated in place on every refresh,
// flagged on credential reuse, and frozen by revocation.
//
// Rotation safety relies on a storage-level compare-and-swap keyed on the
// current token id. No in-process lock serializes rotation; multiple server
// instances may race and exactly one wins.
package session
