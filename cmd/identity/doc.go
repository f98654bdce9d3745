// Package identity implements the user account foundation of the shop
// backend: user records, role assignment, credential verification and the
// persistence boundary used by the HTTP auth layer.
//
// This package is intentionally dependency-light and security-first.
package identity
