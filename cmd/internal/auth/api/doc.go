// Package authapi exposes the HTTP surface of the auth subsystem:
// registration, login, refresh rotation, logout, session listing and
// revocation, plus the request gate middleware used by protected routes.
package authapi
