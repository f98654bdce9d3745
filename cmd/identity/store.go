package identity

import (
	"context"
	"time"
)

// User is the canonical security principal of the shop backend.
// The password hash lives in UserAuth and is only surfaced for login checks.
type User struct {
	ID       string
	Username string
	Email    string
	Role     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserAuth carries a user together with its stored credential hash.
// IMPORTANT: never serialize PasswordHash into API responses or logs.
type UserAuth struct {
	User         User
	PasswordHash string
}

// CreateUserInput describes a user registration request.
// Username, Email and Password are all required; Role defaults to RoleUser.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	Role     string
	Now      time.Time
}

// CreateUserResult returns the created user.
type CreateUserResult struct {
	User User
}

// Store is the user persistence boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (CreateUserResult, error)

	// GetUserByID loads a user by primary key. The request gate uses this
	// to re-resolve the role on every authenticated request instead of
	// trusting the role baked into the access credential.
	GetUserByID(ctx context.Context, id string) (User, error)

	// GetUserAuthByEmail loads a user plus its password hash for login.
	// Returns ErrNotFound for unknown emails; callers must fold that into
	// an indistinguishable "invalid credentials" response.
	GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error)
}
