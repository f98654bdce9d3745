package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"ecom/cmd/security/password"
)

// MemoryStore is an in-memory Store used by unit tests and local tooling.
// It applies the same normalization and uniqueness rules as PostgresStore.
type MemoryStore struct {
	mu     sync.Mutex
	pwcfg  password.Config
	byID   map[string]UserAuth
	emails map[string]string // email_norm -> user id
	names  map[string]string // username_norm -> user id
}

// NewMemoryStore constructs an empty MemoryStore hashing with cfg.
func NewMemoryStore(cfg password.Config) *MemoryStore {
	return &MemoryStore{
		pwcfg:  cfg,
		byID:   make(map[string]UserAuth),
		emails: make(map[string]string),
		names:  make(map[string]string),
	}
}

func (m *MemoryStore) CreateUser(ctx context.Context, in CreateUserInput) (CreateUserResult, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return CreateUserResult{}, err
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" {
		return CreateUserResult{}, pgInvalid(op, "username is required")
	}
	if email == "" {
		return CreateUserResult{}, pgInvalid(op, "email is required")
	}
	if strings.TrimSpace(in.Password) == "" {
		return CreateUserResult{}, pgInvalid(op, "password is required")
	}

	role := NormalizeRole(in.Role)
	if !ValidRole(role) {
		return CreateUserResult{}, pgInvalid(op, "unknown role")
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	hash, err := HashPassword(in.Password, m.pwcfg)
	if err != nil {
		return CreateUserResult{}, pgInvalid(op, err.Error())
	}

	id, err := NewULID(now)
	if err != nil {
		return CreateUserResult{}, err
	}

	emailNorm := NormalizeEmail(email)
	nameNorm := NormalizeUsername(username)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.emails[emailNorm]; dup {
		return CreateUserResult{}, ConflictError{Op: op, Field: "email"}
	}
	if _, dup := m.names[nameNorm]; dup {
		return CreateUserResult{}, ConflictError{Op: op, Field: "username"}
	}

	u := User{
		ID:        id,
		Username:  username,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.byID[id] = UserAuth{User: u, PasswordHash: hash}
	m.emails[emailNorm] = id
	m.names[nameNorm] = id

	return CreateUserResult{User: u}, nil
}

func (m *MemoryStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, pgInvalid(op, "missing id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ua, ok := m.byID[id]
	if !ok {
		return User{}, NotFoundError{Op: op, Resource: "user"}
	}
	return ua.User, nil
}

func (m *MemoryStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"

	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}
	emailNorm := NormalizeEmail(email)
	if emailNorm == "" {
		return UserAuth{}, pgInvalid(op, "missing email")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.emails[emailNorm]
	if !ok {
		return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
	}
	return m.byID[id], nil
}

// SetRole swaps a user's role in place. Test helper for gate role checks.
func (m *MemoryStore) SetRole(id, role string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ua, ok := m.byID[id]; ok {
		ua.User.Role = role
		m.byID[id] = ua
	}
}
