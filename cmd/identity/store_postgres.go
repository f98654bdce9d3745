package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ecom/cmd/security/password"
)

// PostgresStore implements user persistence over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are safely quoted to avoid SQL injection via identifiers.
// - Errors are mapped to identity sentinel kinds where appropriate.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
	pwcfg  password.Config
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema used by the identity store (default "ecom").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentIsValid(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// WithPasswordConfig overrides the hashing configuration (tests use cheaper params).
func WithPasswordConfig(cfg password.Config) PostgresOption {
	return func(s *PostgresStore) error {
		s.pwcfg = cfg
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore with secure defaults.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "ecom",
		pwcfg:  password.DefaultConfig(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

// CreateUser creates a new user with a hashed credential.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (CreateUserResult, error) {
	const op = "identity.CreateUser"

	if s == nil || s.pool == nil {
		return CreateUserResult{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
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

	usernameNorm := NormalizeUsername(username)
	emailNorm := NormalizeEmail(email)

	pwHash, err := HashPassword(in.Password, s.pwcfg)
	if err != nil {
		return CreateUserResult{}, pgInvalid(op, err.Error())
	}

	userID, err := NewULID(now)
	if err != nil {
		return CreateUserResult{}, err
	}

	users := pgIdent(s.schema, "users")

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+users+` (
		     id, username, username_norm, email, email_norm, password_hash, role, created_at, updated_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		userID,
		username,
		usernameNorm,
		email,
		emailNorm,
		pwHash,
		role,
		now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return CreateUserResult{}, ConflictError{Op: op, Field: field}
		}
		return CreateUserResult{}, err
	}

	out := User{
		ID:        userID,
		Username:  username,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	return CreateUserResult{User: out}, nil
}

// GetUserByID loads a user by primary key.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	if s == nil || s.pool == nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, pgInvalid(op, "missing id")
	}

	users := pgIdent(s.schema, "users")

	var out User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, role, created_at, updated_at
		   FROM `+users+`
		  WHERE id = $1`,
		id,
	).Scan(&out.ID, &out.Username, &out.Email, &out.Role, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, NotFoundError{Op: op, Resource: "user"}
		}
		return User{}, err
	}
	return out, nil
}

// GetUserAuthByEmail loads a user plus its stored password hash.
// Lookup uses the normalized email so login is case-insensitive.
func (s *PostgresStore) GetUserAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	const op = "identity.GetUserAuthByEmail"

	if s == nil || s.pool == nil {
		return UserAuth{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil store"}
	}
	if err := ctx.Err(); err != nil {
		return UserAuth{}, err
	}
	emailNorm := NormalizeEmail(email)
	if emailNorm == "" {
		return UserAuth{}, pgInvalid(op, "missing email")
	}

	users := pgIdent(s.schema, "users")

	var out UserAuth
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, email, role, password_hash, created_at, updated_at
		   FROM `+users+`
		  WHERE email_norm = $1`,
		emailNorm,
	).Scan(
		&out.User.ID,
		&out.User.Username,
		&out.User.Email,
		&out.User.Role,
		&out.PasswordHash,
		&out.User.CreatedAt,
		&out.User.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserAuth{}, NotFoundError{Op: op, Resource: "user"}
		}
		return UserAuth{}, err
	}
	return out, nil
}

// ---- helpers ----

// pgInvalid standardizes invalid input errors.
func pgInvalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// pgIdentIsValid checks if a string is a safe Postgres identifier.
func pgIdentIsValid(s string) bool {
	return pgIdentRe.MatchString(s)
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	// Prefer stable schema constraint names. Fall back to heuristic substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))

	switch c {
	case "uq_users_username_norm":
		return "username", true
	case "uq_users_email_norm":
		return "email", true
	default:
		switch {
		case strings.Contains(c, "username"):
			return "username", true
		case strings.Contains(c, "email"):
			return "email", true
		default:
			return "unique", true
		}
	}
}
