package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - RotateCAS is a single conditional UPDATE; the row guard
//   (current_token_id + revoked_at IS NULL) is the only serialization.
// - Identifiers are quoted via pgx.Identifier to keep dynamic schema safe.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema used by the session store (default "ecom").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("session: empty schema")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "ecom"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "sessions"}.Sanitize()
}

const recordColumns = `id, user_id, device_id, current_token_id,
       COALESCE(previous_token_id, ''), hashed_secret,
       COALESCE(ip::text, ''), COALESCE(user_agent, ''),
       created_at, last_used_at, expires_at, revoked_at, reuse_detected_at`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.DeviceID,
		&rec.CurrentTokenID,
		&rec.PreviousTokenID,
		&rec.HashedSecret,
		&rec.IP,
		&rec.UserAgent,
		&rec.CreatedAt,
		&rec.LastUsedAt,
		&rec.ExpiresAt,
		&rec.RevokedAt,
		&rec.ReuseDetectedAt,
	)
	return rec, err
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// Insert persists a new lineage row.
func (s *PostgresStore) Insert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (
		     id, user_id, device_id, current_token_id, hashed_secret,
		     ip, user_agent, created_at, last_used_at, expires_at,
		     revoked_at, reuse_detected_at
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULL, NULL)`,
		rec.ID,
		rec.UserID,
		rec.DeviceID,
		rec.CurrentTokenID,
		rec.HashedSecret,
		nullIfEmpty(rec.IP),
		nullIfEmpty(rec.UserAgent),
		rec.CreatedAt,
		rec.LastUsedAt,
		rec.ExpiresAt,
	)
	return err
}

// FindByTokenID loads the lineage whose current or immediately previous
// credential is tokenID.
func (s *PostgresStore) FindByTokenID(ctx context.Context, userID, tokenID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+`
		   FROM `+s.table()+`
		  WHERE user_id = $1
		    AND (current_token_id = $2 OR previous_token_id = $2)`,
		userID, tokenID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrInvalidSession
		}
		return Record{}, err
	}
	return rec, nil
}

// RotateCAS swaps the credential fields in place, guarded on the previous
// token id. Exactly one concurrent caller can observe swapped=true.
func (s *PostgresStore) RotateCAS(ctx context.Context, userID, oldTokenID string, rot Rotation) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+`
		    SET previous_token_id = current_token_id,
		        current_token_id = $1,
		        hashed_secret = $2,
		        ip = $3,
		        user_agent = $4,
		        last_used_at = $5,
		        expires_at = $6
		  WHERE user_id = $7
		    AND current_token_id = $8
		    AND revoked_at IS NULL`,
		rot.NewTokenID,
		rot.NewHashedSecret,
		nullIfEmpty(rot.IP),
		nullIfEmpty(rot.UserAgent),
		rot.Now,
		rot.ExpiresAt,
		userID,
		oldTokenID,
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// MarkReuse freezes a lineage after a reuse event. Revocation timestamps are
// write-once; repeated calls keep the first observation.
func (s *PostgresStore) MarkReuse(ctx context.Context, userID, tokenID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+`
		    SET reuse_detected_at = COALESCE(reuse_detected_at, $1),
		        revoked_at = COALESCE(revoked_at, $1)
		  WHERE user_id = $2
		    AND (current_token_id = $3 OR previous_token_id = $3)`,
		now, userID, tokenID,
	)
	return err
}

// RevokeAllForUser revokes every live lineage of the user.
func (s *PostgresStore) RevokeAllForUser(ctx context.Context, userID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+`
		    SET revoked_at = $1
		  WHERE user_id = $2
		    AND revoked_at IS NULL`,
		now, userID,
	)
	return err
}

// RevokeForDevice revokes every live lineage of (user, device).
func (s *PostgresStore) RevokeForDevice(ctx context.Context, userID, deviceID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+`
		    SET revoked_at = $1
		  WHERE user_id = $2
		    AND device_id = $3
		    AND revoked_at IS NULL`,
		now, userID, deviceID,
	)
	return err
}

// RevokeByTokenID revokes the single lineage owning tokenID.
func (s *PostgresStore) RevokeByTokenID(ctx context.Context, userID, tokenID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ct, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+`
		    SET revoked_at = $1
		  WHERE user_id = $2
		    AND current_token_id = $3
		    AND revoked_at IS NULL`,
		now, userID, tokenID,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrInvalidSession
	}
	return nil
}

// ListByUser pages lineages newest-first over the (created_at, id) sort key.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int, cursor string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := `SELECT ` + recordColumns + `
	   FROM ` + s.table() + `
	  WHERE user_id = $1`
	args := []any{userID}

	if cursor != "" {
		ts, id, err := decodeCursor(cursor)
		if err != nil {
			return Page{}, err
		}
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, ts, id)
	}

	// Fetch one extra row to decide whether a next page exists.
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return Page{}, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}

	var page Page
	hasMore := len(recs) > limit
	if hasMore {
		recs = recs[:limit]
	}
	for _, rec := range recs {
		page.Items = append(page.Items, summarize(rec))
	}
	if hasMore && len(recs) > 0 {
		last := recs[len(recs)-1]
		page.NextCursor = encodeCursor(last.CreatedAt, last.ID)
	}
	return page, nil
}

func summarize(rec Record) Summary {
	return Summary{
		ID:             rec.ID,
		DeviceID:       rec.DeviceID,
		CurrentTokenID: rec.CurrentTokenID,
		IP:             rec.IP,
		UserAgent:      rec.UserAgent,
		CreatedAt:      rec.CreatedAt,
		LastUsedAt:     rec.LastUsedAt,
		ExpiresAt:      rec.ExpiresAt,
		RevokedAt:      rec.RevokedAt,
	}
}
