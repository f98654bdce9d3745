package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by unit tests and local tooling.
// A single mutex stands in for the database's per-statement atomicity, so
// RotateCAS keeps the exactly-one-winner guarantee.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[string]Record
	byToken map[string]string // userID + "\x00" + (current or previous) tokenID -> record ID
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]Record),
		byToken: make(map[string]string),
	}
}

func tokenKey(userID, tokenID string) string {
	return userID + "\x00" + tokenID
}

func (m *MemoryStore) Insert(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.byID[rec.ID] = rec
	m.byToken[tokenKey(rec.UserID, rec.CurrentTokenID)] = rec.ID
	return nil
}

func (m *MemoryStore) FindByTokenID(ctx context.Context, userID, tokenID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byToken[tokenKey(userID, tokenID)]
	if !ok {
		return Record{}, ErrInvalidSession
	}
	return m.byID[id], nil
}

func (m *MemoryStore) RotateCAS(ctx context.Context, userID, oldTokenID string, rot Rotation) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byToken[tokenKey(userID, oldTokenID)]
	if !ok {
		return false, nil
	}
	rec := m.byID[id]
	if rec.CurrentTokenID != oldTokenID || rec.RevokedAt != nil {
		return false, nil
	}

	// The displaced jti stays resolvable as the previous credential so a
	// later replay of it hits the reuse path; the one before it is gone.
	if rec.PreviousTokenID != "" {
		delete(m.byToken, tokenKey(userID, rec.PreviousTokenID))
	}
	rec.PreviousTokenID = oldTokenID
	rec.CurrentTokenID = rot.NewTokenID
	rec.HashedSecret = rot.NewHashedSecret
	rec.IP = rot.IP
	rec.UserAgent = rot.UserAgent
	rec.LastUsedAt = rot.Now
	rec.ExpiresAt = rot.ExpiresAt
	m.byID[id] = rec
	m.byToken[tokenKey(userID, rot.NewTokenID)] = id
	return true, nil
}

func (m *MemoryStore) MarkReuse(ctx context.Context, userID, tokenID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byToken[tokenKey(userID, tokenID)]
	if !ok {
		return nil
	}
	rec := m.byID[id]
	if rec.ReuseDetectedAt == nil {
		t := now
		rec.ReuseDetectedAt = &t
	}
	if rec.RevokedAt == nil {
		t := now
		rec.RevokedAt = &t
	}
	m.byID[id] = rec
	return nil
}

func (m *MemoryStore) RevokeAllForUser(ctx context.Context, userID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, rec := range m.byID {
		if rec.UserID == userID && rec.RevokedAt == nil {
			t := now
			rec.RevokedAt = &t
			m.byID[id] = rec
		}
	}
	return nil
}

func (m *MemoryStore) RevokeForDevice(ctx context.Context, userID, deviceID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, rec := range m.byID {
		if rec.UserID == userID && rec.DeviceID == deviceID && rec.RevokedAt == nil {
			t := now
			rec.RevokedAt = &t
			m.byID[id] = rec
		}
	}
	return nil
}

func (m *MemoryStore) RevokeByTokenID(ctx context.Context, userID, tokenID string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byToken[tokenKey(userID, tokenID)]
	if !ok {
		return ErrInvalidSession
	}
	rec := m.byID[id]
	if rec.CurrentTokenID != tokenID || rec.RevokedAt != nil {
		return ErrInvalidSession
	}
	t := now
	rec.RevokedAt = &t
	m.byID[id] = rec
	return nil
}

func (m *MemoryStore) ListByUser(ctx context.Context, userID string, limit int, cursor string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var recs []Record
	for _, rec := range m.byID {
		if rec.UserID == userID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID > recs[j].ID
	})

	if cursor != "" {
		ts, id, err := decodeCursor(cursor)
		if err != nil {
			return Page{}, err
		}
		i := 0
		for i < len(recs) {
			r := recs[i]
			if r.CreatedAt.Before(ts) || (r.CreatedAt.Equal(ts) && r.ID < id) {
				break
			}
			i++
		}
		recs = recs[i:]
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
