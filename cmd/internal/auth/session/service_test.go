package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"ecom/cmd/internal/auth/credential"
	"ecom/cmd/security/password"
)

func fastPasswordConfig() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func testSigner(t *testing.T) *credential.Signer {
	t.Helper()

	cfg := credential.DefaultConfig()
	cfg.FallbackSecret = "unit-test-secret"
	s, err := credential.NewSigner(cfg)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	return s
}

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()

	store := NewMemoryStore()
	roles := func(ctx context.Context, userID string) (string, []string, error) {
		return "user", nil, nil
	}
	svc, err := NewService(store, testSigner(t), fastPasswordConfig(), roles, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func TestLogin_OpensLineage(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	issued, err := svc.Login(ctx, now, "user-1", "user", nil, Device{UserAgent: "firefox"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if issued.AccessToken == "" || issued.RefreshToken == "" {
		t.Fatalf("expected both credentials")
	}
	if issued.DeviceID != "web:firefox" {
		t.Fatalf("derived device mismatch: %q", issued.DeviceID)
	}

	rec, err := store.FindByTokenID(ctx, "user-1", issued.TokenID)
	if err != nil {
		t.Fatalf("FindByTokenID: %v", err)
	}
	if rec.HashedSecret == issued.RefreshToken {
		t.Fatalf("raw credential must never be stored")
	}
	if !rec.Active(now) {
		t.Fatalf("fresh lineage must be active")
	}
}

func TestLogin_ConcurrentSameDeviceCoexist(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a, err := svc.Login(ctx, now, "user-1", "user", nil, Device{DeviceID: "dev-1"})
	if err != nil {
		t.Fatalf("Login a: %v", err)
	}
	b, err := svc.Login(ctx, now.Add(time.Second), "user-1", "user", nil, Device{DeviceID: "dev-1"})
	if err != nil {
		t.Fatalf("Login b: %v", err)
	}

	if _, err := store.FindByTokenID(ctx, "user-1", a.TokenID); err != nil {
		t.Fatalf("lineage a lost: %v", err)
	}
	if _, err := store.FindByTokenID(ctx, "user-1", b.TokenID); err != nil {
		t.Fatalf("lineage b lost: %v", err)
	}
}

func TestRefresh_RotatesInPlace(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	issued, err := svc.Login(ctx, now, "user-1", "user", nil, Device{DeviceID: "dev-1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	later := now.Add(time.Minute)
	rotated, err := svc.Refresh(ctx, later, issued.RefreshToken, Device{DeviceID: "dev-1", IP: "203.0.113.9"})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.TokenID == issued.TokenID {
		t.Fatalf("token id must change on rotation")
	}
	if rotated.DeviceID != "dev-1" {
		t.Fatalf("lineage device must be stable, got %q", rotated.DeviceID)
	}

	// Same lineage record, new credential fields. The old jti still
	// resolves, but only as the rotated-away predecessor.
	rec, err := store.FindByTokenID(ctx, "user-1", issued.TokenID)
	if err != nil {
		t.Fatalf("FindByTokenID via old jti: %v", err)
	}
	if rec.CurrentTokenID != rotated.TokenID || rec.PreviousTokenID != issued.TokenID {
		t.Fatalf("rotation must displace the old jti, got %+v", rec)
	}
	rec, err = store.FindByTokenID(ctx, "user-1", rotated.TokenID)
	if err != nil {
		t.Fatalf("FindByTokenID: %v", err)
	}
	if !rec.LastUsedAt.Equal(later) {
		t.Fatalf("last_used_at must advance")
	}
	if rec.IP != "203.0.113.9" {
		t.Fatalf("rotation must refresh client context")
	}
}

func TestRefresh_GarbageCredential(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := svc.Refresh(ctx, now, "not-a-token", Device{}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if _, err := svc.Refresh(ctx, now, "", Device{}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
}

func TestRefresh_ForeignButValidShapeCredential(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Signed by this deployment but never persisted (e.g. a restarted
	// in-memory store). Unknown lineage is not reuse.
	other := testSigner(t)
	raw, _, _, err := other.IssueRefresh("ghost", "dev-x", now)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	if _, err := svc.Refresh(ctx, now, raw, Device{}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
}

func TestRefresh_ReuseOfRotatedCredential(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	issued, err := svc.Login(ctx, now, "user-1", "user", nil, Device{DeviceID: "dev-1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	rotated, err := svc.Refresh(ctx, now.Add(time.Minute), issued.RefreshToken, Device{})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// The pre-rotation credential comes back: theft signal.
	_, err = svc.Refresh(ctx, now.Add(2*time.Minute), issued.RefreshToken, Device{})
	if !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("expected ErrTokenReuseDetected, got %v", err)
	}

	// The lineage is frozen: even the legitimate current credential dies.
	rec, err := store.FindByTokenID(ctx, "user-1", rotated.TokenID)
	if err != nil {
		t.Fatalf("FindByTokenID: %v", err)
	}
	if rec.RevokedAt == nil || rec.ReuseDetectedAt == nil {
		t.Fatalf("lineage must be frozen after reuse: %+v", rec)
	}
	_, err = svc.Refresh(ctx, now.Add(3*time.Minute), rotated.RefreshToken, Device{})
	if !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("expected ErrTokenReuseDetected for frozen lineage, got %v", err)
	}
}

func TestRefresh_ReuseIsIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	issued, err := svc.Login(ctx, now, "user-1", "user", nil, Device{DeviceID: "dev-1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := svc.Refresh(ctx, now.Add(time.Minute), issued.RefreshToken, Device{}); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	first := now.Add(2 * time.Minute)
	if _, err := svc.Refresh(ctx, first, issued.RefreshToken, Device{}); !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("expected reuse, got %v", err)
	}
	if _, err := svc.Refresh(ctx, now.Add(3*time.Minute), issued.RefreshToken, Device{}); !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("expected reuse, got %v", err)
	}

	// reuse_detected_at keeps the first observation.
	page, err := store.ListByUser(ctx, "user-1", 10, "")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected one lineage, got %d", len(page.Items))
	}
	if page.Items[0].RevokedAt == nil || !page.Items[0].RevokedAt.Equal(first) {
		t.Fatalf("revoked_at must be write-once, got %v", page.Items[0].RevokedAt)
	}
}

func TestRefresh_ConcurrentExactlyOneWins(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	issued, err := svc.Login(ctx, now, "user-1", "user", nil, Device{DeviceID: "dev-1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Refresh(ctx, now.Add(time.Minute), issued.RefreshToken, Device{})
		}(i)
	}
	wg.Wait()

	// The loser's error depends on where its lookup lands relative to the
	// winner's swap: before it, the CAS guard fails cleanly; after it, the
	// presented credential is one the lineage already rotated past and is
	// treated as a replay.
	var wins, losses int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrInvalidSession), errors.Is(err, ErrTokenReuseDetected):
			losses++
		default:
			t.Fatalf("unexpected loser error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("expected exactly one winner, got wins=%d losses=%d", wins, losses)
	}
}

func TestLogout_Scopes(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	a, err := svc.Login(ctx, now, "user-1", "user", nil, Device{DeviceID: "dev-1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	b, err := svc.Login(ctx, now, "user-1", "user", nil, Device{DeviceID: "dev-2"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	// Device scope only touches dev-1.
	if err := svc.Logout(ctx, now.Add(time.Minute), "user-1", "dev-1", false); err != nil {
		t.Fatalf("Logout device: %v", err)
	}
	if _, err := svc.Refresh(ctx, now.Add(2*time.Minute), a.RefreshToken, Device{}); !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("revoked lineage must reject refresh, got %v", err)
	}
	rotated, err := svc.Refresh(ctx, now.Add(2*time.Minute), b.RefreshToken, Device{})
	if err != nil {
		t.Fatalf("dev-2 must survive device logout: %v", err)
	}

	// Neither scope is a no-op.
	if err := svc.Logout(ctx, now.Add(3*time.Minute), "user-1", "", false); err != nil {
		t.Fatalf("Logout no-op: %v", err)
	}
	if _, err := store.FindByTokenID(ctx, "user-1", rotated.TokenID); err != nil {
		t.Fatalf("no-op logout must not touch lineages: %v", err)
	}

	// All scope freezes everything.
	if err := svc.Logout(ctx, now.Add(4*time.Minute), "user-1", "", true); err != nil {
		t.Fatalf("Logout all: %v", err)
	}
	if _, err := svc.Refresh(ctx, now.Add(5*time.Minute), rotated.RefreshToken, Device{}); !errors.Is(err, ErrTokenReuseDetected) {
		t.Fatalf("expected revoked lineage, got %v", err)
	}
}

func TestRevokeByTokenID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	issued, err := svc.Login(ctx, now, "user-1", "user", nil, Device{DeviceID: "dev-1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.RevokeByTokenID(ctx, now.Add(time.Minute), "user-1", issued.TokenID); err != nil {
		t.Fatalf("RevokeByTokenID: %v", err)
	}
	// Second revoke of the same lineage reports invalid.
	if err := svc.RevokeByTokenID(ctx, now.Add(2*time.Minute), "user-1", issued.TokenID); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	// Another user cannot revoke it.
	if err := svc.RevokeByTokenID(ctx, now.Add(2*time.Minute), "user-2", issued.TokenID); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for foreign user, got %v", err)
	}
}

func TestListSessions_Paging(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		if _, err := svc.Login(ctx, base.Add(time.Duration(i)*time.Second), "user-1", "user", nil, Device{DeviceID: "dev-1"}); err != nil {
			t.Fatalf("Login %d: %v", i, err)
		}
	}

	page1, err := svc.ListSessions(ctx, "user-1", 2, "")
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(page1.Items) != 2 || page1.NextCursor == "" {
		t.Fatalf("expected full first page with cursor, got %d items", len(page1.Items))
	}
	if !page1.Items[0].CreatedAt.After(page1.Items[1].CreatedAt) {
		t.Fatalf("listing must be newest-first")
	}

	page2, err := svc.ListSessions(ctx, "user-1", 2, page1.NextCursor)
	if err != nil {
		t.Fatalf("ListSessions page 2: %v", err)
	}
	page3, err := svc.ListSessions(ctx, "user-1", 2, page2.NextCursor)
	if err != nil {
		t.Fatalf("ListSessions page 3: %v", err)
	}
	if len(page2.Items)+len(page3.Items) != 3 {
		t.Fatalf("expected 3 remaining items, got %d+%d", len(page2.Items), len(page3.Items))
	}
	if page3.NextCursor != "" {
		t.Fatalf("last page must have empty cursor")
	}

	seen := map[string]bool{}
	for _, it := range append(append(page1.Items, page2.Items...), page3.Items...) {
		if seen[it.ID] {
			t.Fatalf("duplicate item %s across pages", it.ID)
		}
		seen[it.ID] = true
	}
}

func TestListSessions_BadCursor(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.ListSessions(context.Background(), "user-1", 10, "!!not-base64!!"); err == nil {
		t.Fatalf("expected error for malformed cursor")
	}
}
