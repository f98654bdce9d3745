package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ecom/cmd/identity/ids"
	"ecom/cmd/internal/auth/credential"
	"ecom/cmd/internal/metrics"
	"ecom/cmd/security/password"
)

// Device describes the client context of a login or refresh request.
type Device struct {
	// DeviceID is the client-supplied identifier; empty means derive one
	// from the user agent.
	DeviceID  string
	IP        string
	UserAgent string
}

// Issued is the result of a login or a successful rotation.
type Issued struct {
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
	TokenID      string
	DeviceID     string
}

// RoleResolver returns the authoritative role and scopes for a user at
// refresh time. Roles are never trusted from the old credential.
type RoleResolver func(ctx context.Context, userID string) (role string, scopes []string, err error)

// Service orchestrates session lifecycles: login, refresh rotation with
// reuse detection, and revocation. It holds no cross-request state; the
// store's compare-and-swap is the only rotation serialization.
type Service struct {
	store  Store
	signer *credential.Signer
	pwcfg  password.Config
	roles  RoleResolver
	log    *slog.Logger
}

// NewService constructs a Service.
func NewService(store Store, signer *credential.Signer, pwcfg password.Config, roles RoleResolver, log *slog.Logger) (*Service, error) {
	if store == nil || signer == nil || roles == nil {
		return nil, ErrConfig
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, signer: signer, pwcfg: pwcfg, roles: roles, log: log}, nil
}

// Login issues a fresh credential pair and opens a new lineage.
//
// Concurrent logins for the same (user, device) coexist as distinct
// lineages; nothing deduplicates them.
func (s *Service) Login(ctx context.Context, now time.Time, userID, role string, scopes []string, dev Device) (Issued, error) {
	deviceID := DeriveDeviceID(dev.DeviceID, dev.UserAgent)

	accessToken, accessExp, err := s.signer.IssueAccess(userID, role, scopes, now)
	if err != nil {
		metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		return Issued{}, err
	}

	refreshToken, tokenID, refreshExp, err := s.signer.IssueRefresh(userID, deviceID, now)
	if err != nil {
		metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		return Issued{}, err
	}

	// The raw refresh credential is hashed with argon2id; theft of the
	// sessions table alone does not yield usable credentials.
	hashed, err := s.pwcfg.HashSecret(refreshToken)
	if err != nil {
		metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		return Issued{}, err
	}

	recID, err := ids.NewULID(now)
	if err != nil {
		metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		return Issued{}, err
	}

	rec := Record{
		ID:             recID,
		UserID:         userID,
		DeviceID:       deviceID,
		CurrentTokenID: tokenID,
		HashedSecret:   hashed,
		IP:             dev.IP,
		UserAgent:      dev.UserAgent,
		CreatedAt:      now,
		LastUsedAt:     now,
		ExpiresAt:      refreshExp,
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		metrics.Logins.WithLabelValues(metrics.ResultError).Inc()
		return Issued{}, err
	}

	metrics.Logins.WithLabelValues(metrics.ResultOK).Inc()
	s.log.InfoContext(ctx, "session opened",
		slog.String("user_id", userID),
		slog.String("device_id", deviceID),
	)

	return Issued{
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: refreshToken,
		RefreshExp:   refreshExp,
		TokenID:      tokenID,
		DeviceID:     deviceID,
	}, nil
}

// Refresh rotates a refresh credential.
//
// Failure taxonomy:
//   - structurally invalid, expired, or unknown credentials, and race
//     losers that fail the swap guard, get ErrInvalidSession with no
//     further side effects;
//   - a credential for a known lineage that is revoked, already rotated
//     past, or whose secret does not match the stored hash is proven
//     reuse: the lineage is frozen (MarkReuse) before
//     ErrTokenReuseDetected is returned.
func (s *Service) Refresh(ctx context.Context, now time.Time, rawRefresh string, dev Device) (Issued, error) {
	// Signature and expiry are checked before any store access.
	claims, err := s.signer.VerifyRefresh(rawRefresh, now)
	if err != nil {
		metrics.Rotations.WithLabelValues(metrics.ResultInvalid).Inc()
		return Issued{}, ErrInvalidSession
	}

	rec, err := s.store.FindByTokenID(ctx, claims.Subject, claims.ID)
	if err != nil {
		if errors.Is(err, ErrInvalidSession) {
			metrics.Rotations.WithLabelValues(metrics.ResultInvalid).Inc()
			return Issued{}, ErrInvalidSession
		}
		metrics.Rotations.WithLabelValues(metrics.ResultError).Inc()
		return Issued{}, err
	}

	if rec.RevokedAt != nil || rec.CurrentTokenID != claims.ID {
		// Either the lineage is already frozen, or the presented jti is
		// the one the lineage rotated past: proven reuse.
		s.flagReuse(ctx, rec, now)
		metrics.Rotations.WithLabelValues(metrics.ResultReuseDetected).Inc()
		return Issued{}, ErrTokenReuseDetected
	}

	ok, verr := s.pwcfg.Verify(rec.HashedSecret, rawRefresh)
	if verr != nil || !ok {
		// Valid signature and live jti but wrong secret: forged or
		// spliced credential. Freeze the lineage.
		s.flagReuse(ctx, rec, now)
		metrics.Rotations.WithLabelValues(metrics.ResultReuseDetected).Inc()
		return Issued{}, ErrTokenReuseDetected
	}

	role, scopes, err := s.roles(ctx, rec.UserID)
	if err != nil {
		metrics.Rotations.WithLabelValues(metrics.ResultError).Inc()
		return Issued{}, err
	}

	accessToken, accessExp, err := s.signer.IssueAccess(rec.UserID, role, scopes, now)
	if err != nil {
		metrics.Rotations.WithLabelValues(metrics.ResultError).Inc()
		return Issued{}, err
	}
	refreshToken, newTokenID, refreshExp, err := s.signer.IssueRefresh(rec.UserID, rec.DeviceID, now)
	if err != nil {
		metrics.Rotations.WithLabelValues(metrics.ResultError).Inc()
		return Issued{}, err
	}
	hashed, err := s.pwcfg.HashSecret(refreshToken)
	if err != nil {
		metrics.Rotations.WithLabelValues(metrics.ResultError).Inc()
		return Issued{}, err
	}

	swapped, err := s.store.RotateCAS(ctx, rec.UserID, rec.CurrentTokenID, Rotation{
		NewTokenID:      newTokenID,
		NewHashedSecret: hashed,
		IP:              dev.IP,
		UserAgent:       dev.UserAgent,
		Now:             now,
		ExpiresAt:       refreshExp,
	})
	if err != nil {
		metrics.Rotations.WithLabelValues(metrics.ResultError).Inc()
		return Issued{}, err
	}
	if !swapped {
		// A concurrent refresh won the swap; the loser's credential is
		// simply gone. The winner holds the lineage, so this is not
		// flagged as reuse.
		metrics.Rotations.WithLabelValues(metrics.ResultCASConflict).Inc()
		return Issued{}, ErrInvalidSession
	}

	metrics.Rotations.WithLabelValues(metrics.ResultOK).Inc()
	return Issued{
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: refreshToken,
		RefreshExp:   refreshExp,
		TokenID:      newTokenID,
		DeviceID:     rec.DeviceID,
	}, nil
}

// flagReuse durably freezes a lineage before the reuse error is returned.
// A failing write is logged and must not change the caller's error kind.
func (s *Service) flagReuse(ctx context.Context, rec Record, now time.Time) {
	if rec.ReuseDetectedAt != nil {
		return
	}
	if err := s.store.MarkReuse(ctx, rec.UserID, rec.CurrentTokenID, now); err != nil {
		s.log.ErrorContext(ctx, "failed to persist reuse flag",
			slog.String("user_id", rec.UserID),
			slog.String("device_id", rec.DeviceID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.log.WarnContext(ctx, "refresh token reuse detected",
		slog.String("user_id", rec.UserID),
		slog.String("device_id", rec.DeviceID),
	)
}

// Logout revokes lineages. all revokes everything the user owns; otherwise
// a non-empty device revokes that device's lineages; with neither, nothing
// is revoked.
func (s *Service) Logout(ctx context.Context, now time.Time, userID, deviceID string, all bool) error {
	switch {
	case all:
		if err := s.store.RevokeAllForUser(ctx, userID, now); err != nil {
			return err
		}
		metrics.Revocations.WithLabelValues(metrics.ScopeAll).Inc()
	case strings.TrimSpace(deviceID) != "":
		if err := s.store.RevokeForDevice(ctx, userID, deviceID, now); err != nil {
			return err
		}
		metrics.Revocations.WithLabelValues(metrics.ScopeDevice).Inc()
	}
	return nil
}

// RevokeByTokenID revokes the single lineage owning tokenID.
func (s *Service) RevokeByTokenID(ctx context.Context, now time.Time, userID, tokenID string) error {
	if err := s.store.RevokeByTokenID(ctx, userID, tokenID, now); err != nil {
		return err
	}
	metrics.Revocations.WithLabelValues(metrics.ScopeToken).Inc()
	return nil
}

// ListSessions pages the user's lineages newest-first.
func (s *Service) ListSessions(ctx context.Context, userID string, limit int, cursor string) (Page, error) {
	return s.store.ListByUser(ctx, userID, limit, cursor)
}
