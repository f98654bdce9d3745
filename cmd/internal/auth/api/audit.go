package authapi

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Auditor appends security events to the audit_log table. A nil pool makes
// every write a no-op, which unit tests rely on. Audit failures are logged,
// never surfaced to clients.
type auditor struct {
	pool   *pgxpool.Pool
	schema string
}

func (h *Handler) auditLoginFailed(ctx context.Context, userID, ip, ua, email, reason string) {
	h.insertAudit(ctx, "auth.login.failed", userID, "", ip, ua, map[string]any{
		"email":  email,
		"reason": reason,
	})
}

func (h *Handler) auditLoginSuccess(ctx context.Context, userID, tokenID, ip, ua string) {
	h.insertAudit(ctx, "auth.login.success", userID, tokenID, ip, ua, nil)
}

func (h *Handler) auditRegister(ctx context.Context, userID, ip, ua string) {
	h.insertAudit(ctx, "auth.register", userID, "", ip, ua, nil)
}

func (h *Handler) auditRefreshSuccess(ctx context.Context, userID, tokenID, ip, ua string) {
	h.insertAudit(ctx, "auth.refresh.success", userID, tokenID, ip, ua, nil)
}

// auditRefreshReuse is written on every reuse observation, even though the
// lineage freeze itself is idempotent.
func (h *Handler) auditRefreshReuse(ctx context.Context, ip, ua string) {
	h.insertAudit(ctx, "auth.refresh.reuse_detected", "", "", ip, ua, nil)
}

func (h *Handler) auditLogout(ctx context.Context, userID, ip, ua string, all bool, deviceID string) {
	h.insertAudit(ctx, "auth.logout", userID, "", ip, ua, map[string]any{
		"all":       all,
		"device_id": deviceID,
	})
}

func (h *Handler) auditRevoke(ctx context.Context, userID, ip, ua, scope, target string) {
	h.insertAudit(ctx, "auth.session.revoked", userID, "", ip, ua, map[string]any{
		"scope":  scope,
		"target": target,
	})
}

func (h *Handler) insertAudit(ctx context.Context, action, userID, tokenID, ip, ua string, meta map[string]any) {
	if h == nil || h.audit.pool == nil {
		return
	}

	var metaVal *string
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	table := pgx.Identifier{h.audit.schema, "audit_log"}.Sanitize()
	_, err := h.audit.pool.Exec(ctx, `
		INSERT INTO `+table+` (
			user_id, token_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, $3, now(), $4, $5, $6::jsonb)
	`, trimOrNil(userID), trimOrNil(tokenID), action, trimOrNil(ip), trimOrNil(ua), metaVal)
	if err != nil {
		h.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
