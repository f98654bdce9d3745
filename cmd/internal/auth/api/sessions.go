package authapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ecom/cmd/internal/auth/session"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit := defaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeValidation(w, "validation failed", []fieldError{
				{Path: "limit", Message: "limit must be a positive integer"},
			})
			return
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		limit = n
	}
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

	page, err := h.sessions.ListSessions(r.Context(), p.ID, limit, cursor)
	if err != nil {
		if errors.Is(err, session.ErrBadCursor) {
			writeValidation(w, "validation failed", []fieldError{
				{Path: "cursor", Message: "cursor is malformed"},
			})
			return
		}
		h.log.Error("auth.sessions.list.fail", "err", err, "user_id", p.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, listSessionsResponse{
		Items:      page.Items,
		NextCursor: page.NextCursor,
	})
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req revokeRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Exactly one revocation scope must be resolvable.
	scopes := 0
	if req.All {
		scopes++
	}
	if strings.TrimSpace(req.DeviceID) != "" {
		scopes++
	}
	if strings.TrimSpace(req.JTI) != "" {
		scopes++
	}
	if scopes != 1 {
		writeValidation(w, "validation failed", []fieldError{
			{Path: "body", Message: "exactly one of all, deviceId, jti is required"},
		})
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	switch {
	case req.All:
		if err := h.sessions.Logout(ctx, now, p.ID, "", true); err != nil {
			h.log.Error("auth.sessions.revoke.fail", "err", err, "user_id", p.ID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		h.auditRevoke(ctx, p.ID, ip, ua, "all", "")
	case strings.TrimSpace(req.DeviceID) != "":
		if err := h.sessions.Logout(ctx, now, p.ID, req.DeviceID, false); err != nil {
			h.log.Error("auth.sessions.revoke.fail", "err", err, "user_id", p.ID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		h.auditRevoke(ctx, p.ID, ip, ua, "device", req.DeviceID)
	default:
		if err := h.sessions.RevokeByTokenID(ctx, now, p.ID, strings.TrimSpace(req.JTI)); err != nil {
			if errors.Is(err, session.ErrInvalidSession) {
				writeJSON(w, http.StatusOK, successResponse{Success: false})
				return
			}
			h.log.Error("auth.sessions.revoke.fail", "err", err, "user_id", p.ID)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		h.auditRevoke(ctx, p.ID, ip, ua, "token", req.JTI)
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) handleRevokeByID(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	jti := strings.TrimSpace(r.PathValue("jti"))
	if jti == "" {
		writeValidation(w, "validation failed", []fieldError{
			{Path: "jti", Message: "jti is required"},
		})
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	err := h.sessions.RevokeByTokenID(ctx, now, p.ID, jti)
	switch {
	case err == nil:
		h.auditRevoke(ctx, p.ID, clientIP(r, h.cfg.TrustProxy), r.UserAgent(), "token", jti)
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	case errors.Is(err, session.ErrInvalidSession):
		writeJSON(w, http.StatusOK, successResponse{Success: false})
	default:
		h.log.Error("auth.sessions.revoke.fail", "err", err, "user_id", p.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
