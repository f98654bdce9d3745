package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ecom/cmd/identity"
	"ecom/cmd/internal/auth/credential"
	"ecom/cmd/internal/auth/session"
	"ecom/cmd/internal/metrics"
	"ecom/cmd/security/password"
)

// Handler wires the HTTP auth endpoints to the identity store and the
// session lifecycle service.
type Handler struct {
	log *slog.Logger
	cfg Config

	users    identity.Store
	sessions *session.Service
	signer   *credential.Signer
	pwcfg    password.Config

	audit auditor

	// dummyHash absorbs the hashing cost for unknown emails so login
	// timing does not reveal account existence.
	dummyHash string
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithAuditPool enables audit logging into schema.audit_log.
func WithAuditPool(pool *pgxpool.Pool, schema string) HandlerOption {
	return func(h *Handler) {
		h.audit = auditor{pool: pool, schema: strings.TrimSpace(schema)}
		if h.audit.schema == "" {
			h.audit.schema = "ecom"
		}
	}
}

// NewHandler constructs the auth Handler.
func NewHandler(log *slog.Logger, cfg Config, users identity.Store, sessions *session.Service, signer *credential.Signer, pwcfg password.Config, opts ...HandlerOption) (*Handler, error) {
	if users == nil || sessions == nil || signer == nil {
		return nil, errors.New("authapi: missing dependencies")
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		users:    users,
		sessions: sessions,
		signer:   signer,
		pwcfg:    pwcfg,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}

	if hash, err := pwcfg.HashSecret("dummy-password-for-timing-only"); err == nil {
		h.dummyHash = hash
	}

	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /v1/auth/register", h.handleRegister)
	mux.HandleFunc("POST /v1/auth/login", h.handleLogin)
	mux.HandleFunc("POST /v1/auth/refresh", h.handleRefresh)
	mux.Handle("POST /v1/auth/logout", h.RequireAuth(http.HandlerFunc(h.handleLogout)))
	mux.Handle("GET /v1/sessions", h.RequireAuth(http.HandlerFunc(h.handleListSessions)))
	mux.Handle("POST /v1/sessions/revoke", h.RequireAuth(http.HandlerFunc(h.handleRevoke)))
	mux.Handle("DELETE /v1/sessions/{jti}", h.RequireAuth(http.HandlerFunc(h.handleRevokeByID)))
}

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if fields := validateRegister(req, h.pwcfg); len(fields) > 0 {
		writeValidation(w, "validation failed", fields)
		return
	}

	ctx := r.Context()
	res, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Now:      time.Now().UTC(),
	})
	if err != nil {
		var ce identity.ConflictError
		if errors.As(err, &ce) {
			writeValidation(w, "validation failed", []fieldError{
				{Path: ce.Field, Message: ce.Field + " already in use"},
			})
			return
		}
		if identity.IsInvalidInput(err) {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}
		h.log.Error("auth.register.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.auditRegister(ctx, res.User.ID, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	writeJSON(w, http.StatusCreated, registerResponse{User: toUserResponse(res.User)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var fields []fieldError
	if strings.TrimSpace(req.Email) == "" {
		fields = append(fields, fieldError{Path: "email", Message: "email is required"})
	}
	if req.Password == "" {
		fields = append(fields, fieldError{Path: "password", Message: "password is required"})
	}
	if len(fields) > 0 {
		writeValidation(w, "validation failed", fields)
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	userAuth, err := h.users.GetUserAuthByEmail(ctx, req.Email)
	if err != nil {
		// Timing resistance: burn a verify on a dummy hash.
		if h.dummyHash != "" {
			_, _ = h.pwcfg.Verify(h.dummyHash, req.Password)
		}
		metrics.Logins.WithLabelValues(metrics.ResultInvalid).Inc()
		h.auditLoginFailed(ctx, "", ip, ua, req.Email, "not_found")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	okPw, err := h.pwcfg.Verify(userAuth.PasswordHash, req.Password)
	if err != nil || !okPw {
		metrics.Logins.WithLabelValues(metrics.ResultInvalid).Inc()
		h.auditLoginFailed(ctx, userAuth.User.ID, ip, ua, req.Email, "bad_password")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	issued, err := h.sessions.Login(ctx, now, userAuth.User.ID, userAuth.User.Role, nil, session.Device{
		DeviceID:  req.DeviceID,
		IP:        ip,
		UserAgent: ua,
	})
	if err != nil {
		h.log.Error("auth.login.issue.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.auditLoginSuccess(ctx, userAuth.User.ID, issued.TokenID, ip, ua)
	h.setAuthCookies(w, issued.AccessToken, issued.AccessExp, issued.RefreshToken, issued.RefreshExp)
	writeJSON(w, http.StatusOK, loginResponse{
		User:     toUserResponse(userAuth.User),
		DeviceID: issued.DeviceID,
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	// The refresh credential is cookie-only. Bodies may carry a device
	// hint but never the credential itself.
	raw := refreshTokenFromCookie(r)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	issued, err := h.sessions.Refresh(ctx, now, raw, session.Device{
		DeviceID:  req.DeviceID,
		IP:        ip,
		UserAgent: ua,
	})
	if err != nil {
		switch {
		case errors.Is(err, session.ErrTokenReuseDetected):
			// Reuse is audit-logged but the client sees a plain 401.
			h.auditRefreshReuse(ctx, ip, ua)
			h.clearAuthCookies(w)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
		case errors.Is(err, session.ErrInvalidSession):
			h.clearAuthCookies(w)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
		default:
			h.log.Error("auth.refresh.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	h.auditRefreshSuccess(ctx, "", issued.TokenID, ip, ua)
	h.setAuthCookies(w, issued.AccessToken, issued.AccessExp, issued.RefreshToken, issued.RefreshExp)
	writeJSON(w, http.StatusOK, refreshResponse{DeviceID: issued.DeviceID})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req logoutRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	// Logout is always success-shaped; revocation failures are logged
	// and the client still loses its cookies.
	if err := h.sessions.Logout(ctx, now, p.ID, req.DeviceID, req.AllDevices); err != nil {
		h.log.Error("auth.logout.fail", "err", err, "user_id", p.ID)
	} else {
		h.auditLogout(ctx, p.ID, ip, ua, req.AllDevices, req.DeviceID)
	}

	h.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// ---- validation ----

func validateRegister(req registerRequest, pwcfg password.Config) []fieldError {
	var fields []fieldError

	username := strings.TrimSpace(req.Username)
	if username == "" {
		fields = append(fields, fieldError{Path: "username", Message: "username is required"})
	} else if len(username) > 64 {
		fields = append(fields, fieldError{Path: "username", Message: "username is too long"})
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		fields = append(fields, fieldError{Path: "email", Message: "email is required"})
	} else if _, err := mail.ParseAddress(email); err != nil {
		fields = append(fields, fieldError{Path: "email", Message: "email is invalid"})
	}

	if err := pwcfg.Validate(req.Password); err != nil {
		switch {
		case errors.Is(err, password.ErrPasswordTooShort):
			fields = append(fields, fieldError{Path: "password", Message: "password is too short"})
		case errors.Is(err, password.ErrPasswordTooLong):
			fields = append(fields, fieldError{Path: "password", Message: "password is too long"})
		default:
			fields = append(fields, fieldError{Path: "password", Message: "password is invalid"})
		}
	}

	return fields
}
