package authapi

import (
	"net/http"
	"strings"
	"time"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

// setAuthCookies installs both credential cookies. Both are httpOnly and
// SameSite=Lax; the refresh cookie rides along on every request but is only
// read by the refresh endpoint.
func (h *Handler) setAuthCookies(w http.ResponseWriter, accessToken string, accessExp time.Time, refreshToken string, refreshExp time.Time) {
	h.setCookie(w, accessCookieName, accessToken, accessExp)
	h.setCookie(w, refreshCookieName, refreshToken, refreshExp)
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	h.expireCookie(w, accessCookieName)
	h.expireCookie(w, refreshCookieName)
}

func (h *Handler) setCookie(w http.ResponseWriter, name, value string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cfg.CookieDomain,
		Expires:  exp,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) expireCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// refreshTokenFromCookie reads the refresh credential. The refresh endpoint
// never accepts the credential from a request body.
func refreshTokenFromCookie(r *http.Request) string {
	c, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func accessTokenFromCookie(r *http.Request) string {
	c, err := r.Cookie(accessCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
