package authapi

import (
	"context"
	"net/http"
	"slices"
	"time"
)

// Principal is the authenticated caller attached to request contexts by
// RequireAuth. Role comes from the user store, not from the credential.
type Principal struct {
	ID     string
	Role   string
	Scopes []string
}

type principalKey struct{}

// PrincipalFrom extracts the authenticated principal, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// RequireAuth verifies the access credential and attaches the principal.
//
// The Authorization header takes precedence over the accessToken cookie.
// Every failure is a uniform 401 with no partial context: expired, tampered
// and absent credentials are indistinguishable to the client.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = accessTokenFromCookie(r)
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		claims, err := h.signer.VerifyAccess(token, time.Now().UTC())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		// The role is re-resolved on every request so demotions and
		// deletions take effect before the credential expires.
		u, err := h.users.GetUserByID(r.Context(), claims.Subject)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		p := Principal{ID: u.ID, Role: u.Role, Scopes: claims.Scopes}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

// RequireRole rejects principals whose role does not match. Pure check over
// the already-attached principal; run after RequireAuth.
func RequireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if p.Role != role {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireScopes rejects principals missing any of the listed scopes.
func RequireScopes(scopes []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		for _, s := range scopes {
			if !slices.Contains(p.Scopes, s) {
				writeError(w, http.StatusForbidden, "Forbidden")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
