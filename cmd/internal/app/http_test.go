package app

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// newMemoryApp wires a full in-memory app the same way Run does, minus the
// listener.
func newMemoryApp(t *testing.T) (*App, *http.ServeMux) {
	t.Helper()

	t.Setenv("ECOM_ARGON2_MEMORY_KIB", "8192")
	t.Setenv("ECOM_ARGON2_ITERATIONS", "1")
	t.Setenv("ECOM_ARGON2_PARALLELISM", "1")

	cfg := LoadConfig()
	cfg.DatabaseURL = ""

	a, err := New(cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.auth, a.orders)
	return a, mux
}

func TestHealthz(t *testing.T) {
	_, mux := newMemoryApp(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rec.Code)
	}
}

func TestReadyz_MemoryMode(t *testing.T) {
	_, mux := newMemoryApp(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status=%d", rec.Code)
	}
}

func TestReadyz_RequireDBWithoutDB(t *testing.T) {
	a, _ := newMemoryApp(t)
	a.cfg.ReadinessRequireDB = true

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.auth, a.orders)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d, want 503", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, mux := newMemoryApp(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Result().Body)
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("metrics exposition looks empty")
	}
}

func TestCheckout_RequiresAuth(t *testing.T) {
	_, mux := newMemoryApp(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/checkout", strings.NewReader("{}")))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("checkout status=%d, want 401", rec.Code)
	}
}

func TestAuthFlow_MemoryMode(t *testing.T) {
	_, mux := newMemoryApp(t)

	body, _ := json.Marshal(map[string]string{
		"username": "ada",
		"email":    "ada@example.com",
		"password": "correct horse battery",
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", bytes.NewReader(body))
	req.Header.Set("User-Agent", "app-test")
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status=%d body=%s", rec.Code, rec.Body.String())
	}

	body, _ = json.Marshal(map[string]string{
		"email":    "ada@example.com",
		"password": "correct horse battery",
	})
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("User-Agent", "app-test")
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rec.Code, rec.Body.String())
	}

	var access *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "accessToken" {
			access = c
		}
	}
	if access == nil {
		t.Fatalf("login must set an access cookie")
	}

	// Memory mode has no order storage; the route exists but reports
	// checkout as unavailable.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/checkout", strings.NewReader(`{"paymentMethod":"card","items":[{"productId":"p1","quantity":1}]}`))
	req.AddCookie(access)
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("checkout status=%d, want 503", rec.Code)
	}
}
