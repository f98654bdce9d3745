// Package main provides a CI-friendly HTTP smoke test for the auth surface.
//
// It validates, against a running server:
//   - register -> 201
//   - login -> cookies issued
//   - authenticated session listing
//   - refresh -> rotation (new refresh cookie)
//   - replay of the rotated-away refresh cookie -> 401 on the whole lineage
//   - logout -> cookies cleared
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type smokeClient struct {
	base    string
	http    *http.Client
	cookies map[string]*http.Cookie
	timeout time.Duration
	verbose bool
}

func main() {
	var (
		baseURL = flag.String("url", "http://127.0.0.1:8080", "Server base URL")
		email   = flag.String("email", "", "Account email (default: generated)")
		pass    = flag.String("password", "smoke horse battery staple", "Account password")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if _, err := url.ParseRequestURI(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}

	addr := strings.TrimRight(*baseURL, "/")
	acct := *email
	if acct == "" {
		acct = fmt.Sprintf("smoke-%d@example.com", time.Now().UnixNano())
	}

	c := &smokeClient{
		base:    addr,
		http:    &http.Client{Timeout: *timeout},
		cookies: map[string]*http.Cookie{},
		timeout: *timeout,
		verbose: *verbose,
	}

	c.step("register", func() error {
		status, _, err := c.do(http.MethodPost, "/v1/auth/register", map[string]string{
			"username": strings.SplitN(acct, "@", 2)[0],
			"email":    acct,
			"password": *pass,
		})
		if err != nil {
			return err
		}
		if status != http.StatusCreated {
			return fmt.Errorf("status %d", status)
		}
		return nil
	})

	c.step("login", func() error {
		status, _, err := c.do(http.MethodPost, "/v1/auth/login", map[string]string{
			"email":    acct,
			"password": *pass,
		})
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("status %d", status)
		}
		if c.cookies["accessToken"] == nil || c.cookies["refreshToken"] == nil {
			return fmt.Errorf("auth cookies not set")
		}
		return nil
	})

	c.step("list sessions", func() error {
		status, body, err := c.do(http.MethodGet, "/v1/sessions", nil)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("status %d", status)
		}
		var page struct {
			Items []json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return err
		}
		if len(page.Items) == 0 {
			return fmt.Errorf("expected at least one session")
		}
		return nil
	})

	var staleRefresh *http.Cookie
	c.step("refresh rotates", func() error {
		staleRefresh = c.cookies["refreshToken"]
		status, _, err := c.do(http.MethodPost, "/v1/auth/refresh", nil)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("status %d", status)
		}
		fresh := c.cookies["refreshToken"]
		if fresh == nil || fresh.Value == staleRefresh.Value {
			return fmt.Errorf("refresh cookie did not rotate")
		}
		return nil
	})

	c.step("replay is rejected", func() error {
		live := c.cookies["refreshToken"]

		c.cookies["refreshToken"] = staleRefresh
		status, _, err := c.do(http.MethodPost, "/v1/auth/refresh", nil)
		if err != nil {
			return err
		}
		if status != http.StatusUnauthorized {
			return fmt.Errorf("replayed credential: status %d, want 401", status)
		}

		// Reuse freezes the lineage: the current credential dies too.
		c.cookies["refreshToken"] = live
		status, _, err = c.do(http.MethodPost, "/v1/auth/refresh", nil)
		if err != nil {
			return err
		}
		if status != http.StatusUnauthorized {
			return fmt.Errorf("frozen lineage: status %d, want 401", status)
		}
		return nil
	})

	c.step("re-login and logout", func() error {
		status, _, err := c.do(http.MethodPost, "/v1/auth/login", map[string]string{
			"email":    acct,
			"password": *pass,
		})
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("login status %d", status)
		}

		status, _, err = c.do(http.MethodPost, "/v1/auth/logout", map[string]any{"allDevices": true})
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("logout status %d", status)
		}
		if c.cookies["accessToken"] != nil && c.cookies["accessToken"].Value != "" {
			return fmt.Errorf("access cookie not cleared")
		}
		return nil
	})

	fmt.Println("auth smoke: OK")
}

func (c *smokeClient) step(name string, fn func() error) {
	start := time.Now()
	if err := fn(); err != nil {
		fatalf("step %q failed: %v", name, err)
	}
	if c.verbose {
		fmt.Printf("step %q ok (%s)\n", name, time.Since(start).Round(time.Millisecond))
	}
}

func (c *smokeClient) do(method, path string, body any) (int, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, nil, err
		}
	}

	req, err := http.NewRequest(method, c.base+path, &buf)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "auth-smoke")
	for _, ck := range c.cookies {
		if ck != nil && ck.Value != "" {
			req.AddCookie(ck)
		}
	}

	res, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		_ = res.Body.Close()
	}()

	for _, ck := range res.Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return res.StatusCode, data, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "auth smoke: "+format+"\n", args...)
	os.Exit(1)
}
