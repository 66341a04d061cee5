package guard_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/karimzahran/agora/internal/guard"
	"github.com/karimzahran/agora/internal/identity"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func doRequest(handler http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	return w
}

func addrRequest(addr string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/things", nil)
	r.RemoteAddr = addr + ":51234"
	return r
}

func TestPolicyRejectsOverQuota(t *testing.T) {
	store := guard.NewMemStore()
	policy := guard.New(store, newTestLogger(), guard.Options{
		Name:    "test",
		Window:  15 * time.Minute,
		Max:     5,
		Key:     guard.KeyByAddr,
		Message: "slow down",
	})
	handler := policy.Middleware(okHandler)

	for i := 0; i < 5; i++ {
		if w := doRequest(handler, addrRequest("10.0.0.1")); w.Code != http.StatusOK {
			t.Fatalf("request %d should pass, got %d", i+1, w.Code)
		}
	}

	w := doRequest(handler, addrRequest("10.0.0.1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("sixth request should be rejected, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("rejection must carry a Retry-After header")
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("rejection body is not JSON: %v", err)
	}
	if body["error"] != "slow down" {
		t.Errorf("unexpected error message: %q", body["error"])
	}
	if body["retryAfter"] != "15 minutes" {
		t.Errorf("unexpected retryAfter: %q", body["retryAfter"])
	}

	// a different address is an independent quota
	if w := doRequest(handler, addrRequest("10.0.0.2")); w.Code != http.StatusOK {
		t.Errorf("other address should be unaffected, got %d", w.Code)
	}
}

func TestPolicyAllowsAfterWindowElapses(t *testing.T) {
	now := time.Now()
	store := guard.NewMemStore()
	guard.SetClock(store, func() time.Time { return now })

	policy := guard.New(store, newTestLogger(), guard.Options{
		Name:   "test",
		Window: 15 * time.Minute,
		Max:    2,
		Key:    guard.KeyByAddr,
	})
	handler := policy.Middleware(okHandler)

	doRequest(handler, addrRequest("10.0.0.1"))
	doRequest(handler, addrRequest("10.0.0.1"))
	if w := doRequest(handler, addrRequest("10.0.0.1")); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected rejection inside the window, got %d", w.Code)
	}

	now = now.Add(16 * time.Minute)
	if w := doRequest(handler, addrRequest("10.0.0.1")); w.Code != http.StatusOK {
		t.Errorf("request after the window elapsed should pass, got %d", w.Code)
	}
}

func TestKeyByIdentityFallsBackToAddress(t *testing.T) {
	key := guard.KeyByIdentity("upload")

	anon := addrRequest("10.0.0.9")
	if got := key(anon); got != "upload_10.0.0.9" {
		t.Errorf("expected address fallback, got %q", got)
	}

	authed := addrRequest("10.0.0.9")
	authed = authed.WithContext(guard.WithIdentity(authed.Context(), &identity.Identity{ID: "u7"}))
	if got := key(authed); got != "upload_u7" {
		t.Errorf("expected identity key, got %q", got)
	}
}

func TestKeyByEmailLowercasesSubmittedAddress(t *testing.T) {
	key := guard.KeyByEmail("passwordreset")

	form := url.Values{"email": {"Someone@Example.COM"}}
	r := httptest.NewRequest(http.MethodPost, "/password-reset", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.RemoteAddr = "10.0.0.3:40000"
	if got := key(r); got != "passwordreset_someone@example.com" {
		t.Errorf("expected lower-cased email key, got %q", got)
	}

	bare := addrRequest("10.0.0.3")
	if got := key(bare); got != "passwordreset_10.0.0.3" {
		t.Errorf("expected address fallback, got %q", got)
	}
}

func TestRealIPPrefersForwardedFor(t *testing.T) {
	r := addrRequest("10.0.0.1")
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := guard.RealIP(r); got != "203.0.113.7" {
		t.Errorf("expected first forwarded address, got %q", got)
	}
}

func TestAuthPolicyBypassesSignup(t *testing.T) {
	policy := guard.Auth(guard.NewMemStore(), newTestLogger())
	handler := policy.Middleware(okHandler)

	// exhaust the login quota
	for i := 0; i < 6; i++ {
		doRequest(handler, loginRequest("10.0.0.1", "/api/auth/login"))
	}
	if w := doRequest(handler, loginRequest("10.0.0.1", "/api/auth/login")); w.Code != http.StatusTooManyRequests {
		t.Fatalf("login should be rejected, got %d", w.Code)
	}

	// signup POSTs from the same address are exempt
	if w := doRequest(handler, loginRequest("10.0.0.1", "/api/auth/signup")); w.Code != http.StatusOK {
		t.Errorf("signup POST should bypass the auth policy, got %d", w.Code)
	}
}

func loginRequest(addr, path string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, nil)
	r.RemoteAddr = addr + ":51234"
	return r
}

func TestNamedPoliciesMatchTheirQuotas(t *testing.T) {
	logger := newTestLogger()
	store := guard.NewMemStore()

	cases := []struct {
		policy *guard.Policy
		max    int
		window time.Duration
	}{
		{guard.General(store, logger), 500, 15 * time.Minute},
		{guard.Auth(store, logger), 5, 15 * time.Minute},
		{guard.Upload(store, logger), 10, time.Hour},
		{guard.DiscussionPost(store, logger), 20, time.Hour},
		{guard.Chat(store, logger), 30, time.Hour},
		{guard.PasswordReset(store, logger), 3, time.Hour},
	}
	for _, tc := range cases {
		opts := guard.PolicyOptions(tc.policy)
		if opts.Max != tc.max {
			t.Errorf("%s: expected max %d, got %d", opts.Name, tc.max, opts.Max)
		}
		if opts.Window != tc.window {
			t.Errorf("%s: expected window %s, got %s", opts.Name, tc.window, opts.Window)
		}
	}
}

func TestFailedStoreAdmitsRequest(t *testing.T) {
	policy := guard.New(brokenStore{}, newTestLogger(), guard.Options{
		Name:   "test",
		Window: time.Minute,
		Max:    1,
	})
	handler := policy.Middleware(okHandler)

	if w := doRequest(handler, addrRequest("10.0.0.1")); w.Code != http.StatusOK {
		t.Errorf("a broken counter store must not reject traffic, got %d", w.Code)
	}
}

func TestWindowSecondsFloorsSubSecondWindows(t *testing.T) {
	cases := []struct {
		window time.Duration
		want   int64
	}{
		{0, 1},
		{500 * time.Millisecond, 1},
		{time.Second, 1},
		{90 * time.Second, 90},
		{15 * time.Minute, 900},
	}
	for _, tc := range cases {
		if got := guard.WindowSeconds(tc.window); got != tc.want {
			t.Errorf("windowSeconds(%s) = %d, want %d", tc.window, got, tc.want)
		}
	}
}

type brokenStore struct{}

func (brokenStore) Incr(_ context.Context, _ string, _ time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("store offline")
}
