package auth_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/karimzahran/agora/internal/auth"
	"github.com/karimzahran/agora/internal/identity"
)

const testSecret = "unit-test-secret"

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestAuthenticator(store identity.Store) *auth.Authenticator {
	return auth.New(auth.NewHMACVerifier(testSecret), store, time.Second, newTestLogger())
}

func seededStore(ids ...string) *identity.MemStore {
	store := identity.NewMemStore()
	for _, id := range ids {
		store.Put(&identity.Identity{ID: id, Username: "user-" + id, Email: id + "@example.com"})
	}
	return store
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func validToken(t *testing.T, subject string) string {
	return signToken(t, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
}

func TestAuthenticateFromEachLocation(t *testing.T) {
	a := newTestAuthenticator(seededStore("u1"))
	token := validToken(t, "u1")

	cases := map[string]func(r *http.Request){
		"handshake query": func(r *http.Request) {
			q := r.URL.Query()
			q.Set("token", token)
			r.URL.RawQuery = q.Encode()
		},
		"cookie": func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "token", Value: token})
		},
		"bearer header": func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		},
	}

	for name, attach := range cases {
		t.Run(name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			attach(r)

			ident, err := a.Authenticate(context.Background(), r)
			if err != nil {
				t.Fatalf("Authenticate failed: %v", err)
			}
			if ident.ID != "u1" {
				t.Errorf("expected identity u1, got %s", ident.ID)
			}
		})
	}
}

func TestHandshakeFieldWinsOverOtherLocations(t *testing.T) {
	a := newTestAuthenticator(seededStore("u1", "u2", "u3"))

	r := httptest.NewRequest(http.MethodGet, "/ws?token="+validToken(t, "u1"), nil)
	r.AddCookie(&http.Cookie{Name: "token", Value: validToken(t, "u2")})
	r.Header.Set("Authorization", "Bearer "+validToken(t, "u3"))

	ident, err := a.Authenticate(context.Background(), r)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if ident.ID != "u1" {
		t.Errorf("handshake token should win, resolved %s", ident.ID)
	}
}

func TestCookieWinsOverBearerHeader(t *testing.T) {
	a := newTestAuthenticator(seededStore("u2", "u3"))

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.AddCookie(&http.Cookie{Name: "token", Value: validToken(t, "u2")})
	r.Header.Set("Authorization", "Bearer "+validToken(t, "u3"))

	ident, err := a.Authenticate(context.Background(), r)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if ident.ID != "u2" {
		t.Errorf("cookie token should win over bearer, resolved %s", ident.ID)
	}
}

func TestAuthenticateNoCredential(t *testing.T) {
	a := newTestAuthenticator(seededStore("u1"))
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)

	_, err := a.Authenticate(context.Background(), r)
	if !errors.Is(err, auth.ErrNoCredential) {
		t.Errorf("expected ErrNoCredential, got %v", err)
	}
	if !errors.Is(err, auth.ErrAuthentication) {
		t.Error("every auth failure must wrap ErrAuthentication")
	}
}

func TestAuthenticateExpiredToken(t *testing.T) {
	a := newTestAuthenticator(seededStore("u1"))
	expired := signToken(t, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	r := httptest.NewRequest(http.MethodGet, "/ws?token="+expired, nil)

	_, err := a.Authenticate(context.Background(), r)
	if !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticateWrongSecret(t *testing.T) {
	a := newTestAuthenticator(seededStore("u1"))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	forged, err := token.SignedString([]byte("some-other-secret"))
	if err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodGet, "/ws?token="+forged, nil)

	if _, err := a.Authenticate(context.Background(), r); !errors.Is(err, auth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestAuthenticateDeletedAccount(t *testing.T) {
	store := seededStore("u1")
	a := newTestAuthenticator(store)
	token := validToken(t, "u1")
	store.Delete("u1")

	r := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	if _, err := a.Authenticate(context.Background(), r); !errors.Is(err, auth.ErrIdentityNotFound) {
		t.Errorf("expected ErrIdentityNotFound, got %v", err)
	}
}

type failingStore struct{}

func (failingStore) Lookup(_ context.Context, _ string) (*identity.Identity, error) {
	return nil, errors.New("connection refused")
}

func TestAuthenticateFailsClosedOnStoreError(t *testing.T) {
	a := newTestAuthenticator(failingStore{})
	r := httptest.NewRequest(http.MethodGet, "/ws?token="+validToken(t, "u1"), nil)

	_, err := a.Authenticate(context.Background(), r)
	if !errors.Is(err, auth.ErrAuthentication) {
		t.Errorf("store failure must reject the attempt, got %v", err)
	}
	if errors.Is(err, auth.ErrIdentityNotFound) {
		t.Error("store failure must not be reported as a missing identity")
	}
}

func TestAuthenticateLegacySubjectClaim(t *testing.T) {
	a := newTestAuthenticator(seededStore("u9"))
	legacy := signToken(t, jwt.MapClaims{
		"userId": "u9",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	r := httptest.NewRequest(http.MethodGet, "/ws?token="+legacy, nil)

	ident, err := a.Authenticate(context.Background(), r)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if ident.ID != "u9" {
		t.Errorf("expected identity u9, got %s", ident.ID)
	}
}
