// Package guard is the request-rate governor for the application's HTTP
// routes. It is independent of the connection fan-out core but shares its
// identity resolution: quotas key on the authenticated identity when one
// exists and fall back to the network address.
package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/karimzahran/agora/internal/identity"
	"github.com/karimzahran/agora/internal/metrics"
)

// KeyFunc extracts the quota key for a request.
type KeyFunc func(r *http.Request) string

// BypassFunc reports whether a request skips the policy entirely.
type BypassFunc func(r *http.Request) bool

// Options parameterize one named policy. Max <= 0 disables the policy.
type Options struct {
	Name    string
	Window  time.Duration
	Max     int
	Key     KeyFunc
	Bypass  BypassFunc
	Message string
}

// Policy enforces a fixed-window request quota over a counter store.
type Policy struct {
	opts   Options
	store  Store
	logger *slog.Logger
}

// New is the factory for arbitrary named policies.
func New(store Store, logger *slog.Logger, opts Options) *Policy {
	if opts.Key == nil {
		opts.Key = KeyByAddr
	}
	if opts.Message == "" {
		opts.Message = "Too many requests, please try again later."
	}
	return &Policy{
		opts:   opts,
		store:  store,
		logger: logger.With(slog.String("component", "guard"), slog.String("policy", opts.Name)),
	}
}

// Middleware applies the policy. Over-quota requests are rejected with a
// structured 429 before any handler state mutation can occur.
func (p *Policy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.opts.Max <= 0 || (p.opts.Bypass != nil && p.opts.Bypass(r)) {
			next.ServeHTTP(w, r)
			return
		}

		key := p.opts.Name + ":" + p.opts.Key(r)
		count, resetAt, err := p.store.Incr(r.Context(), key, p.opts.Window)
		if err != nil {
			// a broken counter store must not take the API down with it
			p.logger.Warn("quota store unavailable, admitting request", slog.Any("error", err))
			next.ServeHTTP(w, r)
			return
		}

		if count > p.opts.Max {
			metrics.QuotaRejections.WithLabelValues(p.opts.Name).Inc()
			p.logger.Warn("quota exceeded",
				slog.String("key", key),
				slog.Int("count", count),
				slog.String("path", r.URL.Path),
			)
			writeLimitExceeded(w, p.opts.Message, p.opts.Window, resetAt)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeLimitExceeded(w http.ResponseWriter, message string, window time.Duration, resetAt time.Time) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(resetAt).Seconds())+1))
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(map[string]string{
		"error":      message,
		"retryAfter": humanizeWindow(window),
	})
}

func humanizeWindow(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", int(d.Hours()))
	case d >= time.Minute:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	default:
		return fmt.Sprintf("%d seconds", int(d.Seconds()))
	}
}

// --- key extraction strategies ---

// KeyByAddr keys the quota on the raw network address.
func KeyByAddr(r *http.Request) string {
	return RealIP(r)
}

// KeyByIdentity keys on the authenticated identity's id, prefixed with a
// route tag, falling back to the network address when unauthenticated.
func KeyByIdentity(tag string) KeyFunc {
	return func(r *http.Request) string {
		if ident := IdentityFrom(r.Context()); ident != nil {
			return tag + "_" + ident.ID
		}
		return tag + "_" + RealIP(r)
	}
}

// KeyByEmail keys on the email address submitted with the request (body or
// query), lower-cased and prefixed with a route tag, falling back to the
// network address.
func KeyByEmail(tag string) KeyFunc {
	return func(r *http.Request) string {
		if email := r.FormValue("email"); email != "" {
			return tag + "_" + strings.ToLower(email)
		}
		return tag + "_" + RealIP(r)
	}
}

// RealIP extracts the client address, preferring proxy headers.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// --- identity plumbing ---

type contextKey string

const identityKey = contextKey("guard-identity")

// WithIdentity attaches the request's resolved identity for per-identity
// quota keying. The application's auth middleware calls this.
func WithIdentity(ctx context.Context, ident *identity.Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// IdentityFrom returns the identity attached by WithIdentity, or nil.
func IdentityFrom(ctx context.Context) *identity.Identity {
	ident, _ := ctx.Value(identityKey).(*identity.Identity)
	return ident
}
