package guard

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// The application's named policies. Each mirrors a route class; the factory
// in guard.go builds any further ones the application needs.

// General covers every API route: 500 requests per 15 minutes per address.
// Health probes are exempt.
func General(store Store, logger *slog.Logger) *Policy {
	return New(store, logger, Options{
		Name:    "general",
		Window:  15 * time.Minute,
		Max:     500,
		Key:     KeyByAddr,
		Message: "Too many requests from this IP, please try again later.",
		Bypass: func(r *http.Request) bool {
			return r.URL.Path == "/healthz"
		},
	})
}

// Auth limits login attempts: 5 per 15 minutes per address. Account signup
// posts are governed elsewhere and bypass it.
func Auth(store Store, logger *slog.Logger) *Policy {
	return New(store, logger, Options{
		Name:    "auth",
		Window:  15 * time.Minute,
		Max:     5,
		Key:     KeyByAddr,
		Message: "Too many login attempts, please try again after 15 minutes.",
		Bypass: func(r *http.Request) bool {
			return strings.Contains(r.URL.Path, "signup") && r.Method == http.MethodPost
		},
	})
}

// Upload allows 10 file uploads per hour per authenticated identity.
func Upload(store Store, logger *slog.Logger) *Policy {
	return New(store, logger, Options{
		Name:    "upload",
		Window:  time.Hour,
		Max:     10,
		Key:     KeyByIdentity("upload"),
		Message: "Upload limit exceeded. Maximum 10 files per hour.",
	})
}

// DiscussionPost allows 20 discussion or comment posts per hour per identity.
func DiscussionPost(store Store, logger *slog.Logger) *Policy {
	return New(store, logger, Options{
		Name:    "discussion",
		Window:  time.Hour,
		Max:     20,
		Key:     KeyByIdentity("discussion"),
		Message: "Discussion posting limit exceeded. Maximum 20 posts per hour.",
	})
}

// Chat allows 30 assistant-chat requests per hour per identity.
func Chat(store Store, logger *slog.Logger) *Policy {
	return New(store, logger, Options{
		Name:    "chat",
		Window:  time.Hour,
		Max:     30,
		Key:     KeyByIdentity("chat"),
		Message: "Chat limit exceeded. Maximum 30 messages per hour.",
	})
}

// PasswordReset allows 3 reset attempts per hour, keyed by the submitted
// email address.
func PasswordReset(store Store, logger *slog.Logger) *Policy {
	return New(store, logger, Options{
		Name:    "passwordreset",
		Window:  time.Hour,
		Max:     3,
		Key:     KeyByEmail("passwordreset"),
		Message: "Too many password reset attempts. Please try again after 1 hour.",
	})
}
