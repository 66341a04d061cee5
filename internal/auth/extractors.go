package auth

import (
	"net/http"
	"strings"
)

// TokenExtractor pulls a credential token out of one transport location.
// Extractors are pure functions over the request so each can be tested alone.
type TokenExtractor func(r *http.Request) string

// DefaultExtractors is the fallback chain checked at connection setup, in
// priority order: explicit handshake field, session cookie, bearer header.
// The first non-empty token wins.
func DefaultExtractors() []TokenExtractor {
	return []TokenExtractor{
		FromHandshakeQuery,
		FromCookie,
		FromBearerHeader,
	}
}

// FromHandshakeQuery reads the token the client attached to the handshake
// URL ("?token=...").
func FromHandshakeQuery(r *http.Request) string {
	return r.URL.Query().Get("token")
}

// FromCookie reads the browser session cookie.
func FromCookie(r *http.Request) string {
	cookie, err := r.Cookie("token")
	if err != nil {
		return ""
	}
	return cookie.Value
}

// FromBearerHeader reads a "Bearer <token>" authorization header.
func FromBearerHeader(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

// ExtractToken runs the chain and returns the first token found.
func ExtractToken(r *http.Request, extractors []TokenExtractor) string {
	for _, extract := range extractors {
		if token := extract(r); token != "" {
			return token
		}
	}
	return ""
}
