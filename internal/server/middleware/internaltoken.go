package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// RequireInternalToken guards the trigger endpoints reserved for the
// surrounding application's services. An empty configured token disables the
// endpoints outright rather than leaving them open.
func RequireInternalToken(token string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.Error(w, "Not Found", http.StatusNotFound)
				return
			}
			presented := r.Header.Get("X-Internal-Token")
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				reqMeta, _ := ReqMetadataFrom(r.Context())
				if reqMeta != nil {
					logger.Warn("rejected internal trigger call", slog.String("ip", reqMeta.IP))
				}
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
