package middleware

import (
	"net/http"

	"github.com/mangos/mangos/internal/auth"
	"github.com/mangos/mangos/internal/model"
)

// RequireScope rejects requests whose key lacks every one of required.
// Admin satisfies any scope. Must run after Auth.
func RequireScope(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				writeErrorEnvelope(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			for _, scope := range required {
				if authCtx.HasScope(scope) {
					next.ServeHTTP(w, r)
					return
				}
			}

			msg := "Insufficient permissions"
			if len(required) > 0 {
				msg += ". Required scope: " + required[0]
			}
			writeErrorEnvelope(w, http.StatusForbidden, "FORBIDDEN", msg)
		})
	}
}

// RequireRead guards read-only endpoints.
func RequireRead() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeRead)
}

// RequireWrite guards endpoints that create, change or delete mangos.
func RequireWrite() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeWrite)
}

// RequireAdmin guards API key management.
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeAdmin)
}
