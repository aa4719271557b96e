package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mangos/mangos/internal/auth"
	"github.com/mangos/mangos/internal/model"
)

// minAuthDuration is the floor on time spent authenticating, whatever the outcome.
const minAuthDuration = 200 * time.Millisecond

// KeyStore looks up API keys for authentication.
type KeyStore interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// AuthCache caches resolved identities. A nil AuthCache disables caching.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	Keys   KeyStore
	Cache  AuthCache

	// MinDuration overrides minAuthDuration when positive.
	MinDuration time.Duration
}

// Auth returns a middleware that resolves the caller from an API key and
// stores the identity in the request context. Every failure yields the same 401.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	floor := cfg.MinDuration
	if floor <= 0 {
		floor = minAuthDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			authCtx, reason, cacheHit := resolve(ctx, cfg, extractAPIKey(r))

			if elapsed := time.Since(start); elapsed < floor {
				time.Sleep(floor - elapsed)
			}

			attrs := []any{
				slog.String("ip", r.RemoteAddr),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(ctx)),
			}

			if authCtx == nil {
				cfg.Logger.Warn("authentication failed", append(attrs, slog.String("reason", reason))...)
				writeAuthError(w)
				return
			}

			cfg.Logger.Debug("authentication successful", append(attrs,
				slog.String("key_id", authCtx.KeyID),
				slog.String("key_prefix", authCtx.KeyPrefix),
				slog.String("user_id", authCtx.UserID),
				slog.Bool("cache_hit", cacheHit),
			)...)

			next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(ctx, authCtx)))
		})
	}
}

// resolve maps a presented key to an identity. On failure it returns a
// reason suitable for logs.
func resolve(ctx context.Context, cfg AuthConfig, key string) (*model.AuthContext, string, bool) {
	if key == "" {
		return nil, "missing_key", false
	}

	parsed, err := auth.ParseAPIKey(key)
	if err != nil {
		return nil, "invalid_format", false
	}

	cacheKey := auth.CacheKey(key)
	if cfg.Cache != nil {
		if cached, err := cfg.Cache.GetAuthContext(ctx, cacheKey); err == nil && cached != nil {
			return cached, "", true
		}
	}

	candidates, err := cfg.Keys.GetAPIKeysByPrefix(ctx, parsed.Prefix)
	if err != nil {
		cfg.Logger.Error("database error during auth",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(ctx)),
		)
		return nil, "lookup_failed", false
	}

	// Several keys may share a prefix; verify each.
	var matched *model.APIKey
	for _, k := range candidates {
		if k.IsRevoked() {
			continue
		}
		if ok, err := auth.VerifyKey(key, k.KeyHash); err == nil && ok {
			matched = k
			break
		}
	}
	if matched == nil {
		return nil, "invalid_key", false
	}

	authCtx := &model.AuthContext{
		KeyID:         matched.ID,
		KeyPrefix:     matched.KeyPrefix,
		UserID:        matched.UserID,
		Scopes:        matched.Scopes,
		RateLimitTier: matched.RateLimitTier,
	}

	if cfg.Cache != nil {
		if err := cfg.Cache.SetAuthContext(ctx, cacheKey, authCtx); err != nil {
			cfg.Logger.Warn("auth cache write failed", slog.String("error", err.Error()))
		}
	}

	go func(id string) {
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := cfg.Keys.UpdateAPIKeyLastUsed(bg, id); err != nil {
			cfg.Logger.Warn("failed to update key last_used_at",
				slog.String("key_id", id),
				slog.String("error", err.Error()),
			)
		}
	}(matched.ID)

	return authCtx, "", false
}

// extractAPIKey reads "Authorization: Bearer <key>" or, failing that, "X-API-Key".
func extractAPIKey(r *http.Request) string {
	if key, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(key)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// writeAuthError writes the single 401 body used for every auth failure.
func writeAuthError(w http.ResponseWriter) {
	writeErrorEnvelope(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing API key")
}
