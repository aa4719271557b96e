package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/mangos/mangos/internal/auth"
	"github.com/mangos/mangos/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func asCaller(r *http.Request, userID string, scopes ...string) *http.Request {
	if len(scopes) == 0 {
		scopes = []string{model.ScopeRead, model.ScopeWrite}
	}
	return r.WithContext(auth.ContextWithAuth(r.Context(), &model.AuthContext{
		KeyID:  "key-" + userID,
		UserID: userID,
		Scopes: scopes,
	}))
}
