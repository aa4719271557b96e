package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/mangos/mangos/internal/auth"
	"github.com/mangos/mangos/internal/model"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func withAuth(r *http.Request, a *model.AuthContext) *http.Request {
	return r.WithContext(auth.ContextWithAuth(r.Context(), a))
}
