package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mangos/mangos/internal/auth"
	"github.com/mangos/mangos/internal/handler/dto"
	"github.com/mangos/mangos/internal/model"
	"github.com/mangos/mangos/internal/service"
)

// APIKeyHandler handles API key management endpoints.
type APIKeyHandler struct {
	logger *slog.Logger
	svc    *service.APIKeyService
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(logger *slog.Logger, svc *service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{
		logger: logger,
		svc:    svc,
	}
}

// CreateAPIKey handles POST /api-keys
func (h *APIKeyHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeAPIKeyError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req model.APIKeyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIKeyError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	created, err := h.svc.CreateKey(r.Context(), authCtx.UserID, req)
	if err != nil {
		var scopeErr *service.InvalidScopeError
		if errors.As(err, &scopeErr) {
			writeAPIKeyError(w, http.StatusBadRequest, "INVALID_SCOPE",
				"Invalid scope: "+scopeErr.Scope+". Valid scopes: "+strings.Join(model.ValidScopes, ", "))
			return
		}
		h.logger.Error("failed to create API key", slog.String("error", err.Error()))
		writeAPIKeyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create API key")
		return
	}

	h.logger.Info("API key created",
		slog.String("key_id", created.Key.ID),
		slog.String("key_prefix", created.Key.KeyPrefix),
		slog.String("user_id", created.Key.UserID),
	)

	// The plaintext key is shown once only.
	writeJSON(w, http.StatusCreated, dto.ToAPIKeyCreateResponse(created.Key, created.Plaintext))
}

// ListAPIKeys handles GET /api-keys
func (h *APIKeyHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeAPIKeyError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	keys, err := h.svc.ListKeys(r.Context(), authCtx.UserID)
	if err != nil {
		h.logger.Error("failed to list API keys", slog.String("error", err.Error()))
		writeAPIKeyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list API keys")
		return
	}

	writeJSON(w, http.StatusOK, dto.ToAPIKeyListResponse(keys))
}

// RevokeAPIKey handles DELETE /api-keys/{key_id}
func (h *APIKeyHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeAPIKeyError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	keyID := chi.URLParam(r, "key_id")
	if keyID == "" {
		writeAPIKeyError(w, http.StatusBadRequest, "INVALID_REQUEST", "Key ID is required")
		return
	}

	if err := h.svc.RevokeKey(r.Context(), authCtx.UserID, keyID); err != nil {
		h.handleKeyError(w, err, "failed to revoke API key")
		return
	}

	h.logger.Info("API key revoked",
		slog.String("key_id", keyID),
		slog.String("user_id", authCtx.UserID),
	)

	w.WriteHeader(http.StatusNoContent)
}

// RotateAPIKey handles POST /api-keys/{key_id}/rotate
func (h *APIKeyHandler) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.AuthFromContext(r.Context())
	if authCtx == nil {
		writeAPIKeyError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	keyID := chi.URLParam(r, "key_id")
	if keyID == "" {
		writeAPIKeyError(w, http.StatusBadRequest, "INVALID_REQUEST", "Key ID is required")
		return
	}

	created, revokedAt, err := h.svc.RotateKey(r.Context(), authCtx.UserID, keyID)
	if err != nil {
		h.handleKeyError(w, err, "failed to rotate API key")
		return
	}

	h.logger.Info("API key rotated",
		slog.String("old_key_id", keyID),
		slog.String("new_key_id", created.Key.ID),
		slog.String("user_id", authCtx.UserID),
		slog.Bool("old_key_revoked", !revokedAt.IsZero()),
	)

	resp := model.APIKeyRotateResponse{
		OldKeyID: keyID,
		NewKey:   dto.ToAPIKeyCreateResponse(created.Key, created.Plaintext),
	}
	if !revokedAt.IsZero() {
		resp.OldKeyRevokedAt = &revokedAt
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *APIKeyHandler) handleKeyError(w http.ResponseWriter, err error, logMsg string) {
	if errors.Is(err, service.ErrAPIKeyNotFound) {
		// Foreign keys look missing to prevent enumeration.
		writeAPIKeyError(w, http.StatusNotFound, "KEY_NOT_FOUND", "API key not found or already revoked")
		return
	}
	h.logger.Error(logMsg, slog.String("error", err.Error()))
	writeAPIKeyError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
}

// writeAPIKeyError writes a JSON error response.
func writeAPIKeyError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
