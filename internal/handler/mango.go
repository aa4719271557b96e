package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mangos/mangos/internal/auth"
	"github.com/mangos/mangos/internal/handler/dto"
	"github.com/mangos/mangos/internal/middleware"
	"github.com/mangos/mangos/internal/serializer"
	"github.com/mangos/mangos/internal/service"
)

// MangoHandler handles HTTP requests for mango operations.
type MangoHandler struct {
	svc    *service.MangoService
	logger *slog.Logger
}

// NewMangoHandler creates a new MangoHandler.
func NewMangoHandler(svc *service.MangoService, logger *slog.Logger) *MangoHandler {
	return &MangoHandler{
		svc:    svc,
		logger: logger,
	}
}

// List handles GET /mangos.
func (h *MangoHandler) List(w http.ResponseWriter, r *http.Request) {
	mangos, err := h.svc.ListMangos(r.Context(), auth.UserIDFromContext(r.Context()))
	if err != nil {
		h.handleServiceError(w, r, err, 0)
		return
	}

	writeJSON(w, http.StatusOK, serializer.SerializeMany(mangos))
}

// Create handles POST /mangos.
func (h *MangoHandler) Create(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.decodeMango(w, r)
	if !ok {
		return
	}

	callerID := auth.UserIDFromContext(r.Context())
	m, err := h.svc.CreateMango(r.Context(), callerID, raw)
	if err != nil {
		h.handleServiceError(w, r, err, 0)
		return
	}

	h.logger.Info("mango_created",
		"mango_id", m.ID,
		"owner_id", m.OwnerID,
	)
	h.logger.Debug(m.String(), "mango_id", m.ID)

	writeJSON(w, http.StatusCreated, serializer.Serialize(m))
}

// Get handles GET /mangos/{id}.
func (h *MangoHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMangoID(chi.URLParam(r, "id"))
	if !ok {
		h.writeNotFound(w)
		return
	}

	m, err := h.svc.GetMango(r.Context(), auth.UserIDFromContext(r.Context()), id)
	if err != nil {
		h.handleServiceError(w, r, err, id)
		return
	}

	writeJSON(w, http.StatusOK, serializer.Serialize(m))
}

// Update handles PATCH /mangos/{id}.
func (h *MangoHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMangoID(chi.URLParam(r, "id"))
	if !ok {
		h.writeNotFound(w)
		return
	}

	// Strangers get 403 or 404 whatever they sent.
	callerID := auth.UserIDFromContext(r.Context())
	if _, err := h.svc.GetMango(r.Context(), callerID, id); err != nil {
		h.handleServiceError(w, r, err, id)
		return
	}

	raw, ok := h.decodeMango(w, r)
	if !ok {
		return
	}

	m, err := h.svc.UpdateMango(r.Context(), callerID, id, raw)
	if err != nil {
		h.handleServiceError(w, r, err, id)
		return
	}

	h.logger.Info("mango_updated",
		"mango_id", m.ID,
		"owner_id", m.OwnerID,
	)

	writeJSON(w, http.StatusOK, serializer.Serialize(m))
}

// Delete handles DELETE /mangos/{id}.
func (h *MangoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseMangoID(chi.URLParam(r, "id"))
	if !ok {
		h.writeNotFound(w)
		return
	}

	callerID := auth.UserIDFromContext(r.Context())
	if err := h.svc.DeleteMango(r.Context(), callerID, id); err != nil {
		h.handleServiceError(w, r, err, id)
		return
	}

	h.logger.Info("mango_deleted",
		"mango_id", id,
		"owner_id", callerID,
	)

	w.WriteHeader(http.StatusNoContent)
}

// decodeMango reads the {"mango": {...}} envelope. It writes the error
// response itself and reports false when the request cannot proceed.
func (h *MangoHandler) decodeMango(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	var req dto.MangoRequest
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(&req)
	if err == nil {
		err = expectEOF(dec)
	}
	if err != nil {
		switch {
		case middleware.IsBodyTooLarge(err):
			h.writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
			return nil, false
		case errors.Is(err, io.EOF):
			// Empty body: same as a body without the mango key.
		default:
			h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
			return nil, false
		}
	}

	if req.Mango == nil {
		verr := serializer.NewValidationError()
		verr.Add("mango", serializer.MsgRequired)
		writeJSON(w, http.StatusBadRequest, verr)
		return nil, false
	}

	return req.Mango, true
}

var errTrailingData = errors.New("unexpected data after JSON value")

// expectEOF rejects bodies that carry anything but whitespace after the
// first JSON value.
func expectEOF(dec *json.Decoder) error {
	var extra json.RawMessage
	switch err := dec.Decode(&extra); {
	case err == nil:
		return errTrailingData
	case errors.Is(err, io.EOF):
		return nil
	default:
		return err
	}
}

// parseMangoID accepts only unsigned decimal IDs greater than zero.
func parseMangoID(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// handleServiceError maps service errors to HTTP responses.
func (h *MangoHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error, id int64) {
	var verr *serializer.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, verr)
	case errors.Is(err, service.ErrPermissionDenied):
		h.logger.Warn("mango_access_denied",
			"mango_id", id,
			"user_id", auth.UserIDFromContext(r.Context()),
			"method", r.Method,
		)
		h.writeError(w, http.StatusForbidden, "PERMISSION_DENIED", deniedMessage(r.Method))
	case errors.Is(err, service.ErrMangoNotFound):
		h.writeNotFound(w)
	case errors.Is(err, service.ErrUnauthenticated):
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	default:
		h.logger.Error("mango request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// deniedMessage words the 403 detail for the attempted operation.
func deniedMessage(method string) string {
	switch method {
	case http.MethodPatch, http.MethodPut:
		return "You cannot update a mango you do not own."
	case http.MethodDelete:
		return "You cannot delete a mango you do not own."
	default:
		return "You do not own this mango."
	}
}

func (h *MangoHandler) writeNotFound(w http.ResponseWriter) {
	h.writeError(w, http.StatusNotFound, "MANGO_NOT_FOUND", "Mango not found")
}

func (h *MangoHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
