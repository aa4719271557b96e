// Package service provides business logic for the application.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/mangos/mangos/internal/metrics"
	"github.com/mangos/mangos/internal/model"
	"github.com/mangos/mangos/internal/repository"
	"github.com/mangos/mangos/internal/serializer"
)

// Service errors.
var (
	ErrMangoNotFound    = errors.New("mango not found")
	ErrPermissionDenied = errors.New("caller does not own this mango")
	ErrUnauthenticated  = errors.New("no authenticated caller")
)

// MangoStore persists mangos.
type MangoStore interface {
	CreateMango(ctx context.Context, m *model.Mango) error
	GetMangoByID(ctx context.Context, id int64) (*model.Mango, error)
	ListMangosByOwner(ctx context.Context, ownerID string) ([]*model.Mango, error)
	UpdateMango(ctx context.Context, m *model.Mango) error
	DeleteMango(ctx context.Context, id int64) error
}

// MangoService handles mango business logic. Every operation is scoped to
// or checked against the caller's user ID, and existence and ownership are
// always decided by the store.
type MangoService struct {
	store   MangoStore
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewMangoService creates a new MangoService.
func NewMangoService(store MangoStore, recorder metrics.Recorder, logger *slog.Logger) *MangoService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MangoService{
		store:   store,
		metrics: recorder,
		logger:  logger,
	}
}

// ListMangos returns the caller's mangos ordered by ID.
func (s *MangoService) ListMangos(ctx context.Context, callerID string) ([]*model.Mango, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	return s.store.ListMangosByOwner(ctx, callerID)
}

// CreateMango validates raw and stores it as a new mango owned by the caller.
// Any owner in the payload is ignored.
func (s *MangoService) CreateMango(ctx context.Context, callerID string, raw json.RawMessage) (*model.Mango, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}

	fields, err := serializer.Deserialize(raw, false)
	if err != nil {
		s.metrics.IncMangoValidationFailed()
		return nil, err
	}

	m := &model.Mango{OwnerID: callerID}
	fields.ApplyTo(m)

	if err := s.store.CreateMango(ctx, m); err != nil {
		if errors.Is(err, repository.ErrOwnerNotFound) {
			s.logger.Warn("mango owner vanished after authentication", "user_id", callerID)
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	s.metrics.IncMangoCreated()

	return m, nil
}

// GetMango returns the mango with id if the caller owns it.
func (s *MangoService) GetMango(ctx context.Context, callerID string, id int64) (*model.Mango, error) {
	start := time.Now()
	m, err := s.load(ctx, id)
	s.metrics.ObserveMangoLookupDuration(time.Since(start))
	if err != nil {
		return nil, err
	}
	if err := s.authorize(m, callerID); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateMango merges the fields present in raw into the caller's mango.
// Ownership is checked before the payload is validated.
func (s *MangoService) UpdateMango(ctx context.Context, callerID string, id int64, raw json.RawMessage) (*model.Mango, error) {
	m, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(m, callerID); err != nil {
		return nil, err
	}

	fields, err := serializer.Deserialize(raw, true)
	if err != nil {
		s.metrics.IncMangoValidationFailed()
		return nil, err
	}

	fields.ApplyTo(m)
	m.OwnerID = callerID

	if err := s.store.UpdateMango(ctx, m); err != nil {
		if errors.Is(err, repository.ErrMangoNotFound) {
			return nil, ErrMangoNotFound
		}
		return nil, err
	}

	s.metrics.IncMangoUpdated()

	return m, nil
}

// DeleteMango removes the caller's mango.
func (s *MangoService) DeleteMango(ctx context.Context, callerID string, id int64) error {
	m, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(m, callerID); err != nil {
		return err
	}

	if err := s.store.DeleteMango(ctx, id); err != nil {
		if errors.Is(err, repository.ErrMangoNotFound) {
			return ErrMangoNotFound
		}
		return err
	}

	s.metrics.IncMangoDeleted()

	return nil
}

// load reads a mango from the store. Non-positive IDs never exist.
func (s *MangoService) load(ctx context.Context, id int64) (*model.Mango, error) {
	if id <= 0 {
		return nil, ErrMangoNotFound
	}

	m, err := s.store.GetMangoByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMangoNotFound) {
			return nil, ErrMangoNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *MangoService) authorize(m *model.Mango, callerID string) error {
	if !m.IsOwnedBy(callerID) {
		s.metrics.IncMangoAccessDenied()
		return ErrPermissionDenied
	}
	return nil
}
