package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mangos/mangos/internal/auth"
	"github.com/mangos/mangos/internal/model"
	"github.com/mangos/mangos/internal/repository"
)

// ErrAPIKeyNotFound is returned for keys that are missing, revoked or owned
// by someone else. The three cases are indistinguishable to the caller.
var ErrAPIKeyNotFound = errors.New("API key not found or already revoked")

// InvalidScopeError reports a scope outside model.ValidScopes.
type InvalidScopeError struct {
	Scope string
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("invalid scope %q", e.Scope)
}

// APIKeyStore persists API keys.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error)
	ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// KeyInvalidator drops cached identities of a key.
type KeyInvalidator interface {
	InvalidateAPIKey(ctx context.Context, keyID string) error
}

// CreatedAPIKey is a stored key together with its one-time plaintext.
type CreatedAPIKey struct {
	Key       *model.APIKey
	Plaintext string
}

// APIKeyService manages a user's API keys.
type APIKeyService struct {
	store       APIKeyStore
	invalidator KeyInvalidator
	env         string
	logger      *slog.Logger
	now         func() time.Time
}

// NewAPIKeyService creates a new APIKeyService. Keys are minted for env
// ("live" or "test"). invalidator may be nil.
func NewAPIKeyService(store APIKeyStore, invalidator KeyInvalidator, env string, logger *slog.Logger) *APIKeyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIKeyService{
		store:       store,
		invalidator: invalidator,
		env:         env,
		logger:      logger,
		now:         time.Now,
	}
}

// ListKeys returns the user's keys, newest first, revoked ones included.
func (s *APIKeyService) ListKeys(ctx context.Context, userID string) ([]*model.APIKey, error) {
	keys, err := s.store.ListAPIKeysByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []*model.APIKey{}
	}
	return keys, nil
}

// CreateKey mints a key for userID. Scopes default to read.
func (s *APIKeyService) CreateKey(ctx context.Context, userID string, req model.APIKeyCreateRequest) (*CreatedAPIKey, error) {
	for _, scope := range req.Scopes {
		if !slices.Contains(model.ValidScopes, scope) {
			return nil, &InvalidScopeError{Scope: scope}
		}
	}

	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = []string{model.ScopeRead}
	}

	return s.mint(ctx, &model.APIKey{
		UserID:        userID,
		Scopes:        scopes,
		RateLimitTier: model.TierFree,
		Name:          req.Name,
	})
}

// RevokeKey revokes one of the user's active keys.
func (s *APIKeyService) RevokeKey(ctx context.Context, userID, keyID string) error {
	if _, err := s.activeKey(ctx, userID, keyID); err != nil {
		return err
	}

	if err := s.store.RevokeAPIKey(ctx, keyID); err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return ErrAPIKeyNotFound
		}
		return err
	}

	s.invalidate(ctx, keyID)
	return nil
}

// RotateKey replaces an active key with a new one carrying the same name,
// scopes and tier. The replacement is stored before the old key is revoked.
func (s *APIKeyService) RotateKey(ctx context.Context, userID, keyID string) (*CreatedAPIKey, time.Time, error) {
	old, err := s.activeKey(ctx, userID, keyID)
	if err != nil {
		return nil, time.Time{}, err
	}

	created, err := s.mint(ctx, &model.APIKey{
		UserID:        old.UserID,
		Scopes:        old.Scopes,
		RateLimitTier: old.RateLimitTier,
		Name:          old.Name,
	})
	if err != nil {
		return nil, time.Time{}, err
	}

	revokedAt := s.now()
	if err := s.store.RevokeAPIKey(ctx, old.ID); err != nil {
		// The new key already exists. The old one stays active and cached
		// until a retried revoke, so no revocation time is reported.
		s.logger.Error("failed to revoke old API key during rotation",
			slog.String("key_id", old.ID),
			slog.String("error", err.Error()),
		)
		return created, time.Time{}, nil
	}
	s.invalidate(ctx, old.ID)

	return created, revokedAt, nil
}

func (s *APIKeyService) activeKey(ctx context.Context, userID, keyID string) (*model.APIKey, error) {
	key, err := s.store.GetAPIKeyByID(ctx, keyID)
	if err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, err
	}
	if key.UserID != userID || key.IsRevoked() {
		return nil, ErrAPIKeyNotFound
	}
	return key, nil
}

func (s *APIKeyService) mint(ctx context.Context, key *model.APIKey) (*CreatedAPIKey, error) {
	generated, err := auth.GenerateAPIKey(s.env)
	if err != nil {
		return nil, fmt.Errorf("generate API key: %w", err)
	}

	key.ID = ulid.Make().String()
	key.KeyHash = generated.Hash
	key.KeyPrefix = generated.Prefix
	key.CreatedAt = s.now().UTC()

	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, err
	}

	return &CreatedAPIKey{Key: key, Plaintext: generated.Plaintext}, nil
}

func (s *APIKeyService) invalidate(ctx context.Context, keyID string) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.InvalidateAPIKey(ctx, keyID); err != nil {
		s.logger.Warn("failed to invalidate cached API key",
			slog.String("key_id", keyID),
			slog.String("error", err.Error()),
		)
	}
}
