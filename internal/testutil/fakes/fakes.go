// Package fakes provides in-memory stand-ins for the PostgreSQL repository
// and the Redis auth cache, for unit tests that exercise services, handlers and
// the router without external dependencies.
package fakes

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/mangos/mangos/internal/model"
	"github.com/mangos/mangos/internal/repository"
)

// ErrUnavailable simulates a backend outage.
var ErrUnavailable = errors.New("connection refused")

// Store is an in-memory repository for mangos and API keys.
type Store struct {
	mu     sync.Mutex
	nextID int64
	mangos map[int64]model.Mango
	keys   map[string]model.APIKey

	// Owners, when non-nil, lists the user IDs that exist. Creating a mango
	// for anyone else fails like a foreign key violation.
	Owners map[string]bool
	// Err, when set, is returned by every mango read and write.
	Err error
	// RevokeErr, when set, is returned by RevokeAPIKey.
	RevokeErr error
	// AfterGet, when set, runs after GetMangoByID has read the row and
	// released the lock, to interleave writes with an in-flight read.
	AfterGet func(id int64)
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		mangos: make(map[int64]model.Mango),
		keys:   make(map[string]model.APIKey),
	}
}

// CreateMango assigns the next ID and stores m.
func (s *Store) CreateMango(_ context.Context, m *model.Mango) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	if s.Owners != nil && !s.Owners[m.OwnerID] {
		return repository.ErrOwnerNotFound
	}

	s.nextID++
	now := time.Now().UTC()
	m.ID = s.nextID
	m.CreatedAt = now
	m.UpdatedAt = now
	s.mangos[m.ID] = *m
	return nil
}

// GetMangoByID returns a copy of the stored mango.
func (s *Store) GetMangoByID(_ context.Context, id int64) (*model.Mango, error) {
	s.mu.Lock()
	err := s.Err
	m, ok := s.mangos[id]
	hook := s.AfterGet
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if hook != nil {
		hook(id)
	}
	if !ok {
		return nil, repository.ErrMangoNotFound
	}
	return &m, nil
}

// ListMangosByOwner returns ownerID's mangos ordered by ID.
func (s *Store) ListMangosByOwner(_ context.Context, ownerID string) ([]*model.Mango, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]*model.Mango, 0)
	for _, m := range s.mangos {
		if m.OwnerID == ownerID {
			m := m
			out = append(out, &m)
		}
	}
	slices.SortFunc(out, func(a, b *model.Mango) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

// UpdateMango overwrites a stored mango.
func (s *Store) UpdateMango(_ context.Context, m *model.Mango) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.mangos[m.ID]; !ok {
		return repository.ErrMangoNotFound
	}
	m.UpdatedAt = time.Now().UTC()
	s.mangos[m.ID] = *m
	return nil
}

// DeleteMango removes a stored mango.
func (s *Store) DeleteMango(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.mangos[id]; !ok {
		return repository.ErrMangoNotFound
	}
	delete(s.mangos, id)
	return nil
}

// MangoCount returns the number of stored mangos.
func (s *Store) MangoCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mangos)
}

// CreateAPIKey stores a copy of key.
func (s *Store) CreateAPIKey(_ context.Context, key *model.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key.ID] = *key
	return nil
}

// GetAPIKeyByID returns a copy of the stored key.
func (s *Store) GetAPIKeyByID(_ context.Context, id string) (*model.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[id]
	if !ok {
		return nil, repository.ErrAPIKeyNotFound
	}
	return &key, nil
}

// GetAPIKeysByPrefix returns the active keys with prefix.
func (s *Store) GetAPIKeysByPrefix(_ context.Context, prefix string) ([]*model.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.APIKey
	for _, key := range s.keys {
		if key.KeyPrefix == prefix && key.RevokedAt == nil {
			key := key
			out = append(out, &key)
		}
	}
	return out, nil
}

// ListAPIKeysByUserID returns userID's keys, newest first.
func (s *Store) ListAPIKeysByUserID(_ context.Context, userID string) ([]*model.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.APIKey
	for _, key := range s.keys {
		if key.UserID == userID {
			key := key
			out = append(out, &key)
		}
	}
	slices.SortFunc(out, func(a, b *model.APIKey) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// RevokeAPIKey marks an active key revoked.
func (s *Store) RevokeAPIKey(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.RevokeErr != nil {
		return s.RevokeErr
	}
	key, ok := s.keys[id]
	if !ok || key.RevokedAt != nil {
		return repository.ErrAPIKeyNotFound
	}
	now := time.Now()
	key.RevokedAt = &now
	s.keys[id] = key
	return nil
}

// UpdateAPIKeyLastUsed stamps last_used_at.
func (s *Store) UpdateAPIKeyLastUsed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[id]
	if !ok {
		return repository.ErrAPIKeyNotFound
	}
	now := time.Now()
	key.LastUsedAt = &now
	s.keys[id] = key
	return nil
}

// Cache is an in-memory stand-in for the Redis cache. Entries never expire.
type Cache struct {
	mu          sync.Mutex
	auth        map[string]model.AuthContext
	invalidated []string
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{auth: make(map[string]model.AuthContext)}
}

// GetAuthContext returns the cached identity, or nil on a miss.
func (c *Cache) GetAuthContext(_ context.Context, cacheKey string) (*model.AuthContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.auth[cacheKey]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// SetAuthContext caches a copy of a.
func (c *Cache) SetAuthContext(_ context.Context, cacheKey string, a *model.AuthContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth[cacheKey] = *a
	return nil
}

// InvalidateAPIKey drops every identity resolved from keyID.
func (c *Cache) InvalidateAPIKey(_ context.Context, keyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, a := range c.auth {
		if a.KeyID == keyID {
			delete(c.auth, k)
		}
	}
	c.invalidated = append(c.invalidated, keyID)
	return nil
}

// Invalidated returns the key IDs passed to InvalidateAPIKey, in call order.
func (c *Cache) Invalidated() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.invalidated)
}
