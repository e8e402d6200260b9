package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/simon020286/continuation-router/models"
)

// MemoryStore keeps continuations in a map
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]models.Continuation
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]models.Continuation),
		now:   NewOptions(opts...).Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, c *models.Continuation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.ID == "" {
		return fmt.Errorf("continuation id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[c.ID]; exists {
		return fmt.Errorf("%w: %s", ErrExists, c.ID)
	}
	now := s.now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.Version = 1
	s.items[c.ID] = *c
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (models.Continuation, error) {
	if err := ctx.Err(); err != nil {
		return models.Continuation{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.items[id]
	if !ok {
		return models.Continuation{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

func (s *MemoryStore) Save(ctx context.Context, c *models.Continuation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.items[c.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, c.ID)
	}
	if current.Version != c.Version {
		return fmt.Errorf("%w: %s at version %d, have %d", ErrConflict, c.ID, current.Version, c.Version)
	}
	c.Version++
	c.UpdatedAt = s.now().UTC()
	s.items[c.ID] = *c
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) ListStale(ctx context.Context, before time.Time) ([]models.Continuation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Continuation
	for _, c := range s.items {
		if c.UpdatedAt.Before(before) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}
