// Package store persists continuations between the steps of a route.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/simon020286/continuation-router/models"
)

var (
	ErrNotFound = errors.New("continuation not found")
	ErrExists   = errors.New("continuation already exists")
	// ErrConflict means the stored version moved on since the caller read it
	ErrConflict = errors.New("continuation version conflict")
)

// Store is the persistence contract for continuations.
//
// Save is a compare-and-swap on Version: it succeeds only when the stored
// version equals c.Version, and on success bumps c.Version and sets
// c.UpdatedAt.
type Store interface {
	Create(ctx context.Context, c *models.Continuation) error
	Get(ctx context.Context, id string) (models.Continuation, error)
	Save(ctx context.Context, c *models.Continuation) error
	Delete(ctx context.Context, id string) error
	// ListStale returns continuations last updated before the given time
	ListStale(ctx context.Context, before time.Time) ([]models.Continuation, error)
}

// Options are the settings shared by every Store implementation
type Options struct {
	// Now stamps CreatedAt and UpdatedAt
	Now func() time.Time
}

// Option configures a Store
type Option func(*Options)

// WithClock replaces time.Now. ListStale compares against the timestamps
// this clock produced, so a Router and its store should share one.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.Now = now
	}
}

// NewOptions applies opts over the defaults
func NewOptions(opts ...Option) Options {
	o := Options{Now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
