// Package router drives multi-step routes across independent venues.
//
// A route is opened with Begin, advanced one action at a time with Step and
// closed with End. Between calls its state lives in a continuation record:
// each step must consume exactly what the previous step produced, and End
// only succeeds once every step ran and the output cleared the minimum.
// Execute runs a whole Plan as one all-or-nothing ledger batch.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/simon020286/continuation-router/builder"
	"github.com/simon020286/continuation-router/ledger"
	"github.com/simon020286/continuation-router/models"
	"github.com/simon020286/continuation-router/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/simon020286/continuation-router/actions"
)

// Router opens, advances and closes routes against one ledger
type Router struct {
	ledger *ledger.Ledger
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	// Event handling (private)
	eventBus *eventBus

	// active holds the continuations currently owned by a Route handle
	activeMu sync.Mutex
	active   map[string]struct{}
}

// Option configures a Router
type Option func(*Router)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Router) {
		r.logger = logger
	}
}

// WithClock replaces time.Now. Expire compares against the timestamps the
// store writes, so pass the same clock to the store with store.WithClock.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		r.now = now
	}
}

// WithIDGenerator replaces the continuation ID generator
func WithIDGenerator(newID func() string) Option {
	return func(r *Router) {
		r.newID = newID
	}
}

// New creates a router over a ledger and a continuation store
func New(l *ledger.Ledger, s store.Store, opts ...Option) *Router {
	r := &Router{
		ledger: l,
		store:  s,
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  builder.GenerateContinuationID,
		active: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.eventBus = newEventBus(r.now, builder.GenerateEventID)
	return r
}

// AddListener adds a listener to receive events from the router
func (r *Router) AddListener(listener models.EventListener) {
	r.eventBus.addListener(listener)
}

// RemoveAllListeners removes every listener
func (r *Router) RemoveAllListeners() {
	r.eventBus.removeAllListeners()
}

// Wait waits until every listener has processed the events emitted so far
func (r *Router) Wait() {
	r.eventBus.wait()
}

// acquire takes the exclusive lock on a continuation
func (r *Router) acquire(id string) error {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	if _, busy := r.active[id]; busy {
		return models.NewRouteError(models.KindContinuationBusy, "%s", id)
	}
	r.active[id] = struct{}{}
	return nil
}

func (r *Router) release(id string) {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	delete(r.active, id)
}

func (r *Router) actionContext(ctx context.Context, l models.TokenLedger, owner models.Key) *models.ActionContext {
	return &models.ActionContext{
		Context: ctx,
		Ledger:  l,
		Owner:   owner,
		Logger:  r.logger,
	}
}

// Begin opens a route. The returned handle holds the continuation
// exclusively until End, Cancel or Release.
func (r *Router) Begin(ctx context.Context, params BeginParams) (*Route, error) {
	id := r.newID()
	var cont models.Continuation
	err := r.ledger.View(func(tx *ledger.Tx) error {
		var err error
		cont, err = r.begin(tx, id, params)
		return err
	})
	if err != nil {
		r.logger.Warn("begin rejected", zap.String("owner", string(params.Owner)), zap.Error(err))
		return nil, err
	}
	if err := r.acquire(id); err != nil {
		return nil, err
	}
	if err := r.store.Create(ctx, &cont); err != nil {
		r.release(id)
		return nil, fmt.Errorf("persist continuation: %w", err)
	}

	r.logger.Info("route opened",
		zap.String("continuation", id),
		zap.String("owner", string(cont.Owner)),
		zap.Stringer("amount_in", cont.AmountIn),
		zap.Uint16("steps", cont.StepsLeft),
	)
	r.eventBus.publish(r.eventBus.routeInitialized(&cont))
	return &Route{router: r, cont: cont}, nil
}

// Resume reopens a persisted continuation for its owner
func (r *Router) Resume(ctx context.Context, id string, owner models.Key) (*Route, error) {
	cont, err := r.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, models.NewRouteError(models.KindContinuationNotFound, "%s", id)
	}
	if err != nil {
		return nil, err
	}
	if cont.Owner != owner {
		return nil, models.NewRouteError(models.KindOwnerMismatch, "%s is not the owner of %s", owner, id)
	}
	if err := r.acquire(id); err != nil {
		return nil, err
	}
	return &Route{router: r, cont: cont}, nil
}

// Execute runs a plan as one batch: begin, every step and end either all
// apply or none does. Events are published only after the batch commits;
// a rejected batch publishes route.failed instead.
func (r *Router) Execute(ctx context.Context, plan *Plan) (*Receipt, error) {
	id := r.newID()
	if err := r.acquire(id); err != nil {
		return nil, err
	}
	defer r.release(id)

	var (
		events  []models.Event
		receipt *Receipt
		stored  bool
	)
	err := r.ledger.Update(ctx, func(tx *ledger.Tx) error {
		for _, acc := range plan.EnsureAccounts {
			created, err := tx.EnsureAccount(acc.Key, acc.Mint, acc.Owner)
			if err != nil {
				return fmt.Errorf("ensure account %s: %w", acc.Key, err)
			}
			if created {
				r.logger.Debug("created output account", zap.String("account", string(acc.Key)), zap.String("mint", string(acc.Mint)))
			}
		}

		cont, err := r.begin(tx, id, plan.Params)
		if err != nil {
			return err
		}
		if err := r.store.Create(ctx, &cont); err != nil {
			return fmt.Errorf("persist continuation: %w", err)
		}
		stored = true
		events = append(events, r.eventBus.routeInitialized(&cont))

		for i, action := range plan.Actions {
			next, event, err := r.processStep(r.actionContext(ctx, tx, cont.Owner), cont, action)
			if err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
			if err := r.store.Save(ctx, &next); err != nil {
				return fmt.Errorf("persist continuation: %w", err)
			}
			cont = next
			events = append(events, event)
		}

		rc, err := r.end(tx, &cont)
		if err != nil {
			return err
		}
		if err := r.store.Delete(ctx, id); err != nil {
			return fmt.Errorf("close continuation: %w", err)
		}
		stored = false
		receipt = rc
		events = append(events, r.eventBus.routeCompleted(rc))
		return nil
	})
	if err != nil {
		if stored {
			if derr := r.store.Delete(context.WithoutCancel(ctx), id); derr != nil && !errors.Is(derr, store.ErrNotFound) {
				r.logger.Error("failed to discard continuation", zap.String("continuation", id), zap.Error(derr))
			}
		}
		r.logger.Warn("route rejected",
			zap.String("plan", plan.Name),
			zap.String("continuation", id),
			zap.Error(err),
		)
		r.eventBus.publish(r.eventBus.routeFailed(id, plan.Params.Owner, err))
		return nil, err
	}

	r.logger.Info("route completed",
		zap.String("plan", plan.Name),
		zap.String("continuation", id),
		zap.Stringer("amount_in", receipt.AmountIn),
		zap.Stringer("amount_out", receipt.AmountOut),
	)
	r.eventBus.publish(events...)
	return receipt, nil
}

// ExecuteAll executes independent plans concurrently, at most limit at a
// time. Ledger batches still apply one after the other. Receipts are
// returned in plan order; a failed plan leaves a nil receipt and its error
// is joined into the returned error.
func (r *Router) ExecuteAll(ctx context.Context, plans []*Plan, limit int) ([]*Receipt, error) {
	receipts := make([]*Receipt, len(plans))
	errs := make([]error, len(plans))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, plan := range plans {
		i, plan := i, plan
		g.Go(func() error {
			receipt, err := r.Execute(ctx, plan)
			if err != nil {
				errs[i] = fmt.Errorf("plan %s: %w", plan.Name, err)
				return nil
			}
			receipts[i] = receipt
			return nil
		})
	}
	_ = g.Wait()
	return receipts, errors.Join(errs...)
}

// Expire deletes continuations that have not moved for longer than ttl and
// are not held by a Route. It returns how many were reclaimed.
func (r *Router) Expire(ctx context.Context, ttl time.Duration) (int, error) {
	stale, err := r.store.ListStale(ctx, r.now().Add(-ttl))
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		c := &stale[i]
		if err := r.acquire(c.ID); err != nil {
			continue
		}
		err := r.store.Delete(ctx, c.ID)
		r.release(c.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return expired, fmt.Errorf("expire %s: %w", c.ID, err)
		}
		expired++
		r.logger.Info("route expired",
			zap.String("continuation", c.ID),
			zap.String("payer", string(c.Payer)),
			zap.Uint16("steps_left", c.StepsLeft),
		)
		r.eventBus.publish(r.eventBus.routeClosed(models.EventRouteExpired, c))
	}
	return expired, nil
}
