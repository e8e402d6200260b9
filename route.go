package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/simon020286/continuation-router/ledger"
	"github.com/simon020286/continuation-router/models"
	"go.uber.org/zap"
)

// BeginParams opens a route
type BeginParams struct {
	Owner models.Key
	// Payer defaults to Owner
	Payer  models.Key
	Input  models.Key
	Output models.Key
	// AmountIn is taken from Input; its mint is the mint Input holds
	AmountIn         uint64
	MinimumAmountOut models.TokenAmount
	NumSteps         uint16
}

// Receipt is the outcome of a completed route
type Receipt struct {
	ContinuationID string
	Owner          models.Key
	Payer          models.Key
	AmountIn       models.TokenAmount
	AmountOut      models.TokenAmount
}

// Route is an exclusive handle on one open continuation
type Route struct {
	router *Router

	mu     sync.Mutex
	cont   models.Continuation
	closed bool
}

// ID returns the continuation ID
func (rt *Route) ID() string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.cont.ID
}

// Continuation returns a copy of the current continuation
func (rt *Route) Continuation() models.Continuation {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.cont
}

// Step applies one action in its own ledger batch. On failure neither the
// ledger nor the continuation changes.
func (rt *Route) Step(ctx context.Context, action models.Action) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return models.NewRouteError(models.KindContinuationClosed, "%s", rt.cont.ID)
	}

	r := rt.router
	var (
		next  models.Continuation
		event models.Event
		saved bool
	)
	err := r.ledger.Update(ctx, func(tx *ledger.Tx) error {
		var err error
		next, event, err = r.processStep(r.actionContext(ctx, tx, rt.cont.Owner), rt.cont, action)
		if err != nil {
			return err
		}
		if err := r.store.Save(ctx, &next); err != nil {
			return fmt.Errorf("persist continuation: %w", err)
		}
		saved = true
		return nil
	})
	if err != nil {
		if saved {
			// The ledger batch was discarded after the store advanced
			rt.restore(ctx, next.Version)
		}
		r.logger.Warn("step rejected",
			zap.String("continuation", rt.cont.ID),
			zap.Uint16("steps_left", rt.cont.StepsLeft),
			zap.Error(err),
		)
		return err
	}
	rt.cont = next
	r.eventBus.publish(event)
	return nil
}

// End checks the route outcome, deletes the continuation and releases the
// handle
func (rt *Route) End(ctx context.Context) (*Receipt, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return nil, models.NewRouteError(models.KindContinuationClosed, "%s", rt.cont.ID)
	}

	r := rt.router
	var receipt *Receipt
	err := r.ledger.View(func(tx *ledger.Tx) error {
		var err error
		receipt, err = r.end(tx, &rt.cont)
		return err
	})
	if err != nil {
		r.logger.Warn("end rejected", zap.String("continuation", rt.cont.ID), zap.Error(err))
		return nil, err
	}
	if err := r.store.Delete(ctx, rt.cont.ID); err != nil {
		return nil, err
	}
	rt.close()

	r.logger.Info("route completed",
		zap.String("continuation", receipt.ContinuationID),
		zap.Stringer("amount_in", receipt.AmountIn),
		zap.Stringer("amount_out", receipt.AmountOut),
	)
	r.eventBus.publish(r.eventBus.routeCompleted(receipt))
	return receipt, nil
}

// Cancel abandons the route: the continuation is deleted and its storage
// returns to the payer. Balances moved by earlier steps stay where they are.
func (rt *Route) Cancel(ctx context.Context) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closed {
		return models.NewRouteError(models.KindContinuationClosed, "%s", rt.cont.ID)
	}

	r := rt.router
	if err := r.store.Delete(ctx, rt.cont.ID); err != nil {
		return err
	}
	rt.close()
	r.logger.Info("route cancelled",
		zap.String("continuation", rt.cont.ID),
		zap.Uint16("steps_left", rt.cont.StepsLeft),
	)
	r.eventBus.publish(r.eventBus.routeClosed(models.EventRouteCancelled, &rt.cont))
	return nil
}

// Release gives up the handle and keeps the continuation for a later Resume
func (rt *Route) Release() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if !rt.closed {
		rt.close()
	}
}

// restore writes the pre-step continuation back over the one saved at
// version. Callers hold rt.mu.
func (rt *Route) restore(ctx context.Context, version uint64) {
	prev := rt.cont
	prev.Version = version
	if err := rt.router.store.Save(context.WithoutCancel(ctx), &prev); err != nil {
		rt.router.logger.Error("restore continuation",
			zap.String("continuation", prev.ID),
			zap.Error(err),
		)
		return
	}
	rt.cont = prev
}

func (rt *Route) close() {
	rt.closed = true
	rt.router.release(rt.cont.ID)
}
