package router

import (
	"fmt"

	"github.com/simon020286/continuation-router/models"
	"go.uber.org/zap"
)

// begin validates the route endpoints and builds a new continuation.
// Nothing is written.
func (r *Router) begin(l models.TokenLedger, id string, p BeginParams) (models.Continuation, error) {
	if p.Owner.IsZero() {
		return models.Continuation{}, models.NewRouteError(models.KindOwnerMismatch, "owner is required")
	}
	if p.AmountIn == 0 {
		return models.Continuation{}, models.NewRouteError(models.KindZeroSwap, "begin with amount 0")
	}
	input, err := l.Account(p.Input)
	if err != nil {
		return models.Continuation{}, fmt.Errorf("input: %w", err)
	}
	if input.Owner != p.Owner {
		return models.Continuation{}, models.NewRouteError(models.KindInputOwnerMismatch, "%s owned by %s", input.Key, input.Owner)
	}
	output, err := l.Account(p.Output)
	if err != nil {
		return models.Continuation{}, fmt.Errorf("output: %w", err)
	}
	if output.Owner != p.Owner {
		return models.Continuation{}, models.NewRouteError(models.KindOutputOwnerMismatch, "%s owned by %s", output.Key, output.Owner)
	}
	minimum := p.MinimumAmountOut
	if minimum.Mint.IsZero() {
		minimum.Mint = output.Mint
	}
	if minimum.Mint != output.Mint {
		return models.Continuation{}, models.NewRouteError(models.KindOutputMintMismatch, "minimum in %s, %s holds %s", minimum.Mint, output.Key, output.Mint)
	}

	payer := p.Payer
	if payer.IsZero() {
		payer = p.Owner
	}
	amountIn := models.NewTokenAmount(input.Mint, p.AmountIn)
	now := r.now().UTC()
	return models.Continuation{
		ID:                   id,
		Owner:                p.Owner,
		Payer:                payer,
		InitialAmountIn:      amountIn,
		Input:                input.Key,
		AmountIn:             amountIn,
		StepsLeft:            p.NumSteps,
		Output:               output.Key,
		OutputInitialBalance: output.Amount,
		MinimumAmountOut:     minimum,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

// processStep runs one action against c. Checks happen in a fixed order and
// the first failing one is reported. On success it returns the advanced copy
// of c and the step event; c itself is never modified.
func (r *Router) processStep(actx *models.ActionContext, c models.Continuation, action models.Action) (models.Continuation, models.Event, error) {
	l := actx.Ledger

	if action == nil {
		return c, models.Event{}, models.NewRouteError(models.KindInvalidAction, "nil action")
	}
	if c.StepsLeft == 0 {
		return c, models.Event{}, models.NewRouteError(models.KindNoMoreSteps, "%s", c.ID)
	}
	if action.InputAccount() != c.Input {
		return c, models.Event{}, models.NewRouteError(models.KindPathInputOutputMismatch, "step reads %s, route is at %s", action.InputAccount(), c.Input)
	}
	input, err := l.Account(action.InputAccount())
	if err != nil {
		return c, models.Event{}, fmt.Errorf("input: %w", err)
	}
	if input.Owner != c.Owner {
		return c, models.Event{}, models.NewRouteError(models.KindInputOwnerMismatch, "%s owned by %s", input.Key, input.Owner)
	}
	if input.Mint != c.AmountIn.Mint {
		return c, models.Event{}, models.NewRouteError(models.KindInputMintMismatch, "%s holds %s, route carries %s", input.Key, input.Mint, c.AmountIn.Mint)
	}
	if c.AmountIn.Amount == 0 {
		return c, models.Event{}, models.NewRouteError(models.KindZeroSwap, "%s", c.ID)
	}
	if input.Amount < c.AmountIn.Amount {
		return c, models.Event{}, models.NewRouteError(models.KindInsufficientInput, "%s has %d, step needs %d", input.Key, input.Amount, c.AmountIn.Amount)
	}
	output, err := l.Account(action.OutputAccount())
	if err != nil {
		return c, models.Event{}, fmt.Errorf("output: %w", err)
	}
	if output.Owner != c.Owner {
		return c, models.Event{}, models.NewRouteError(models.KindOutputOwnerMismatch, "%s owned by %s", output.Key, output.Owner)
	}

	// Intermediate steps only have to produce something; the route minimum
	// is passed to the last one and checked again at End.
	var minimumAmountOut uint64
	if c.StepsLeft == 1 {
		if output.Mint != c.MinimumAmountOut.Mint {
			return c, models.Event{}, models.NewRouteError(models.KindOutputMintMismatch, "last step pays %s, route minimum is in %s", output.Mint, c.MinimumAmountOut.Mint)
		}
		minimumAmountOut = c.MinimumAmountOut.Amount
	}

	initialBalance := output.Amount
	actx.Logger.Debug("processing step",
		zap.String("continuation", c.ID),
		zap.Stringer("action", action.Type()),
		zap.Uint64("amount_in", c.AmountIn.Amount),
		zap.Uint64("minimum_amount_out", minimumAmountOut),
	)
	if err := action.Process(actx, c.AmountIn.Amount, minimumAmountOut); err != nil {
		return c, models.Event{}, fmt.Errorf("%s: %w", action.Type(), err)
	}

	result, err := l.Account(output.Key)
	if err != nil {
		return c, models.Event{}, fmt.Errorf("output: %w", err)
	}
	if result.Amount < initialBalance {
		return c, models.Event{}, models.NewRouteError(models.KindBalanceLower, "%s went from %d to %d", output.Key, initialBalance, result.Amount)
	}

	consumed := c.AmountIn
	next := c
	next.Input = output.Key
	next.AmountIn = models.NewTokenAmount(result.Mint, result.Amount-initialBalance)
	next.StepsLeft--
	return next, r.eventBus.stepCompleted(&next, action.Type(), consumed), nil
}

// end checks the final output of a fully processed route
func (r *Router) end(l models.TokenLedger, c *models.Continuation) (*Receipt, error) {
	if !c.Complete() {
		return nil, models.NewRouteError(models.KindEndIncomplete, "%d steps left", c.StepsLeft)
	}
	output, err := l.Account(c.Output)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	if output.Amount < c.OutputInitialBalance {
		return nil, models.NewRouteError(models.KindBalanceLower, "output balance %d below initial %d", output.Amount, c.OutputInitialBalance)
	}
	if output.Mint != c.MinimumAmountOut.Mint {
		return nil, models.NewRouteError(models.KindOutputMintMismatch, "output holds %s, minimum is in %s", output.Mint, c.MinimumAmountOut.Mint)
	}
	amountOut, err := c.NetAmountOut(output.Mint, output.Amount)
	if err != nil {
		return nil, err
	}
	if amountOut < c.MinimumAmountOut.Amount {
		return nil, models.NewRouteError(models.KindMinimumOutNotMet, "got %d, need %d", amountOut, c.MinimumAmountOut.Amount)
	}

	return &Receipt{
		ContinuationID: c.ID,
		Owner:          c.Owner,
		Payer:          c.Payer,
		AmountIn:       c.InitialAmountIn,
		AmountOut:      models.NewTokenAmount(output.Mint, amountOut),
	}, nil
}
