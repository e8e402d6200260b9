package models

import "time"

// Continuation is the persisted state of one in-flight route.
// It threads the amount, mint and remaining step count between steps.
type Continuation struct {
	ID string `json:"id"`

	// Owner drives the route and owns every account in it
	Owner Key `json:"owner"`
	// Payer funded the continuation and gets its storage back at the end
	Payer Key `json:"payer"`

	// InitialAmountIn is the snapshot taken at begin, never modified
	InitialAmountIn TokenAmount `json:"initial_amount_in"`

	// Input is the account the next step must consume from
	Input Key `json:"input"`
	// AmountIn is what the next step must consume
	AmountIn TokenAmount `json:"amount_in"`

	StepsLeft uint16 `json:"steps_left"`

	// Output is the final output account of the route
	Output               Key    `json:"output"`
	OutputInitialBalance uint64 `json:"output_initial_balance"`

	MinimumAmountOut TokenAmount `json:"minimum_amount_out"`

	// Version is bumped by the store on every persisted mutation
	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Complete reports whether every step has been processed
func (c *Continuation) Complete() bool {
	return c.StepsLeft == 0
}

// NetAmountOut computes the realized route output given the final balance
// of the output account. When the route starts and ends on the same mint
// the consumed input is added back, so cyclic routes measure their gross
// output rather than their profit.
func (c *Continuation) NetAmountOut(outputMint Key, finalBalance uint64) (uint64, error) {
	if finalBalance < c.OutputInitialBalance {
		return 0, NewRouteError(KindBalanceLower, "output balance %d below initial %d", finalBalance, c.OutputInitialBalance)
	}
	amountOut := finalBalance - c.OutputInitialBalance
	if c.InitialAmountIn.Mint == outputMint {
		sum := amountOut + c.InitialAmountIn.Amount
		if sum < amountOut {
			return 0, NewRouteError(KindOverflowSwapResult, "net amount out overflows")
		}
		amountOut = sum
	}
	return amountOut, nil
}
