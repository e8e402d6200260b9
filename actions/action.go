// Package actions implements the router's action set as one tagged union.
//
// Every variant is built through a constructor and dispatched through a
// single switch, so adding a variant means touching this file only.
package actions

import (
	"github.com/simon020286/continuation-router/models"
	"go.uber.org/zap"
)

// Swap trades the input token for the other pool token
type Swap struct {
	Venue    models.StableSwap
	Accounts models.SwapAccounts
}

// WithdrawOne burns pool tokens for a single underlying token
type WithdrawOne struct {
	Venue    models.StableSwap
	Accounts models.WithdrawOneAccounts
}

// Deposit adds one side of liquidity to a pool
type Deposit struct {
	Venue    models.StableSwap
	Accounts models.DepositAccounts
}

// PassThrough forwards to a venue's generic entrypoint with the action code
type PassThrough struct {
	Venue    models.PassThroughProcessor
	Accounts models.PassThroughAccounts
}

// Action is one step of a route. The zero value is invalid.
type Action struct {
	kind models.ActionType

	swap        *Swap
	withdrawOne *WithdrawOne
	deposit     *Deposit
	passThrough *PassThrough
}

var _ models.Action = Action{}

// NewSwap builds an ss_swap action
func NewSwap(venue models.StableSwap, accounts models.SwapAccounts) (Action, error) {
	a := Action{kind: models.ActionSSSwap, swap: &Swap{Venue: venue, Accounts: accounts}}
	return checked(a)
}

// NewWithdrawOne builds an ss_withdraw_one action
func NewWithdrawOne(venue models.StableSwap, accounts models.WithdrawOneAccounts) (Action, error) {
	a := Action{kind: models.ActionSSWithdrawOne, withdrawOne: &WithdrawOne{Venue: venue, Accounts: accounts}}
	return checked(a)
}

// NewDepositA builds an ss_deposit_a action: the route amount goes in as token A
func NewDepositA(venue models.StableSwap, accounts models.DepositAccounts) (Action, error) {
	a := Action{kind: models.ActionSSDepositA, deposit: &Deposit{Venue: venue, Accounts: accounts}}
	return checked(a)
}

// NewDepositB builds an ss_deposit_b action: the route amount goes in as token B
func NewDepositB(venue models.StableSwap, accounts models.DepositAccounts) (Action, error) {
	a := Action{kind: models.ActionSSDepositB, deposit: &Deposit{Venue: venue, Accounts: accounts}}
	return checked(a)
}

// NewADWithdraw builds an ad_withdraw pass-through action
func NewADWithdraw(venue models.PassThroughProcessor, accounts models.PassThroughAccounts) (Action, error) {
	a := Action{kind: models.ActionADWithdraw, passThrough: &PassThrough{Venue: venue, Accounts: accounts}}
	return checked(a)
}

// NewADDeposit builds an ad_deposit pass-through action
func NewADDeposit(venue models.PassThroughProcessor, accounts models.PassThroughAccounts) (Action, error) {
	a := Action{kind: models.ActionADDeposit, passThrough: &PassThrough{Venue: venue, Accounts: accounts}}
	return checked(a)
}

func checked(a Action) (Action, error) {
	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}

func (a Action) Type() models.ActionType {
	return a.kind
}

// Validate rejects actions with a missing venue or account
func (a Action) Validate() error {
	invalid := func(format string, args ...any) error {
		return models.NewRouteError(models.KindInvalidAction, "%s: "+format, append([]any{a.kind}, args...)...)
	}
	if !a.kind.Valid() {
		return models.NewRouteError(models.KindUnknownAction, "action code %d", uint16(a.kind))
	}

	switch a.kind {
	case models.ActionSSSwap:
		if a.swap == nil || a.swap.Venue == nil {
			return invalid("venue is required")
		}
		if a.swap.Accounts.Input.IsZero() || a.swap.Accounts.Output.IsZero() {
			return invalid("input and output accounts are required")
		}
	case models.ActionSSWithdrawOne:
		if a.withdrawOne == nil || a.withdrawOne.Venue == nil {
			return invalid("venue is required")
		}
		if a.withdrawOne.Accounts.InputLP.IsZero() || a.withdrawOne.Accounts.Output.IsZero() {
			return invalid("input and output accounts are required")
		}
	case models.ActionSSDepositA, models.ActionSSDepositB:
		if a.deposit == nil || a.deposit.Venue == nil {
			return invalid("venue is required")
		}
		acc := a.deposit.Accounts
		if acc.InputA.IsZero() || acc.InputB.IsZero() || acc.OutputLP.IsZero() {
			return invalid("both token accounts and the pool token account are required")
		}
	case models.ActionADWithdraw, models.ActionADDeposit:
		if a.passThrough == nil || a.passThrough.Venue == nil {
			return invalid("venue is required")
		}
		if a.passThrough.Accounts.Input.IsZero() || a.passThrough.Accounts.Output.IsZero() {
			return invalid("input and output accounts are required")
		}
	}
	return nil
}

// InputAccount is the account the action consumes from
func (a Action) InputAccount() models.Key {
	switch a.kind {
	case models.ActionSSSwap:
		return a.swap.Accounts.Input
	case models.ActionSSWithdrawOne:
		return a.withdrawOne.Accounts.InputLP
	case models.ActionSSDepositA:
		return a.deposit.Accounts.InputA
	case models.ActionSSDepositB:
		return a.deposit.Accounts.InputB
	case models.ActionADWithdraw, models.ActionADDeposit:
		return a.passThrough.Accounts.Input
	}
	return ""
}

// OutputAccount is the account the action produces into
func (a Action) OutputAccount() models.Key {
	switch a.kind {
	case models.ActionSSSwap:
		return a.swap.Accounts.Output
	case models.ActionSSWithdrawOne:
		return a.withdrawOne.Accounts.Output
	case models.ActionSSDepositA, models.ActionSSDepositB:
		return a.deposit.Accounts.OutputLP
	case models.ActionADWithdraw, models.ActionADDeposit:
		return a.passThrough.Accounts.Output
	}
	return ""
}

// Process runs the action against its venue
func (a Action) Process(actx *models.ActionContext, amountIn, minimumAmountOut uint64) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if actx.Logger != nil {
		actx.Logger.Debug("processing action",
			zap.Stringer("action", a.kind),
			zap.String("input", string(a.InputAccount())),
			zap.String("output", string(a.OutputAccount())),
			zap.Uint64("amount_in", amountIn),
			zap.Uint64("minimum_amount_out", minimumAmountOut),
		)
	}

	switch a.kind {
	case models.ActionSSSwap:
		return a.swap.Venue.Swap(actx, a.swap.Accounts, amountIn, minimumAmountOut)
	case models.ActionSSWithdrawOne:
		return a.withdrawOne.Venue.WithdrawOne(actx, a.withdrawOne.Accounts, amountIn, minimumAmountOut)
	case models.ActionSSDepositA:
		return a.deposit.Venue.Deposit(actx, a.deposit.Accounts, amountIn, 0, minimumAmountOut)
	case models.ActionSSDepositB:
		return a.deposit.Venue.Deposit(actx, a.deposit.Accounts, 0, amountIn, minimumAmountOut)
	case models.ActionADWithdraw, models.ActionADDeposit:
		return a.passThrough.Venue.ProcessAction(actx, a.kind, a.passThrough.Accounts, amountIn, minimumAmountOut)
	}
	return models.NewRouteError(models.KindUnknownAction, "action code %d", uint16(a.kind))
}
