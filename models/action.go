package models

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ActionType is the numeric code of a router action.
// Pass-through venues receive this code through their single entrypoint.
type ActionType uint16

const (
	ActionSSSwap        ActionType = 0
	ActionSSWithdrawOne ActionType = 1
	ActionSSDepositA    ActionType = 2
	ActionSSDepositB    ActionType = 3

	ActionADWithdraw ActionType = 10
	ActionADDeposit  ActionType = 11
)

var actionNames = map[ActionType]string{
	ActionSSSwap:        "ss_swap",
	ActionSSWithdrawOne: "ss_withdraw_one",
	ActionSSDepositA:    "ss_deposit_a",
	ActionSSDepositB:    "ss_deposit_b",
	ActionADWithdraw:    "ad_withdraw",
	ActionADDeposit:     "ad_deposit",
}

func (t ActionType) String() string {
	if name, ok := actionNames[t]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", uint16(t))
}

// Valid reports whether t is one of the known action codes
func (t ActionType) Valid() bool {
	_, ok := actionNames[t]
	return ok
}

// ParseActionType returns the action type registered under name
func ParseActionType(name string) (ActionType, error) {
	for t, n := range actionNames {
		if n == name {
			return t, nil
		}
	}
	return 0, NewRouteError(KindUnknownAction, "unknown action type %q", name)
}

// TokenLedger is the view of token balances that actions and venues operate on.
type TokenLedger interface {
	Account(key Key) (TokenAccount, error)
	Mint(key Key) (Mint, error)
	Transfer(from, to, authority Key, amount uint64) error
	MintTo(mint, to, authority Key, amount uint64) error
	Burn(account, authority Key, amount uint64) error
}

// ActionContext carries everything an action may touch while it runs
type ActionContext struct {
	Context context.Context
	Ledger  TokenLedger
	// Owner of every account involved in the route
	Owner  Key
	Logger *zap.Logger
}

// Action is the contract every pluggable venue action satisfies.
//
// Process moves exactly amountIn units from the input account towards the
// output account and fails if the venue cannot deliver minimumAmountOut.
// Callers must not rely on the returned error alone: the step processor
// re-reads the output balance afterwards.
type Action interface {
	Type() ActionType
	InputAccount() Key
	OutputAccount() Key
	Process(actx *ActionContext, amountIn, minimumAmountOut uint64) error
}
