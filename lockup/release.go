// Package lockup releases minted tokens to a beneficiary on a linear
// schedule.
package lockup

import (
	"errors"
	"fmt"

	"github.com/simon020286/continuation-router/mintproxy"
	"github.com/simon020286/continuation-router/models"
)

var (
	ErrInvalidDepositAmount          = errors.New("release amount must be positive")
	ErrInvalidSchedule               = errors.New("end must be after start")
	ErrMinterAllowanceTooLow         = errors.New("minter allowance too low")
	ErrMinterUnauthorized            = errors.New("release is not a registered minter")
	ErrInsufficientWithdrawalBalance = errors.New("amount exceeds released balance")
	ErrBeneficiaryMismatch           = errors.New("destination is not owned by the beneficiary")
)

// Release is one beneficiary's lockup
type Release struct {
	// Key identifies the release; it is the minter registered on the proxy
	Key          models.Key
	Beneficiary  models.Key
	Mint         models.Key
	StartBalance uint64
	Outstanding  uint64
	StartTS      int64
	EndTS        int64
	CreatedTS    int64
}

// Withdrawn is how much has left the release so far
func (r Release) Withdrawn() uint64 {
	if r.StartBalance < r.Outstanding {
		return 0
	}
	return r.StartBalance - r.Outstanding
}

// CreateRelease validates the schedule and that the proxy will let the
// release mint its full amount
func CreateRelease(state mintproxy.State, key, beneficiary models.Key, amount uint64, startTS, endTS, now int64) (Release, error) {
	if amount == 0 {
		return Release{}, ErrInvalidDepositAmount
	}
	if endTS <= startTS {
		return Release{}, ErrInvalidSchedule
	}
	allowance, ok := state.Allowance(key)
	if !ok {
		return Release{}, fmt.Errorf("%w: %s", ErrMinterUnauthorized, key)
	}
	if allowance < amount {
		return Release{}, fmt.Errorf("%w: %d < %d", ErrMinterAllowanceTooLow, allowance, amount)
	}
	return Release{
		Key:          key,
		Beneficiary:  beneficiary,
		Mint:         state.TokenMint,
		StartBalance: amount,
		Outstanding:  amount,
		StartTS:      startTS,
		EndTS:        endTS,
		CreatedTS:    now,
	}, nil
}

// Withdraw mints everything currently available into destination
func (r Release) Withdraw(l mintproxy.Ledger, state mintproxy.State, destination models.Key, now int64) (Release, mintproxy.State, uint64, error) {
	amount := AvailableForWithdrawal(r, now)
	next, nextState, err := r.WithdrawAmount(l, state, destination, amount, now)
	return next, nextState, amount, err
}

// WithdrawAmount mints amount into destination if it has been released
func (r Release) WithdrawAmount(l mintproxy.Ledger, state mintproxy.State, destination models.Key, amount uint64, now int64) (Release, mintproxy.State, error) {
	if amount > AvailableForWithdrawal(r, now) {
		return r, state, ErrInsufficientWithdrawalBalance
	}
	dst, err := l.Account(destination)
	if err != nil {
		return r, state, err
	}
	if dst.Owner != r.Beneficiary {
		return r, state, ErrBeneficiaryMismatch
	}
	if allowance, _ := state.Allowance(r.Key); allowance < amount {
		return r, state, ErrMinterAllowanceTooLow
	}

	nextState, err := state.PerformMint(l, r.Key, destination, amount)
	if err != nil {
		return r, state, err
	}
	r.Outstanding -= amount
	return r, nextState, nil
}
