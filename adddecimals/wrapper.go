// Package adddecimals wraps a token into one with more decimals.
//
// The wrapper holds the underlying tokens in a vault and is the mint
// authority of the wrapped token. One underlying unit is worth Multiplier
// wrapped units.
package adddecimals

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/simon020286/continuation-router/models"
	"go.uber.org/zap"
)

var (
	ErrDecimalsTooLow         = errors.New("wrapped decimals must be greater than or equal to the underlying decimals")
	ErrMultiplierOverflow     = errors.New("initial decimals too high")
	ErrNonEmptyVault          = errors.New("wrapper vault must be empty")
	ErrSupplyNonZero          = errors.New("supply of the wrapped mint is non-zero")
	ErrVaultOwnerMismatch     = errors.New("owner of the wrapper vault must be the wrapper")
	ErrVaultMintMismatch      = errors.New("underlying mint does not match vault mint")
	ErrMintAuthorityMismatch  = errors.New("wrapped mint authority mismatch")
	ErrMintAmountOverflow     = errors.New("mint amount overflow")
	ErrInsufficientUnderlying = errors.New("user does not have enough underlying tokens")
	ErrInsufficientWrapped    = errors.New("user does not have enough wrapped tokens")
	ErrZeroAmount             = errors.New("cannot send zero tokens")
	ErrUserAccountMismatch    = errors.New("user token account does not match the wrapper")
)

// AccountReader is the read side of a token ledger
type AccountReader interface {
	Account(key models.Key) (models.TokenAccount, error)
	Mint(key models.Key) (models.Mint, error)
}

// Config names the accounts of a wrapper
type Config struct {
	Authority      models.Key
	UnderlyingMint models.Key
	WrappedMint    models.Key
	Vault          models.Key
}

// Wrapper is an immutable decimals wrapper
type Wrapper struct {
	Config
	Decimals   uint8
	Multiplier uint64
}

var _ models.PassThroughProcessor = (*Wrapper)(nil)

// Multiplier returns 10^(wrapped - underlying)
func Multiplier(underlyingDecimals, wrappedDecimals uint8) (uint64, error) {
	if wrappedDecimals < underlyingDecimals {
		return 0, ErrDecimalsTooLow
	}
	multiplier := uint64(1)
	for i := uint8(0); i < wrappedDecimals-underlyingDecimals; i++ {
		hi, lo := bits.Mul64(multiplier, 10)
		if hi != 0 {
			return 0, ErrMultiplierOverflow
		}
		multiplier = lo
	}
	return multiplier, nil
}

// New loads a wrapper whose accounts already exist in the ledger
func New(r AccountReader, cfg Config) (*Wrapper, error) {
	underlying, err := r.Mint(cfg.UnderlyingMint)
	if err != nil {
		return nil, fmt.Errorf("underlying mint: %w", err)
	}
	wrapped, err := r.Mint(cfg.WrappedMint)
	if err != nil {
		return nil, fmt.Errorf("wrapped mint: %w", err)
	}
	multiplier, err := Multiplier(underlying.Decimals, wrapped.Decimals)
	if err != nil {
		return nil, err
	}

	vault, err := r.Account(cfg.Vault)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	if vault.Owner != cfg.Authority {
		return nil, ErrVaultOwnerMismatch
	}
	if vault.Mint != cfg.UnderlyingMint {
		return nil, ErrVaultMintMismatch
	}
	if wrapped.Authority != cfg.Authority {
		return nil, ErrMintAuthorityMismatch
	}

	return &Wrapper{Config: cfg, Decimals: wrapped.Decimals, Multiplier: multiplier}, nil
}

// Initialize creates a new wrapper. The vault must be empty and the
// wrapped mint must not have been issued yet.
func Initialize(r AccountReader, cfg Config) (*Wrapper, error) {
	w, err := New(r, cfg)
	if err != nil {
		return nil, err
	}
	vault, err := r.Account(cfg.Vault)
	if err != nil {
		return nil, err
	}
	if vault.Amount != 0 {
		return nil, ErrNonEmptyVault
	}
	wrapped, err := r.Mint(cfg.WrappedMint)
	if err != nil {
		return nil, err
	}
	if wrapped.Supply != 0 {
		return nil, ErrSupplyNonZero
	}
	return w, nil
}

// ToWrapped converts an underlying amount to wrapped units
func (w *Wrapper) ToWrapped(amount uint64) (uint64, bool) {
	hi, lo := bits.Mul64(amount, w.Multiplier)
	return lo, hi == 0
}

// ToUnderlying converts a wrapped amount to underlying units, rounding down
func (w *Wrapper) ToUnderlying(amount uint64) uint64 {
	return amount / w.Multiplier
}

// Withdrawal is the outcome of a withdraw
type Withdrawal struct {
	Withdraw uint64 // underlying tokens paid out
	Burn     uint64 // wrapped tokens burned
	Dust     uint64 // wrapped tokens left with the user
}

// Deposit moves amount underlying tokens into the vault and mints the
// wrapped equivalent to userWrapped. It returns the minted amount.
func (w *Wrapper) Deposit(l models.TokenLedger, owner, userUnderlying, userWrapped models.Key, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, ErrZeroAmount
	}
	src, err := w.userAccounts(l, owner, userUnderlying, userWrapped)
	if err != nil {
		return 0, err
	}
	if src.Amount < amount {
		return 0, ErrInsufficientUnderlying
	}
	mintAmount, ok := w.ToWrapped(amount)
	if !ok {
		return 0, ErrMintAmountOverflow
	}

	if err := l.Transfer(userUnderlying, w.Vault, owner, amount); err != nil {
		return 0, fmt.Errorf("deposit underlying: %w", err)
	}
	if err := l.MintTo(w.WrappedMint, userWrapped, w.Authority, mintAmount); err != nil {
		return 0, fmt.Errorf("mint wrapped: %w", err)
	}
	return mintAmount, nil
}

// Withdraw burns up to maxBurn wrapped tokens and pays out the underlying
// equivalent. Wrapped units that do not add up to a whole underlying unit
// stay in userWrapped.
func (w *Wrapper) Withdraw(l models.TokenLedger, owner, userUnderlying, userWrapped models.Key, maxBurn uint64) (Withdrawal, error) {
	if maxBurn == 0 {
		return Withdrawal{}, ErrZeroAmount
	}
	if _, err := w.userAccounts(l, owner, userUnderlying, userWrapped); err != nil {
		return Withdrawal{}, err
	}
	wrapped, err := l.Account(userWrapped)
	if err != nil {
		return Withdrawal{}, err
	}
	if wrapped.Amount < maxBurn {
		return Withdrawal{}, ErrInsufficientWrapped
	}

	out := Withdrawal{Withdraw: w.ToUnderlying(maxBurn)}
	out.Burn = out.Withdraw * w.Multiplier
	out.Dust = maxBurn - out.Burn

	if err := l.Burn(userWrapped, owner, out.Burn); err != nil {
		return Withdrawal{}, fmt.Errorf("burn wrapped: %w", err)
	}
	if err := l.Transfer(w.Vault, userUnderlying, w.Authority, out.Withdraw); err != nil {
		return Withdrawal{}, fmt.Errorf("withdraw underlying: %w", err)
	}
	return out, nil
}

// WithdrawAll withdraws against the full wrapped balance of userWrapped
func (w *Wrapper) WithdrawAll(l models.TokenLedger, owner, userUnderlying, userWrapped models.Key) (Withdrawal, error) {
	wrapped, err := l.Account(userWrapped)
	if err != nil {
		return Withdrawal{}, err
	}
	return w.Withdraw(l, owner, userUnderlying, userWrapped, wrapped.Amount)
}

// ProcessAction is the router entrypoint. Deposit reads underlying from
// Input and mints into Output; withdraw burns from Input and pays Output.
func (w *Wrapper) ProcessAction(actx *models.ActionContext, action models.ActionType, accounts models.PassThroughAccounts, amountIn, minimumAmountOut uint64) error {
	logger := actx.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var amountOut uint64
	switch action {
	case models.ActionADDeposit:
		minted, err := w.Deposit(actx.Ledger, actx.Owner, accounts.Input, accounts.Output, amountIn)
		if err != nil {
			return err
		}
		amountOut = minted
		logger.Debug("wrapper deposit",
			zap.String("wrapped_mint", string(w.WrappedMint)),
			zap.Uint64("deposit_amount", amountIn),
			zap.Uint64("mint_amount", minted),
		)
	case models.ActionADWithdraw:
		out, err := w.Withdraw(actx.Ledger, actx.Owner, accounts.Output, accounts.Input, amountIn)
		if err != nil {
			return err
		}
		amountOut = out.Withdraw
		logger.Debug("wrapper withdraw",
			zap.String("wrapped_mint", string(w.WrappedMint)),
			zap.Uint64("withdraw_amount", out.Withdraw),
			zap.Uint64("burn_amount", out.Burn),
			zap.Uint64("dust_amount", out.Dust),
		)
	default:
		return models.NewRouteError(models.KindUnknownAction, "wrapper does not handle %s", action)
	}

	if amountOut < minimumAmountOut {
		return models.NewRouteError(models.KindMinimumOutNotMet, "wrapper produced %d, need %d", amountOut, minimumAmountOut)
	}
	return nil
}

// userAccounts checks both user accounts belong to owner and this wrapper,
// returning the underlying account
func (w *Wrapper) userAccounts(l models.TokenLedger, owner, userUnderlying, userWrapped models.Key) (models.TokenAccount, error) {
	underlying, err := l.Account(userUnderlying)
	if err != nil {
		return models.TokenAccount{}, err
	}
	wrapped, err := l.Account(userWrapped)
	if err != nil {
		return models.TokenAccount{}, err
	}
	if underlying.Owner != owner || wrapped.Owner != owner {
		return models.TokenAccount{}, fmt.Errorf("%w: accounts not owned by %s", ErrUserAccountMismatch, owner)
	}
	if underlying.Mint != w.UnderlyingMint || wrapped.Mint != w.WrappedMint {
		return models.TokenAccount{}, fmt.Errorf("%w: mint mismatch", ErrUserAccountMismatch)
	}
	return underlying, nil
}
