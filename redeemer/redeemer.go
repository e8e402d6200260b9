// Package redeemer swaps IOU tokens one-for-one for redemption tokens.
//
// Redemption tokens come either from a vault owned by the redeemer or are
// minted through a mint proxy where the redeemer is a registered minter.
package redeemer

import (
	"errors"
	"fmt"

	"github.com/simon020286/continuation-router/mintproxy"
	"github.com/simon020286/continuation-router/models"
)

var (
	ErrDecimalsMismatch = errors.New("iou and redemption mint decimals differ")
	ErrVaultMismatch    = errors.New("redemption vault does not belong to the redeemer")
	ErrIOUMintMismatch  = errors.New("source account does not hold the iou mint")
	ErrUnauthorized     = errors.New("destination is not owned by the redeeming user")
	ErrProxyMismatch    = errors.New("mint proxy does not issue the redemption mint")
)

// AccountReader is the read side of a token ledger
type AccountReader interface {
	Account(key models.Key) (models.TokenAccount, error)
	Mint(key models.Key) (models.Mint, error)
}

// Redeemer pairs an IOU mint with its redemption mint
type Redeemer struct {
	// Key is the redeemer's authority: it owns the vault and mints through the proxy
	Key             models.Key
	IOUMint         models.Key
	RedemptionMint  models.Key
	RedemptionVault models.Key
}

// Create validates the token pair and returns a redeemer
func Create(r AccountReader, key, iouMint, redemptionMint, redemptionVault models.Key) (*Redeemer, error) {
	iou, err := r.Mint(iouMint)
	if err != nil {
		return nil, fmt.Errorf("iou mint: %w", err)
	}
	redemption, err := r.Mint(redemptionMint)
	if err != nil {
		return nil, fmt.Errorf("redemption mint: %w", err)
	}
	if iou.Decimals != redemption.Decimals {
		return nil, ErrDecimalsMismatch
	}
	vault, err := r.Account(redemptionVault)
	if err != nil {
		return nil, fmt.Errorf("redemption vault: %w", err)
	}
	if vault.Owner != key || vault.Mint != redemptionMint {
		return nil, ErrVaultMismatch
	}
	return &Redeemer{
		Key:             key,
		IOUMint:         iouMint,
		RedemptionMint:  redemptionMint,
		RedemptionVault: redemptionVault,
	}, nil
}

func (rd *Redeemer) validate(l models.TokenLedger, user, iouSource, destination models.Key) error {
	src, err := l.Account(iouSource)
	if err != nil {
		return err
	}
	if src.Mint != rd.IOUMint {
		return fmt.Errorf("%w: %s holds %s", ErrIOUMintMismatch, iouSource, src.Mint)
	}
	dst, err := l.Account(destination)
	if err != nil {
		return err
	}
	if dst.Owner != user {
		return fmt.Errorf("%w: %s owned by %s", ErrUnauthorized, destination, dst.Owner)
	}
	return nil
}

// RedeemTokens burns amount IOU tokens of user and pays the same amount
// out of the redemption vault
func (rd *Redeemer) RedeemTokens(l models.TokenLedger, user, iouSource, destination models.Key, amount uint64) error {
	if err := rd.validate(l, user, iouSource, destination); err != nil {
		return err
	}
	if err := l.Burn(iouSource, user, amount); err != nil {
		return fmt.Errorf("burn iou: %w", err)
	}
	if err := l.Transfer(rd.RedemptionVault, destination, rd.Key, amount); err != nil {
		return fmt.Errorf("pay redemption: %w", err)
	}
	return nil
}

// RedeemAllTokens redeems the full IOU balance and returns the amount
func (rd *Redeemer) RedeemAllTokens(l models.TokenLedger, user, iouSource, destination models.Key) (uint64, error) {
	src, err := l.Account(iouSource)
	if err != nil {
		return 0, err
	}
	return src.Amount, rd.RedeemTokens(l, user, iouSource, destination, src.Amount)
}

// RedeemTokensFromMintProxy burns amount IOU tokens of user and mints the
// same amount of redemption tokens through the proxy. It returns the
// proxy state with the redeemer's allowance charged.
func (rd *Redeemer) RedeemTokensFromMintProxy(l mintproxy.Ledger, state mintproxy.State, user, iouSource, destination models.Key, amount uint64) (mintproxy.State, error) {
	if state.TokenMint != rd.RedemptionMint {
		return state, ErrProxyMismatch
	}
	if err := rd.validate(l, user, iouSource, destination); err != nil {
		return state, err
	}
	if err := l.Burn(iouSource, user, amount); err != nil {
		return state, fmt.Errorf("burn iou: %w", err)
	}
	return state.PerformMint(l, rd.Key, destination, amount)
}

// RedeemAllTokensFromMintProxy redeems the full IOU balance through the proxy
func (rd *Redeemer) RedeemAllTokensFromMintProxy(l mintproxy.Ledger, state mintproxy.State, user, iouSource, destination models.Key) (mintproxy.State, error) {
	src, err := l.Account(iouSource)
	if err != nil {
		return state, err
	}
	return rd.RedeemTokensFromMintProxy(l, state, user, iouSource, destination, src.Amount)
}
