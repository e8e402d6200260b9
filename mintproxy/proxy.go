// Package mintproxy manages minting of a capped token through a proxy
// authority.
//
// State is a plain value passed explicitly to every operation. Operations
// never modify their receiver: each mutation returns a new State with
// Version incremented, so callers can persist it with a compare-and-swap.
package mintproxy

import (
	"errors"
	"fmt"

	"github.com/simon020286/continuation-router/models"
)

var (
	ErrUnauthorized            = errors.New("not authorized to perform this action")
	ErrHardcapExceeded         = errors.New("cannot mint over hard cap")
	ErrInvalidFreezeAuthority  = errors.New("token mint has a freeze authority")
	ErrInvalidProxyAuthority   = errors.New("invalid proxy authority")
	ErrPendingOwnerMismatch    = errors.New("signer is not the pending owner")
	ErrMinterAllowanceExceeded = errors.New("minter allowance exceeded")
	ErrMinterExists            = errors.New("minter already registered")
	ErrMinterNotFound          = errors.New("minter not registered")
)

// Ledger is what the proxy needs from the token ledger
type Ledger interface {
	models.TokenLedger
	SetMintAuthority(mint, current, next models.Key) error
}

// State is the mint proxy configuration
type State struct {
	Version        uint64
	HardCap        uint64
	Owner          models.Key
	PendingOwner   models.Key
	TokenMint      models.Key
	ProxyAuthority models.Key
	// Minters maps each minter to its remaining allowance
	Minters map[models.Key]uint64
}

// next returns a copy of s with an independent Minters map and Version+1
func (s State) next() State {
	minters := make(map[models.Key]uint64, len(s.Minters))
	for k, v := range s.Minters {
		minters[k] = v
	}
	s.Minters = minters
	s.Version++
	return s
}

func (s State) onlyOwner(signer models.Key) error {
	if signer.IsZero() || signer != s.Owner {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, signer)
	}
	return nil
}

// Allowance returns the remaining allowance of a minter
func (s State) Allowance(minter models.Key) (uint64, bool) {
	allowance, ok := s.Minters[minter]
	return allowance, ok
}

// Initialize hands the mint authority of tokenMint over to proxyAuthority.
// mintAuthority must be the current authority and the mint must not have a
// freeze authority.
func Initialize(l Ledger, tokenMint, mintAuthority, proxyAuthority, owner models.Key, hardCap uint64) (State, error) {
	if proxyAuthority.IsZero() {
		return State{}, ErrInvalidProxyAuthority
	}
	if owner.IsZero() {
		return State{}, fmt.Errorf("%w: owner is required", ErrUnauthorized)
	}
	mint, err := l.Mint(tokenMint)
	if err != nil {
		return State{}, err
	}
	if !mint.FreezeAuthority.IsZero() {
		return State{}, ErrInvalidFreezeAuthority
	}
	if err := l.SetMintAuthority(tokenMint, mintAuthority, proxyAuthority); err != nil {
		return State{}, fmt.Errorf("set mint authority: %w", err)
	}
	return State{
		Version:        1,
		HardCap:        hardCap,
		Owner:          owner,
		TokenMint:      tokenMint,
		ProxyAuthority: proxyAuthority,
		Minters:        map[models.Key]uint64{},
	}, nil
}

// TransferOwnership nominates nextOwner; it takes effect on AcceptOwnership
func (s State) TransferOwnership(signer, nextOwner models.Key) (State, error) {
	if err := s.onlyOwner(signer); err != nil {
		return s, err
	}
	out := s.next()
	out.PendingOwner = nextOwner
	return out, nil
}

// AcceptOwnership completes a transfer; only the pending owner may call it
func (s State) AcceptOwnership(signer models.Key) (State, error) {
	if s.PendingOwner.IsZero() || signer != s.PendingOwner {
		return s, ErrPendingOwnerMismatch
	}
	out := s.next()
	out.Owner = s.PendingOwner
	out.PendingOwner = ""
	return out, nil
}

// MinterAdd registers a minter with an allowance
func (s State) MinterAdd(signer, minter models.Key, allowance uint64) (State, error) {
	if err := s.onlyOwner(signer); err != nil {
		return s, err
	}
	if _, exists := s.Minters[minter]; exists {
		return s, fmt.Errorf("%w: %s", ErrMinterExists, minter)
	}
	out := s.next()
	out.Minters[minter] = allowance
	return out, nil
}

// MinterUpdate replaces the allowance of a registered minter
func (s State) MinterUpdate(signer, minter models.Key, allowance uint64) (State, error) {
	if err := s.onlyOwner(signer); err != nil {
		return s, err
	}
	if _, exists := s.Minters[minter]; !exists {
		return s, fmt.Errorf("%w: %s", ErrMinterNotFound, minter)
	}
	out := s.next()
	out.Minters[minter] = allowance
	return out, nil
}

// MinterRemove unregisters a minter
func (s State) MinterRemove(signer, minter models.Key) (State, error) {
	if err := s.onlyOwner(signer); err != nil {
		return s, err
	}
	if _, exists := s.Minters[minter]; !exists {
		return s, fmt.Errorf("%w: %s", ErrMinterNotFound, minter)
	}
	out := s.next()
	delete(out.Minters, minter)
	return out, nil
}

// PerformMint mints amount into destination on behalf of minter and
// charges its allowance. The mint supply may never exceed HardCap.
func (s State) PerformMint(l Ledger, minter, destination models.Key, amount uint64) (State, error) {
	allowance, ok := s.Minters[minter]
	if !ok {
		return s, fmt.Errorf("%w: %s is not a minter", ErrUnauthorized, minter)
	}
	if allowance < amount {
		return s, fmt.Errorf("%w: %s has %d, mints %d", ErrMinterAllowanceExceeded, minter, allowance, amount)
	}

	mint, err := l.Mint(s.TokenMint)
	if err != nil {
		return s, err
	}
	supply := mint.Supply + amount
	if supply < mint.Supply || supply > s.HardCap {
		return s, fmt.Errorf("%w: supply %d + %d, cap %d", ErrHardcapExceeded, mint.Supply, amount, s.HardCap)
	}

	if err := l.MintTo(s.TokenMint, destination, s.ProxyAuthority, amount); err != nil {
		return s, fmt.Errorf("mint: %w", err)
	}
	out := s.next()
	out.Minters[minter] = allowance - amount
	return out, nil
}

// SetMintAuthority gives the mint authority away from the proxy
func (s State) SetMintAuthority(l Ledger, signer, newAuthority models.Key) error {
	if err := s.onlyOwner(signer); err != nil {
		return err
	}
	return l.SetMintAuthority(s.TokenMint, s.ProxyAuthority, newAuthority)
}
