// Package ledger is an in-memory token ledger with all-or-nothing batches.
//
// Every mutation happens inside Update. Writes are staged on the
// transaction and only reach the ledger when the callback returns nil, so a
// failing batch leaves no trace.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/simon020286/continuation-router/models"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrMintNotFound      = errors.New("mint not found")
	ErrMintExists        = errors.New("mint already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOwnerMismatch     = errors.New("account owner mismatch")
	ErrMintMismatch      = errors.New("account mint mismatch")
	ErrAuthorityMismatch = errors.New("mint authority mismatch")
	ErrOverflow          = errors.New("arithmetic overflow")
	ErrReadOnly          = errors.New("read-only transaction")
)

// Ledger holds mints and token accounts
type Ledger struct {
	mu       sync.Mutex
	accounts map[models.Key]models.TokenAccount
	mints    map[models.Key]models.Mint
}

// New creates an empty ledger
func New() *Ledger {
	return &Ledger{
		accounts: make(map[models.Key]models.TokenAccount),
		mints:    make(map[models.Key]models.Mint),
	}
}

// Update runs fn in a serializable transaction and commits its writes only
// if fn returns nil.
func (l *Ledger) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := newTx(l, false)
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("ledger update aborted: %w", err)
	}
	tx.commit()
	return nil
}

// View runs fn in a read-only transaction
func (l *Ledger) View(fn func(tx *Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(newTx(l, true))
}

// Account returns a copy of an account
func (l *Ledger) Account(key models.Key) (models.TokenAccount, error) {
	var acc models.TokenAccount
	err := l.View(func(tx *Tx) error {
		var err error
		acc, err = tx.Account(key)
		return err
	})
	return acc, err
}

// Mint returns a copy of a mint
func (l *Ledger) Mint(key models.Key) (models.Mint, error) {
	var m models.Mint
	err := l.View(func(tx *Tx) error {
		var err error
		m, err = tx.Mint(key)
		return err
	})
	return m, err
}

// Accounts returns every account sorted by key
func (l *Ledger) Accounts() []models.TokenAccount {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.TokenAccount, 0, len(l.accounts))
	for _, acc := range l.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
