package ledger

import (
	"fmt"

	"github.com/simon020286/continuation-router/models"
)

// Tx is a staged view over the ledger. It implements models.TokenLedger.
type Tx struct {
	ledger   *Ledger
	readOnly bool
	accounts map[models.Key]models.TokenAccount
	mints    map[models.Key]models.Mint
}

var _ models.TokenLedger = (*Tx)(nil)

func newTx(l *Ledger, readOnly bool) *Tx {
	return &Tx{
		ledger:   l,
		readOnly: readOnly,
		accounts: make(map[models.Key]models.TokenAccount),
		mints:    make(map[models.Key]models.Mint),
	}
}

func (tx *Tx) commit() {
	for k, acc := range tx.accounts {
		tx.ledger.accounts[k] = acc
	}
	for k, m := range tx.mints {
		tx.ledger.mints[k] = m
	}
}

// Account returns the current state of an account, staged writes included
func (tx *Tx) Account(key models.Key) (models.TokenAccount, error) {
	if acc, ok := tx.accounts[key]; ok {
		return acc, nil
	}
	if acc, ok := tx.ledger.accounts[key]; ok {
		return acc, nil
	}
	return models.TokenAccount{}, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
}

// Mint returns the current state of a mint, staged writes included
func (tx *Tx) Mint(key models.Key) (models.Mint, error) {
	if m, ok := tx.mints[key]; ok {
		return m, nil
	}
	if m, ok := tx.ledger.mints[key]; ok {
		return m, nil
	}
	return models.Mint{}, fmt.Errorf("%w: %s", ErrMintNotFound, key)
}

func (tx *Tx) putAccount(acc models.TokenAccount) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	tx.accounts[acc.Key] = acc
	return nil
}

func (tx *Tx) putMint(m models.Mint) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	tx.mints[m.Key] = m
	return nil
}

// CreateMint registers a new mint. Supply starts at the given value.
func (tx *Tx) CreateMint(m models.Mint) error {
	if m.Key.IsZero() {
		return fmt.Errorf("mint key is required")
	}
	if _, err := tx.Mint(m.Key); err == nil {
		return fmt.Errorf("%w: %s", ErrMintExists, m.Key)
	}
	return tx.putMint(m)
}

// CreateAccount registers a new token account for an existing mint.
// A non-zero opening balance is added to the mint supply.
func (tx *Tx) CreateAccount(acc models.TokenAccount) error {
	if acc.Key.IsZero() {
		return fmt.Errorf("account key is required")
	}
	if _, err := tx.Account(acc.Key); err == nil {
		return fmt.Errorf("%w: %s", ErrAccountExists, acc.Key)
	}
	m, err := tx.Mint(acc.Mint)
	if err != nil {
		return err
	}
	if acc.Amount > 0 {
		supply := m.Supply + acc.Amount
		if supply < m.Supply {
			return fmt.Errorf("%w: supply of %s", ErrOverflow, m.Key)
		}
		m.Supply = supply
		if err := tx.putMint(m); err != nil {
			return err
		}
	}
	return tx.putAccount(acc)
}

// EnsureAccount creates an empty account if it does not exist yet.
// An existing account must match mint and owner.
func (tx *Tx) EnsureAccount(key, mint, owner models.Key) (bool, error) {
	acc, err := tx.Account(key)
	if err == nil {
		if acc.Mint != mint {
			return false, fmt.Errorf("%w: %s holds %s, want %s", ErrMintMismatch, key, acc.Mint, mint)
		}
		if acc.Owner != owner {
			return false, fmt.Errorf("%w: %s owned by %s, want %s", ErrOwnerMismatch, key, acc.Owner, owner)
		}
		return false, nil
	}
	if err := tx.CreateAccount(models.TokenAccount{Key: key, Mint: mint, Owner: owner}); err != nil {
		return false, err
	}
	return true, nil
}

// Transfer moves amount between two accounts of the same mint.
// authority must own the source account.
func (tx *Tx) Transfer(from, to, authority models.Key, amount uint64) error {
	src, err := tx.Account(from)
	if err != nil {
		return err
	}
	dst, err := tx.Account(to)
	if err != nil {
		return err
	}
	if src.Owner != authority {
		return fmt.Errorf("%w: %s owned by %s, signed by %s", ErrOwnerMismatch, from, src.Owner, authority)
	}
	if src.Mint != dst.Mint {
		return fmt.Errorf("%w: %s -> %s", ErrMintMismatch, src.Mint, dst.Mint)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, from, src.Amount, amount)
	}
	if from == to {
		return nil
	}
	credited := dst.Amount + amount
	if credited < dst.Amount {
		return fmt.Errorf("%w: crediting %s", ErrOverflow, to)
	}
	src.Amount -= amount
	dst.Amount = credited
	if err := tx.putAccount(src); err != nil {
		return err
	}
	return tx.putAccount(dst)
}

// MintTo issues new tokens into an account
func (tx *Tx) MintTo(mint, to, authority models.Key, amount uint64) error {
	m, err := tx.Mint(mint)
	if err != nil {
		return err
	}
	if m.Authority != authority {
		return fmt.Errorf("%w: %s", ErrAuthorityMismatch, mint)
	}
	dst, err := tx.Account(to)
	if err != nil {
		return err
	}
	if dst.Mint != mint {
		return fmt.Errorf("%w: %s holds %s", ErrMintMismatch, to, dst.Mint)
	}
	supply := m.Supply + amount
	if supply < m.Supply {
		return fmt.Errorf("%w: supply of %s", ErrOverflow, mint)
	}
	balance := dst.Amount + amount
	if balance < dst.Amount {
		return fmt.Errorf("%w: crediting %s", ErrOverflow, to)
	}
	m.Supply = supply
	dst.Amount = balance
	if err := tx.putMint(m); err != nil {
		return err
	}
	return tx.putAccount(dst)
}

// Burn destroys tokens held by an account. authority must own it.
func (tx *Tx) Burn(account, authority models.Key, amount uint64) error {
	acc, err := tx.Account(account)
	if err != nil {
		return err
	}
	if acc.Owner != authority {
		return fmt.Errorf("%w: %s owned by %s, signed by %s", ErrOwnerMismatch, account, acc.Owner, authority)
	}
	if acc.Amount < amount {
		return fmt.Errorf("%w: %s has %d, burns %d", ErrInsufficientFunds, account, acc.Amount, amount)
	}
	m, err := tx.Mint(acc.Mint)
	if err != nil {
		return err
	}
	if m.Supply < amount {
		return fmt.Errorf("%w: supply of %s below burn", ErrOverflow, m.Key)
	}
	acc.Amount -= amount
	m.Supply -= amount
	if err := tx.putMint(m); err != nil {
		return err
	}
	return tx.putAccount(acc)
}

// SetMintAuthority hands the mint authority over to next
func (tx *Tx) SetMintAuthority(mint, current, next models.Key) error {
	m, err := tx.Mint(mint)
	if err != nil {
		return err
	}
	if m.Authority != current {
		return fmt.Errorf("%w: %s", ErrAuthorityMismatch, mint)
	}
	m.Authority = next
	return tx.putMint(m)
}
