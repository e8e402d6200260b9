package models

import "fmt"

// Key identifies an account, a mint or an owner
type Key string

// IsZero reports whether the key is empty
func (k Key) IsZero() bool {
	return k == ""
}

// TokenAmount is an amount of a specific mint
type TokenAmount struct {
	Mint   Key    `json:"mint" yaml:"mint"`
	Amount uint64 `json:"amount" yaml:"amount"`
}

// NewTokenAmount creates a TokenAmount
func NewTokenAmount(mint Key, amount uint64) TokenAmount {
	return TokenAmount{Mint: mint, Amount: amount}
}

func (t TokenAmount) String() string {
	return fmt.Sprintf("%d %s", t.Amount, t.Mint)
}

// TokenAccount holds a balance of one mint on behalf of an owner
type TokenAccount struct {
	Key    Key    `json:"key" yaml:"key"`
	Mint   Key    `json:"mint" yaml:"mint"`
	Owner  Key    `json:"owner" yaml:"owner"`
	Amount uint64 `json:"amount" yaml:"amount"`
}

// Mint describes a token and who may issue it
type Mint struct {
	Key             Key    `json:"key" yaml:"key"`
	Authority       Key    `json:"authority" yaml:"authority"`
	FreezeAuthority Key    `json:"freeze_authority,omitempty" yaml:"freeze_authority,omitempty"`
	Supply          uint64 `json:"supply" yaml:"supply"`
	Decimals        uint8  `json:"decimals" yaml:"decimals"`
}
