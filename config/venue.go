package config

import (
	"fmt"

	"github.com/simon020286/continuation-router/models"
)

// VenueKind selects how a venue definition is built
type VenueKind string

const (
	VenueScriptSwap  VenueKind = "script_swap"
	VenueAddDecimals VenueKind = "add_decimals"
)

// VenueDefinition represents the definition of one venue
type VenueDefinition struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Kind        VenueKind `yaml:"kind"`

	Pool    *PoolDef    `yaml:"pool,omitempty"`
	Wrapper *WrapperDef `yaml:"wrapper,omitempty"`
}

// PoolDef configures a two-token pool whose math is scripted
type PoolDef struct {
	// Authority owns the reserves and issues the LP token
	Authority models.Key `yaml:"authority"`
	ReserveA  models.Key `yaml:"reserve_a"`
	ReserveB  models.Key `yaml:"reserve_b"`
	LPMint    models.Key `yaml:"lp_mint"`

	Curves CurveDef `yaml:"curves"`
}

// CurveDef holds JavaScript expressions for the pool quotes.
// Empty expressions fall back to the built-in constant product curve.
type CurveDef struct {
	Swap        string `yaml:"swap,omitempty"`
	Deposit     string `yaml:"deposit,omitempty"`
	WithdrawOne string `yaml:"withdraw_one,omitempty"`
}

// WrapperDef configures a decimals wrapper
type WrapperDef struct {
	Authority      models.Key `yaml:"authority"`
	UnderlyingMint models.Key `yaml:"underlying_mint"`
	WrappedMint    models.Key `yaml:"wrapped_mint"`
	// Vault holds the underlying tokens and is owned by Authority
	Vault models.Key `yaml:"vault"`
}

// Validate checks the definition shape for its kind
func (vd *VenueDefinition) Validate() error {
	if vd.Name == "" {
		return models.ErrMissingConfig("name")
	}

	switch vd.Kind {
	case VenueScriptSwap:
		if vd.Pool == nil {
			return fmt.Errorf("venue %s: kind %s: %w", vd.Name, vd.Kind, models.ErrMissingConfig("pool"))
		}
		return validatePool(vd.Name, vd.Pool)
	case VenueAddDecimals:
		if vd.Wrapper == nil {
			return fmt.Errorf("venue %s: kind %s: %w", vd.Name, vd.Kind, models.ErrMissingConfig("wrapper"))
		}
		return validateWrapper(vd.Name, vd.Wrapper)
	default:
		return fmt.Errorf("venue %s: unknown kind %q", vd.Name, vd.Kind)
	}
}

func validatePool(name string, p *PoolDef) error {
	if err := requireKeys("pool", []keyField{
		{"authority", p.Authority},
		{"reserve_a", p.ReserveA},
		{"reserve_b", p.ReserveB},
		{"lp_mint", p.LPMint},
	}); err != nil {
		return fmt.Errorf("venue %s: %w", name, err)
	}
	if p.ReserveA == p.ReserveB {
		return fmt.Errorf("venue %s: reserve_a and reserve_b must differ", name)
	}
	return nil
}

func validateWrapper(name string, w *WrapperDef) error {
	if err := requireKeys("wrapper", []keyField{
		{"authority", w.Authority},
		{"underlying_mint", w.UnderlyingMint},
		{"wrapped_mint", w.WrappedMint},
		{"vault", w.Vault},
	}); err != nil {
		return fmt.Errorf("venue %s: %w", name, err)
	}
	if w.UnderlyingMint == w.WrappedMint {
		return fmt.Errorf("venue %s: underlying and wrapped mint must differ", name)
	}
	return nil
}

type keyField struct {
	name  string
	value models.Key
}

// requireKeys reports the first empty field, in order
func requireKeys(section string, fields []keyField) error {
	for _, f := range fields {
		if f.value.IsZero() {
			return models.ErrMissingConfig(section + "." + f.name)
		}
	}
	return nil
}
