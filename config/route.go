package config

import (
	"fmt"
	"os"

	"github.com/simon020286/continuation-router/models"
	"gopkg.in/yaml.v3"
)

// RouteConfig represents a complete route definition from YAML
type RouteConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	Owner models.Key `yaml:"owner"`
	// Payer funds the continuation, defaults to Owner
	Payer models.Key `yaml:"payer,omitempty"`

	Input            models.Key         `yaml:"input"`
	Output           models.Key         `yaml:"output"`
	AmountIn         uint64             `yaml:"amount_in"`
	MinimumAmountOut models.TokenAmount `yaml:"minimum_amount_out"`

	Steps []StepConfig `yaml:"steps"`

	// Venues declared inline, in addition to the ones loaded from disk
	Venues []VenueDefinition `yaml:"venues,omitempty"`
	// Ledger seeds mints and accounts before the route runs
	Ledger *LedgerFixture `yaml:"ledger,omitempty"`
}

// StepConfig represents one action of a route
type StepConfig struct {
	Action string     `yaml:"action"` // Registered action name, e.g. ss_swap
	Venue  string     `yaml:"venue"`  // Name of the venue the action runs against
	Input  models.Key `yaml:"input"`
	Output models.Key `yaml:"output"`
	// Counterpart is the other pool token account of a one-sided deposit
	Counterpart models.Key `yaml:"counterpart,omitempty"`
	// OutputMint creates Output for the owner if it does not exist yet
	OutputMint models.Key `yaml:"output_mint,omitempty"`
}

// LedgerFixture describes the initial state of an in-memory ledger
type LedgerFixture struct {
	Mints    []models.Mint         `yaml:"mints"`
	Accounts []models.TokenAccount `yaml:"accounts"`
}

// EffectivePayer returns Payer, or Owner when no payer is set
func (r *RouteConfig) EffectivePayer() models.Key {
	if r.Payer.IsZero() {
		return r.Owner
	}
	return r.Payer
}

// ParseRoute decodes a route definition
func ParseRoute(data []byte) (*RouteConfig, error) {
	var cfg RouteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

// LoadRoute reads and decodes a route definition file
func LoadRoute(path string) (*RouteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route file %s: %w", path, err)
	}
	cfg, err := ParseRoute(data)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", path, err)
	}
	return cfg, nil
}
