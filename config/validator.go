package config

import (
	"fmt"

	"github.com/simon020286/continuation-router/models"
)

// ValidateRoute checks a route definition before any plan is built.
// It validates shape only: balances, owners and mints are checked by the
// router against the ledger when the route runs.
func ValidateRoute(cfg *RouteConfig) error {
	if cfg.Owner.IsZero() {
		return fmt.Errorf("route %s: %w", cfg.Name, models.ErrMissingConfig("owner"))
	}
	if cfg.Input.IsZero() {
		return fmt.Errorf("route %s: %w", cfg.Name, models.ErrMissingConfig("input"))
	}
	if cfg.Output.IsZero() {
		return fmt.Errorf("route %s: %w", cfg.Name, models.ErrMissingConfig("output"))
	}
	if cfg.AmountIn == 0 {
		return fmt.Errorf("route %s: %w", cfg.Name, models.NewRouteError(models.KindZeroSwap, "amount_in must be positive"))
	}
	if cfg.MinimumAmountOut.Mint.IsZero() {
		return fmt.Errorf("route %s: %w", cfg.Name, models.ErrMissingConfig("minimum_amount_out.mint"))
	}
	if len(cfg.Steps) > int(^uint16(0)) {
		return fmt.Errorf("route %s: too many steps (%d)", cfg.Name, len(cfg.Steps))
	}

	// Each step must consume what the previous one produced
	expected := cfg.Input
	for i, step := range cfg.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("route %s: step %d: %w", cfg.Name, i, err)
		}
		if step.Input != expected {
			return fmt.Errorf("route %s: step %d: %w", cfg.Name, i,
				models.NewRouteError(models.KindPathInputOutputMismatch, "input %s, previous output %s", step.Input, expected))
		}
		expected = step.Output
	}
	if len(cfg.Steps) > 0 && expected != cfg.Output {
		return fmt.Errorf("route %s: last step writes to %s, route output is %s", cfg.Name, expected, cfg.Output)
	}

	seen := make(map[string]bool, len(cfg.Venues))
	for i := range cfg.Venues {
		if err := cfg.Venues[i].Validate(); err != nil {
			return fmt.Errorf("route %s: %w", cfg.Name, err)
		}
		if seen[cfg.Venues[i].Name] {
			return fmt.Errorf("route %s: venue %s declared twice", cfg.Name, cfg.Venues[i].Name)
		}
		seen[cfg.Venues[i].Name] = true
	}

	if cfg.Ledger != nil {
		if err := validateFixture(cfg.Ledger); err != nil {
			return fmt.Errorf("route %s: ledger: %w", cfg.Name, err)
		}
	}
	return nil
}

// validateStep checks a single step
func validateStep(step StepConfig) error {
	if _, err := models.ParseActionType(step.Action); err != nil {
		return err
	}
	if step.Venue == "" {
		return models.ErrMissingConfig("venue")
	}
	if step.Input.IsZero() || step.Output.IsZero() {
		return models.NewRouteError(models.KindInvalidAction, "input and output are required")
	}
	if step.Input == step.Output {
		return models.NewRouteError(models.KindInvalidAction, "input and output must differ")
	}

	switch step.Action {
	case models.ActionSSDepositA.String(), models.ActionSSDepositB.String():
		if step.Counterpart.IsZero() {
			return models.NewRouteError(models.KindInvalidAction, "%s requires counterpart", step.Action)
		}
	default:
		if !step.Counterpart.IsZero() {
			return models.NewRouteError(models.KindInvalidAction, "%s does not take a counterpart", step.Action)
		}
	}
	return nil
}

// validateFixture checks that accounts reference declared mints
func validateFixture(f *LedgerFixture) error {
	mints := make(map[models.Key]bool, len(f.Mints))
	for _, m := range f.Mints {
		if m.Key.IsZero() {
			return models.ErrMissingConfig("mints.key")
		}
		if mints[m.Key] {
			return fmt.Errorf("mint %s declared twice", m.Key)
		}
		mints[m.Key] = true
	}

	accounts := make(map[models.Key]bool, len(f.Accounts))
	for _, acc := range f.Accounts {
		if acc.Key.IsZero() {
			return models.ErrMissingConfig("accounts.key")
		}
		if acc.Owner.IsZero() {
			return fmt.Errorf("account %s: %w", acc.Key, models.ErrMissingConfig("owner"))
		}
		if accounts[acc.Key] {
			return fmt.Errorf("account %s declared twice", acc.Key)
		}
		if !mints[acc.Mint] {
			return fmt.Errorf("account %s references undeclared mint %s", acc.Key, acc.Mint)
		}
		accounts[acc.Key] = true
	}
	return nil
}
