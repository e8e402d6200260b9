package router

import (
	"context"
	"fmt"

	"github.com/simon020286/continuation-router/builder"
	"github.com/simon020286/continuation-router/config"
	"github.com/simon020286/continuation-router/ledger"
	"github.com/simon020286/continuation-router/models"
)

// Plan is a route ready to be executed as one batch
type Plan struct {
	Name    string
	Params  BeginParams
	Actions []models.Action
	// EnsureAccounts are created empty inside the batch, before the route
	// begins, unless they already exist
	EnsureAccounts []models.TokenAccount
}

// BuildPlan builds a plan from a route definition
func BuildPlan(cfg *config.RouteConfig, venues builder.VenueResolver) (*Plan, error) {
	if err := config.ValidateRoute(cfg); err != nil {
		return nil, err
	}

	// Phase 1: create every action through the registry
	actions, err := builder.CreateActions(cfg.Steps, venues)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", cfg.Name, err)
	}

	plan := &Plan{
		Name:    cfg.Name,
		Actions: actions,
		Params: BeginParams{
			Owner:            cfg.Owner,
			Payer:            cfg.EffectivePayer(),
			Input:            cfg.Input,
			Output:           cfg.Output,
			AmountIn:         cfg.AmountIn,
			MinimumAmountOut: cfg.MinimumAmountOut,
			NumSteps:         uint16(len(actions)),
		},
	}

	// Phase 2: collect the output accounts the route may have to create
	seen := make(map[models.Key]bool)
	for _, step := range cfg.Steps {
		if step.OutputMint.IsZero() || seen[step.Output] {
			continue
		}
		seen[step.Output] = true
		plan.EnsureAccounts = append(plan.EnsureAccounts, models.TokenAccount{
			Key:   step.Output,
			Mint:  step.OutputMint,
			Owner: cfg.Owner,
		})
	}
	return plan, nil
}

// SeedLedger creates the mints and accounts of a fixture in one batch
func SeedLedger(ctx context.Context, l *ledger.Ledger, f *config.LedgerFixture) error {
	if f == nil {
		return nil
	}
	return l.Update(ctx, func(tx *ledger.Tx) error {
		for _, m := range f.Mints {
			if err := tx.CreateMint(m); err != nil {
				return fmt.Errorf("mint %s: %w", m.Key, err)
			}
		}
		for _, acc := range f.Accounts {
			if err := tx.CreateAccount(acc); err != nil {
				return fmt.Errorf("account %s: %w", acc.Key, err)
			}
		}
		return nil
	})
}
