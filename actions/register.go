package actions

import (
	"github.com/simon020286/continuation-router/builder"
	"github.com/simon020286/continuation-router/config"
	"github.com/simon020286/continuation-router/models"
)

func init() {
	builder.RegisterActionType(models.ActionSSSwap.String(), func(step config.StepConfig, venues builder.VenueResolver) (models.Action, error) {
		venue, err := venues.StableSwap(step.Venue)
		if err != nil {
			return nil, err
		}
		return NewSwap(venue, models.SwapAccounts{Input: step.Input, Output: step.Output})
	})

	builder.RegisterActionType(models.ActionSSWithdrawOne.String(), func(step config.StepConfig, venues builder.VenueResolver) (models.Action, error) {
		venue, err := venues.StableSwap(step.Venue)
		if err != nil {
			return nil, err
		}
		return NewWithdrawOne(venue, models.WithdrawOneAccounts{InputLP: step.Input, Output: step.Output})
	})

	builder.RegisterActionType(models.ActionSSDepositA.String(), func(step config.StepConfig, venues builder.VenueResolver) (models.Action, error) {
		venue, err := venues.StableSwap(step.Venue)
		if err != nil {
			return nil, err
		}
		return NewDepositA(venue, models.DepositAccounts{InputA: step.Input, InputB: step.Counterpart, OutputLP: step.Output})
	})

	builder.RegisterActionType(models.ActionSSDepositB.String(), func(step config.StepConfig, venues builder.VenueResolver) (models.Action, error) {
		venue, err := venues.StableSwap(step.Venue)
		if err != nil {
			return nil, err
		}
		return NewDepositB(venue, models.DepositAccounts{InputA: step.Counterpart, InputB: step.Input, OutputLP: step.Output})
	})

	builder.RegisterActionType(models.ActionADWithdraw.String(), func(step config.StepConfig, venues builder.VenueResolver) (models.Action, error) {
		venue, err := venues.PassThrough(step.Venue)
		if err != nil {
			return nil, err
		}
		return NewADWithdraw(venue, models.PassThroughAccounts{Input: step.Input, Output: step.Output})
	})

	builder.RegisterActionType(models.ActionADDeposit.String(), func(step config.StepConfig, venues builder.VenueResolver) (models.Action, error) {
		venue, err := venues.PassThrough(step.Venue)
		if err != nil {
			return nil, err
		}
		return NewADDeposit(venue, models.PassThroughAccounts{Input: step.Input, Output: step.Output})
	})
}
