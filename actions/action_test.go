package actions

import (
	"errors"
	"fmt"
	"testing"

	"github.com/simon020286/continuation-router/builder"
	"github.com/simon020286/continuation-router/config"
	"github.com/simon020286/continuation-router/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op       string
	code     models.ActionType
	amounts  []uint64
	accounts any
}

type recordingVenue struct {
	calls []call
}

func (v *recordingVenue) Swap(_ *models.ActionContext, accounts models.SwapAccounts, amountIn, minOut uint64) error {
	v.calls = append(v.calls, call{op: "swap", amounts: []uint64{amountIn, minOut}, accounts: accounts})
	return nil
}

func (v *recordingVenue) WithdrawOne(_ *models.ActionContext, accounts models.WithdrawOneAccounts, amountIn, minOut uint64) error {
	v.calls = append(v.calls, call{op: "withdraw_one", amounts: []uint64{amountIn, minOut}, accounts: accounts})
	return nil
}

func (v *recordingVenue) Deposit(_ *models.ActionContext, accounts models.DepositAccounts, a, b, minOut uint64) error {
	v.calls = append(v.calls, call{op: "deposit", amounts: []uint64{a, b, minOut}, accounts: accounts})
	return nil
}

func (v *recordingVenue) ProcessAction(_ *models.ActionContext, code models.ActionType, accounts models.PassThroughAccounts, amountIn, minOut uint64) error {
	v.calls = append(v.calls, call{op: "process_action", code: code, amounts: []uint64{amountIn, minOut}, accounts: accounts})
	return nil
}

type venueMap map[string]*recordingVenue

func (m venueMap) StableSwap(name string) (models.StableSwap, error) {
	if v, ok := m[name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("venue %s not found", name)
}

func (m venueMap) PassThrough(name string) (models.PassThroughProcessor, error) {
	if v, ok := m[name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("venue %s not found", name)
}

func TestDispatch(t *testing.T) {
	venue := &recordingVenue{}
	deposit := models.DepositAccounts{InputA: "a", InputB: "b", OutputLP: "lp"}

	tests := []struct {
		name   string
		build  func() (Action, error)
		input  models.Key
		output models.Key
		want   call
	}{
		{
			name:   "swap",
			build:  func() (Action, error) { return NewSwap(venue, models.SwapAccounts{Input: "in", Output: "out"}) },
			input:  "in",
			output: "out",
			want:   call{op: "swap", amounts: []uint64{50, 40}, accounts: models.SwapAccounts{Input: "in", Output: "out"}},
		},
		{
			name:   "withdraw one",
			build:  func() (Action, error) { return NewWithdrawOne(venue, models.WithdrawOneAccounts{InputLP: "lp", Output: "out"}) },
			input:  "lp",
			output: "out",
			want:   call{op: "withdraw_one", amounts: []uint64{50, 40}, accounts: models.WithdrawOneAccounts{InputLP: "lp", Output: "out"}},
		},
		{
			name:   "deposit a",
			build:  func() (Action, error) { return NewDepositA(venue, deposit) },
			input:  "a",
			output: "lp",
			want:   call{op: "deposit", amounts: []uint64{50, 0, 40}, accounts: deposit},
		},
		{
			name:   "deposit b",
			build:  func() (Action, error) { return NewDepositB(venue, deposit) },
			input:  "b",
			output: "lp",
			want:   call{op: "deposit", amounts: []uint64{0, 50, 40}, accounts: deposit},
		},
		{
			name:   "ad withdraw",
			build:  func() (Action, error) { return NewADWithdraw(venue, models.PassThroughAccounts{Input: "w", Output: "u"}) },
			input:  "w",
			output: "u",
			want: call{op: "process_action", code: models.ActionADWithdraw, amounts: []uint64{50, 40},
				accounts: models.PassThroughAccounts{Input: "w", Output: "u"}},
		},
		{
			name:   "ad deposit",
			build:  func() (Action, error) { return NewADDeposit(venue, models.PassThroughAccounts{Input: "u", Output: "w"}) },
			input:  "u",
			output: "w",
			want: call{op: "process_action", code: models.ActionADDeposit, amounts: []uint64{50, 40},
				accounts: models.PassThroughAccounts{Input: "u", Output: "w"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			venue.calls = nil
			action, err := tc.build()
			require.NoError(t, err)
			assert.Equal(t, tc.input, action.InputAccount())
			assert.Equal(t, tc.output, action.OutputAccount())

			require.NoError(t, action.Process(&models.ActionContext{}, 50, 40))
			require.Len(t, venue.calls, 1)
			assert.Equal(t, tc.want, venue.calls[0])
		})
	}
}

func TestPassThroughCodes(t *testing.T) {
	assert.Equal(t, models.ActionType(10), models.ActionADWithdraw)
	assert.Equal(t, models.ActionType(11), models.ActionADDeposit)
}

func TestValidate(t *testing.T) {
	_, err := NewSwap(nil, models.SwapAccounts{Input: "in", Output: "out"})
	assert.ErrorIs(t, err, models.ErrInvalidAction)

	_, err = NewDepositA(&recordingVenue{}, models.DepositAccounts{InputA: "a", OutputLP: "lp"})
	assert.ErrorIs(t, err, models.ErrInvalidAction)

	_, err = NewADDeposit(&recordingVenue{}, models.PassThroughAccounts{Input: "u"})
	assert.ErrorIs(t, err, models.ErrInvalidAction)

	var zero Action
	assert.ErrorIs(t, zero.Validate(), models.ErrInvalidAction)
	assert.ErrorIs(t, zero.Process(&models.ActionContext{}, 1, 1), models.ErrInvalidAction)

	unknown := Action{kind: models.ActionType(42)}
	assert.False(t, unknown.Type().Valid())
	assert.ErrorIs(t, unknown.Validate(), models.ErrUnknownAction)
	assert.Equal(t, models.Key(""), unknown.InputAccount())
}

func TestRegisteredFactories(t *testing.T) {
	names := builder.ListActionTypes()
	for _, want := range []string{"ad_deposit", "ad_withdraw", "ss_deposit_a", "ss_deposit_b", "ss_swap", "ss_withdraw_one"} {
		assert.Contains(t, names, want)
	}

	venues := venueMap{"pool": &recordingVenue{}}

	action, err := builder.CreateAction(config.StepConfig{
		Action: "ss_deposit_b", Venue: "pool", Input: "b", Counterpart: "a", Output: "lp",
	}, venues)
	require.NoError(t, err)
	assert.Equal(t, models.ActionSSDepositB, action.Type())
	assert.Equal(t, models.Key("b"), action.InputAccount())

	_, err = builder.CreateAction(config.StepConfig{Action: "ss_swap", Venue: "missing", Input: "a", Output: "b"}, venues)
	require.Error(t, err)

	_, err = builder.CreateAction(config.StepConfig{Action: "teleport"}, venues)
	assert.True(t, errors.Is(err, models.ErrUnknownAction))
}
