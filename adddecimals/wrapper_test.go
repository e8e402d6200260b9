package adddecimals

import (
	"context"
	"testing"

	"github.com/simon020286/continuation-router/ledger"
	"github.com/simon020286/continuation-router/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{
	Authority:      "wrapper",
	UnderlyingMint: "usdc",
	WrappedMint:    "wusdc",
	Vault:          "wrapper-usdc",
}

func newTestLedger(t *testing.T, underlyingDecimals, wrappedDecimals uint8) *ledger.Ledger {
	t.Helper()
	l := ledger.New()
	err := l.Update(context.Background(), func(tx *ledger.Tx) error {
		mints := []models.Mint{
			{Key: "usdc", Authority: "issuer", Decimals: underlyingDecimals},
			{Key: "wusdc", Authority: "wrapper", Decimals: wrappedDecimals},
		}
		for _, m := range mints {
			if err := tx.CreateMint(m); err != nil {
				return err
			}
		}
		accounts := []models.TokenAccount{
			{Key: "wrapper-usdc", Mint: "usdc", Owner: "wrapper"},
			{Key: "alice-usdc", Mint: "usdc", Owner: "alice", Amount: 5000},
			{Key: "alice-wusdc", Mint: "wusdc", Owner: "alice"},
		}
		for _, acc := range accounts {
			if err := tx.CreateAccount(acc); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return l
}

func TestMultiplier(t *testing.T) {
	m, err := Multiplier(6, 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), m)

	m, err = Multiplier(6, 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m)

	m, err = Multiplier(0, 19)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000_000_000_000_000), m)

	_, err = Multiplier(0, 20)
	assert.ErrorIs(t, err, ErrMultiplierOverflow)

	_, err = Multiplier(9, 6)
	assert.ErrorIs(t, err, ErrDecimalsTooLow)
}

func TestInitialize(t *testing.T) {
	l := newTestLedger(t, 6, 9)
	w, err := Initialize(l, testConfig)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), w.Multiplier)
	assert.Equal(t, uint8(9), w.Decimals)

	bad := testConfig
	bad.Authority = "mallory"
	_, err = Initialize(l, bad)
	assert.ErrorIs(t, err, ErrVaultOwnerMismatch)

	low := newTestLedger(t, 9, 6)
	_, err = Initialize(low, testConfig)
	assert.ErrorIs(t, err, ErrDecimalsTooLow)
}

func TestInitializeRequiresFreshWrapper(t *testing.T) {
	l := newTestLedger(t, 6, 9)
	w, err := Initialize(l, testConfig)
	require.NoError(t, err)

	err = l.Update(context.Background(), func(tx *ledger.Tx) error {
		_, err := w.Deposit(tx, "alice", "alice-usdc", "alice-wusdc", 10)
		return err
	})
	require.NoError(t, err)

	_, err = Initialize(l, testConfig)
	assert.ErrorIs(t, err, ErrNonEmptyVault)

	_, err = New(l, testConfig)
	assert.NoError(t, err)
}

func TestRoundTrip(t *testing.T) {
	w := &Wrapper{Multiplier: 1000}
	for _, amount := range []uint64{0, 1, 999, 1000, 123_456_789, ^uint64(0) / 1000} {
		wrapped, ok := w.ToWrapped(amount)
		require.True(t, ok, "amount %d", amount)
		assert.Equal(t, amount, w.ToUnderlying(wrapped))
	}

	_, ok := w.ToWrapped(^uint64(0))
	assert.False(t, ok)
}

func TestDepositAndWithdraw(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, 6, 9)
	w, err := Initialize(l, testConfig)
	require.NoError(t, err)

	var minted uint64
	err = l.Update(ctx, func(tx *ledger.Tx) error {
		minted, err = w.Deposit(tx, "alice", "alice-usdc", "alice-wusdc", 2001)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2_001_000), minted)

	var full, partial Withdrawal
	err = l.Update(ctx, func(tx *ledger.Tx) error {
		if full, err = w.Withdraw(tx, "alice", "alice-usdc", "alice-wusdc", 1_000_000); err != nil {
			return err
		}
		partial, err = w.Withdraw(tx, "alice", "alice-usdc", "alice-wusdc", 1_000_500)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, Withdrawal{Withdraw: 1000, Burn: 1_000_000, Dust: 0}, full)
	assert.Equal(t, Withdrawal{Withdraw: 1000, Burn: 1_000_000, Dust: 500}, partial)

	wrapped, err := l.Account("alice-wusdc")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), wrapped.Amount)
	underlying, err := l.Account("alice-usdc")
	require.NoError(t, err)
	assert.Equal(t, uint64(4999), underlying.Amount)
	vault, err := l.Account("wrapper-usdc")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), vault.Amount)
	mint, err := l.Mint("wusdc")
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), mint.Supply)
}

func TestDepositScalesByMultiplier(t *testing.T) {
	l := newTestLedger(t, 6, 9)
	w, err := Initialize(l, testConfig)
	require.NoError(t, err)

	err = l.Update(context.Background(), func(tx *ledger.Tx) error {
		minted, err := w.Deposit(tx, "alice", "alice-usdc", "alice-wusdc", 1000)
		require.NoError(t, err)
		assert.Equal(t, uint64(1_000_000), minted)
		return nil
	})
	require.NoError(t, err)
}

func TestWithdrawAll(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, 6, 9)
	w, err := Initialize(l, testConfig)
	require.NoError(t, err)

	err = l.Update(ctx, func(tx *ledger.Tx) error {
		if _, err := w.Deposit(tx, "alice", "alice-usdc", "alice-wusdc", 3); err != nil {
			return err
		}
		out, err := w.WithdrawAll(tx, "alice", "alice-usdc", "alice-wusdc")
		if err != nil {
			return err
		}
		assert.Equal(t, Withdrawal{Withdraw: 3, Burn: 3000}, out)
		return nil
	})
	require.NoError(t, err)
}

func TestRejections(t *testing.T) {
	l := newTestLedger(t, 6, 9)
	w, err := Initialize(l, testConfig)
	require.NoError(t, err)

	err = l.Update(context.Background(), func(tx *ledger.Tx) error {
		_, err := w.Deposit(tx, "alice", "alice-usdc", "alice-wusdc", 0)
		assert.ErrorIs(t, err, ErrZeroAmount)

		_, err = w.Deposit(tx, "alice", "alice-usdc", "alice-wusdc", 5001)
		assert.ErrorIs(t, err, ErrInsufficientUnderlying)

		_, err = w.Withdraw(tx, "alice", "alice-usdc", "alice-wusdc", 0)
		assert.ErrorIs(t, err, ErrZeroAmount)

		_, err = w.Withdraw(tx, "alice", "alice-usdc", "alice-wusdc", 1)
		assert.ErrorIs(t, err, ErrInsufficientWrapped)

		_, err = w.Deposit(tx, "bob", "alice-usdc", "alice-wusdc", 1)
		assert.ErrorIs(t, err, ErrUserAccountMismatch)

		_, err = w.Deposit(tx, "alice", "alice-wusdc", "alice-usdc", 1)
		assert.ErrorIs(t, err, ErrUserAccountMismatch)
		return nil
	})
	require.NoError(t, err)
}

func TestProcessAction(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, 6, 9)
	w, err := Initialize(l, testConfig)
	require.NoError(t, err)

	err = l.Update(ctx, func(tx *ledger.Tx) error {
		actx := &models.ActionContext{Context: ctx, Ledger: tx, Owner: "alice"}

		deposit := models.PassThroughAccounts{Input: "alice-usdc", Output: "alice-wusdc"}
		require.NoError(t, w.ProcessAction(actx, models.ActionADDeposit, deposit, 10, 10_000))

		withdraw := models.PassThroughAccounts{Input: "alice-wusdc", Output: "alice-usdc"}
		require.NoError(t, w.ProcessAction(actx, models.ActionADWithdraw, withdraw, 5000, 5))

		err := w.ProcessAction(actx, models.ActionADWithdraw, withdraw, 5000, 6)
		assert.ErrorIs(t, err, models.ErrMinimumOutNotMet)

		err = w.ProcessAction(actx, models.ActionSSSwap, deposit, 1, 0)
		assert.ErrorIs(t, err, models.ErrUnknownAction)
		return nil
	})
	require.NoError(t, err)
}
