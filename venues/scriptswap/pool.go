// Package scriptswap implements a two-token pool whose quotes are
// JavaScript expressions.
//
// The pool only moves balances. How much a swap, a deposit or a single
// sided withdrawal pays out is decided by the configured curve, evaluated
// with goja in a fresh runtime on every call.
package scriptswap

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dop251/goja"
	"github.com/simon020286/continuation-router/models"
	"go.uber.org/zap"
)

// Built-in curves used when a pool does not configure its own.
const (
	DefaultSwapCurve        = "Math.floor(amount_in * reserve_out / (reserve_in + amount_in))"
	DefaultDepositCurve     = "lp_supply == 0 ? amount_a + amount_b : Math.floor(lp_supply * (amount_a + amount_b) / (reserve_a + reserve_b))"
	DefaultWithdrawOneCurve = "Math.min(reserve_out, Math.floor(pool_tokens * (reserve_out + reserve_other) / lp_supply))"
)

var (
	ErrMintMismatch          = errors.New("account mint does not belong to the pool")
	ErrReserveOwnerMismatch  = errors.New("pool reserve is not owned by the pool authority")
	ErrLPAuthorityMismatch   = errors.New("lp mint authority is not the pool authority")
	ErrSameMint              = errors.New("pool reserves hold the same mint")
	ErrZeroAmount            = errors.New("cannot trade zero tokens")
	ErrZeroOutput            = errors.New("curve quoted zero tokens")
	ErrInsufficientLiquidity = errors.New("pool reserve cannot cover the quote")
	ErrInvalidQuote          = errors.New("curve returned an invalid quote")
	ErrEmptyPool             = errors.New("pool has no liquidity tokens outstanding")
	ErrCurveCompile          = errors.New("curve does not compile")
)

// AccountReader is the read side of a token ledger
type AccountReader interface {
	Account(key models.Key) (models.TokenAccount, error)
	Mint(key models.Key) (models.Mint, error)
}

// Curves holds the quote expressions of a pool
type Curves struct {
	Swap        string
	Deposit     string
	WithdrawOne string
}

// Config names the accounts of a pool
type Config struct {
	Authority models.Key
	ReserveA  models.Key
	ReserveB  models.Key
	LPMint    models.Key
	Curves    Curves
}

// Pool is a scripted two-token pool
type Pool struct {
	Name string
	Config
	MintA models.Key
	MintB models.Key

	swap        curve
	deposit     curve
	withdrawOne curve
}

type curve struct {
	name    string
	program *goja.Program
}

var _ models.StableSwap = (*Pool)(nil)

// New loads a pool whose reserves and lp mint already exist in the ledger
// and compiles its curves
func New(r AccountReader, name string, cfg Config) (*Pool, error) {
	reserveA, err := r.Account(cfg.ReserveA)
	if err != nil {
		return nil, fmt.Errorf("reserve a: %w", err)
	}
	reserveB, err := r.Account(cfg.ReserveB)
	if err != nil {
		return nil, fmt.Errorf("reserve b: %w", err)
	}
	if reserveA.Owner != cfg.Authority || reserveB.Owner != cfg.Authority {
		return nil, ErrReserveOwnerMismatch
	}
	if reserveA.Mint == reserveB.Mint {
		return nil, ErrSameMint
	}
	lp, err := r.Mint(cfg.LPMint)
	if err != nil {
		return nil, fmt.Errorf("lp mint: %w", err)
	}
	if lp.Authority != cfg.Authority {
		return nil, ErrLPAuthorityMismatch
	}

	p := &Pool{Name: name, Config: cfg, MintA: reserveA.Mint, MintB: reserveB.Mint}
	if p.swap, err = compile(name+".swap", cfg.Curves.Swap, DefaultSwapCurve); err != nil {
		return nil, err
	}
	if p.deposit, err = compile(name+".deposit", cfg.Curves.Deposit, DefaultDepositCurve); err != nil {
		return nil, err
	}
	if p.withdrawOne, err = compile(name+".withdraw_one", cfg.Curves.WithdrawOne, DefaultWithdrawOneCurve); err != nil {
		return nil, err
	}
	return p, nil
}

func compile(name, expression, fallback string) (curve, error) {
	if expression == "" {
		expression = fallback
	}
	wrappedCode := "(function() {\n return " + expression + "\n})()"
	prog, err := goja.Compile(name, wrappedCode, true)
	if err != nil {
		return curve{}, fmt.Errorf("%w: %s: %v", ErrCurveCompile, name, err)
	}
	return curve{name: name, program: prog}, nil
}

// reserves returns the reserve holding mint and the opposite one
func (p *Pool) reserves(mint models.Key) (in, out models.Key, err error) {
	switch mint {
	case p.MintA:
		return p.ReserveA, p.ReserveB, nil
	case p.MintB:
		return p.ReserveB, p.ReserveA, nil
	default:
		return "", "", fmt.Errorf("%w: %s is not traded by %s", ErrMintMismatch, mint, p.Name)
	}
}

// Swap trades amountIn of the input mint for the other pool mint
func (p *Pool) Swap(actx *models.ActionContext, accounts models.SwapAccounts, amountIn, minimumAmountOut uint64) error {
	if amountIn == 0 {
		return ErrZeroAmount
	}
	l := actx.Ledger
	input, err := l.Account(accounts.Input)
	if err != nil {
		return err
	}
	output, err := l.Account(accounts.Output)
	if err != nil {
		return err
	}
	reserveIn, reserveOut, err := p.reserves(input.Mint)
	if err != nil {
		return err
	}
	rin, err := l.Account(reserveIn)
	if err != nil {
		return err
	}
	rout, err := l.Account(reserveOut)
	if err != nil {
		return err
	}
	if output.Mint != rout.Mint {
		return fmt.Errorf("%w: output holds %s, swap pays %s", ErrMintMismatch, output.Mint, rout.Mint)
	}

	amountOut, err := p.quote(actx.Context, p.swap, map[string]uint64{
		"amount_in":   amountIn,
		"reserve_in":  rin.Amount,
		"reserve_out": rout.Amount,
	})
	if err != nil {
		return err
	}
	if err := p.checkOut(amountOut, rout.Amount, minimumAmountOut); err != nil {
		return err
	}

	if err := l.Transfer(accounts.Input, reserveIn, actx.Owner, amountIn); err != nil {
		return fmt.Errorf("swap in: %w", err)
	}
	if err := l.Transfer(reserveOut, accounts.Output, p.Authority, amountOut); err != nil {
		return fmt.Errorf("swap out: %w", err)
	}
	logger(actx).Debug("pool swap",
		zap.String("pool", p.Name),
		zap.String("mint_in", string(input.Mint)),
		zap.Uint64("amount_in", amountIn),
		zap.Uint64("amount_out", amountOut),
	)
	return nil
}

// Deposit adds liquidity and mints lp tokens to OutputLP. One of the two
// amounts may be zero.
func (p *Pool) Deposit(actx *models.ActionContext, accounts models.DepositAccounts, amountA, amountB, minimumPoolTokens uint64) error {
	if amountA == 0 && amountB == 0 {
		return ErrZeroAmount
	}
	l := actx.Ledger
	if err := p.expectMint(l, accounts.InputA, p.MintA); err != nil {
		return err
	}
	if err := p.expectMint(l, accounts.InputB, p.MintB); err != nil {
		return err
	}
	if err := p.expectMint(l, accounts.OutputLP, p.LPMint); err != nil {
		return err
	}
	ra, err := l.Account(p.ReserveA)
	if err != nil {
		return err
	}
	rb, err := l.Account(p.ReserveB)
	if err != nil {
		return err
	}
	lp, err := l.Mint(p.LPMint)
	if err != nil {
		return err
	}

	poolTokens, err := p.quote(actx.Context, p.deposit, map[string]uint64{
		"amount_a":  amountA,
		"amount_b":  amountB,
		"reserve_a": ra.Amount,
		"reserve_b": rb.Amount,
		"lp_supply": lp.Supply,
	})
	if err != nil {
		return err
	}
	if err := p.checkOut(poolTokens, math.MaxUint64, minimumPoolTokens); err != nil {
		return err
	}

	if amountA > 0 {
		if err := l.Transfer(accounts.InputA, p.ReserveA, actx.Owner, amountA); err != nil {
			return fmt.Errorf("deposit a: %w", err)
		}
	}
	if amountB > 0 {
		if err := l.Transfer(accounts.InputB, p.ReserveB, actx.Owner, amountB); err != nil {
			return fmt.Errorf("deposit b: %w", err)
		}
	}
	if err := l.MintTo(p.LPMint, accounts.OutputLP, p.Authority, poolTokens); err != nil {
		return fmt.Errorf("mint lp: %w", err)
	}
	logger(actx).Debug("pool deposit",
		zap.String("pool", p.Name),
		zap.Uint64("amount_a", amountA),
		zap.Uint64("amount_b", amountB),
		zap.Uint64("pool_tokens", poolTokens),
	)
	return nil
}

// WithdrawOne burns lp tokens and pays out a single pool mint
func (p *Pool) WithdrawOne(actx *models.ActionContext, accounts models.WithdrawOneAccounts, poolTokenAmount, minimumAmountOut uint64) error {
	if poolTokenAmount == 0 {
		return ErrZeroAmount
	}
	l := actx.Ledger
	if err := p.expectMint(l, accounts.InputLP, p.LPMint); err != nil {
		return err
	}
	output, err := l.Account(accounts.Output)
	if err != nil {
		return err
	}
	reserveOut, reserveOther, err := p.reserves(output.Mint)
	if err != nil {
		return err
	}
	rout, err := l.Account(reserveOut)
	if err != nil {
		return err
	}
	rother, err := l.Account(reserveOther)
	if err != nil {
		return err
	}
	lp, err := l.Mint(p.LPMint)
	if err != nil {
		return err
	}
	if lp.Supply == 0 {
		return ErrEmptyPool
	}

	amountOut, err := p.quote(actx.Context, p.withdrawOne, map[string]uint64{
		"pool_tokens":   poolTokenAmount,
		"reserve_out":   rout.Amount,
		"reserve_other": rother.Amount,
		"lp_supply":     lp.Supply,
	})
	if err != nil {
		return err
	}
	if err := p.checkOut(amountOut, rout.Amount, minimumAmountOut); err != nil {
		return err
	}

	if err := l.Burn(accounts.InputLP, actx.Owner, poolTokenAmount); err != nil {
		return fmt.Errorf("burn lp: %w", err)
	}
	if err := l.Transfer(reserveOut, accounts.Output, p.Authority, amountOut); err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	logger(actx).Debug("pool withdraw one",
		zap.String("pool", p.Name),
		zap.String("mint_out", string(output.Mint)),
		zap.Uint64("pool_tokens", poolTokenAmount),
		zap.Uint64("amount_out", amountOut),
	)
	return nil
}

func (p *Pool) expectMint(l models.TokenLedger, key, mint models.Key) error {
	acc, err := l.Account(key)
	if err != nil {
		return err
	}
	if acc.Mint != mint {
		return fmt.Errorf("%w: %s holds %s, want %s", ErrMintMismatch, key, acc.Mint, mint)
	}
	return nil
}

func (p *Pool) checkOut(amountOut, available, minimumAmountOut uint64) error {
	if amountOut == 0 {
		return fmt.Errorf("%w: %s", ErrZeroOutput, p.Name)
	}
	if amountOut > available {
		return fmt.Errorf("%w: quoted %d, reserve holds %d", ErrInsufficientLiquidity, amountOut, available)
	}
	if amountOut < minimumAmountOut {
		return models.NewRouteError(models.KindMinimumOutNotMet, "%s quoted %d, need %d", p.Name, amountOut, minimumAmountOut)
	}
	return nil
}

// quote runs a curve in a fresh runtime. The runtime is interrupted when
// ctx is cancelled.
func (p *Pool) quote(ctx context.Context, c curve, vars map[string]uint64) (uint64, error) {
	runtime := goja.New()
	for name, value := range vars {
		if err := runtime.Set(name, value); err != nil {
			return 0, fmt.Errorf("failed to set %s: %w", name, err)
		}
	}
	if ctx != nil {
		stop := context.AfterFunc(ctx, func() {
			runtime.Interrupt(ctx.Err())
		})
		defer stop()
	}

	result, err := runtime.RunProgram(c.program)
	if err != nil {
		return 0, fmt.Errorf("curve %s: %w", c.name, err)
	}
	return toAmount(result.Export())
}

// toAmount converts an exported curve result to a token amount.
// Fractions are truncated.
func toAmount(v any) (uint64, error) {
	switch n := v.(type) {
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("%w: %d is negative", ErrInvalidQuote, n)
		}
		return uint64(n), nil
	case float64:
		if math.IsNaN(n) || n < 0 || n >= math.Exp2(64) {
			return 0, fmt.Errorf("%w: %v", ErrInvalidQuote, n)
		}
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("%w: %v (%T) is not a number", ErrInvalidQuote, v, v)
	}
}

func logger(actx *models.ActionContext) *zap.Logger {
	if actx.Logger == nil {
		return zap.NewNop()
	}
	return actx.Logger
}
