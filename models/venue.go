package models

// SwapAccounts are the user accounts of a pool swap
type SwapAccounts struct {
	Input  Key
	Output Key
}

// WithdrawOneAccounts are the user accounts of a single-sided pool withdrawal
type WithdrawOneAccounts struct {
	InputLP Key
	Output  Key
}

// DepositAccounts are the user accounts of a paired pool deposit
type DepositAccounts struct {
	InputA   Key
	InputB   Key
	OutputLP Key
}

// StableSwap is a two-token pool venue.
type StableSwap interface {
	Swap(actx *ActionContext, accounts SwapAccounts, amountIn, minimumAmountOut uint64) error
	WithdrawOne(actx *ActionContext, accounts WithdrawOneAccounts, poolTokenAmount, minimumAmountOut uint64) error
	Deposit(actx *ActionContext, accounts DepositAccounts, amountA, amountB, minimumPoolTokens uint64) error
}

// PassThroughAccounts is the complete, typed list of accounts the router
// hands to a pass-through venue. Venues must not expect anything else.
type PassThroughAccounts struct {
	Input  Key
	Output Key
}

// PassThroughProcessor is a venue exposing one generic entrypoint keyed by
// action code instead of one function per operation.
type PassThroughProcessor interface {
	ProcessAction(actx *ActionContext, action ActionType, accounts PassThroughAccounts, amountIn, minimumAmountOut uint64) error
}
