package models

import "fmt"

// ErrorKind identifies one distinguishable router failure
type ErrorKind string

const (
	// validation
	KindPathInputOutputMismatch ErrorKind = "path_input_output_mismatch"
	KindInputOwnerMismatch      ErrorKind = "input_owner_mismatch"
	KindInputMintMismatch       ErrorKind = "input_mint_mismatch"
	KindOutputOwnerMismatch     ErrorKind = "output_owner_mismatch"
	KindOutputMintMismatch      ErrorKind = "output_mint_mismatch"
	KindZeroSwap                ErrorKind = "zero_swap"
	KindInsufficientInput       ErrorKind = "insufficient_input_balance"
	KindUnknownAction           ErrorKind = "unknown_action"
	KindInvalidAction           ErrorKind = "invalid_action"
	KindOwnerMismatch           ErrorKind = "owner_mismatch"

	// arithmetic
	KindOverflowSwapResult ErrorKind = "overflow_swap_result"

	// state
	KindNoMoreSteps          ErrorKind = "no_more_steps"
	KindEndIncomplete        ErrorKind = "end_incomplete"
	KindContinuationNotFound ErrorKind = "continuation_not_found"
	KindContinuationBusy     ErrorKind = "continuation_busy"
	KindContinuationClosed   ErrorKind = "continuation_closed"

	// invariant
	KindBalanceLower     ErrorKind = "balance_lower"
	KindMinimumOutNotMet ErrorKind = "minimum_out_not_met"
)

// ErrorCategory groups kinds by how a caller can react to them
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryArithmetic ErrorCategory = "arithmetic"
	CategoryState      ErrorCategory = "state"
	CategoryInvariant  ErrorCategory = "invariant"
)

var kindMessages = map[ErrorKind]string{
	KindPathInputOutputMismatch: "path input does not match prior output",
	KindInputOwnerMismatch:      "input owner does not match continuation owner",
	KindInputMintMismatch:       "input mint does not match continuation input mint",
	KindOutputOwnerMismatch:     "output owner does not match continuation owner",
	KindOutputMintMismatch:      "output mint does not match continuation output mint",
	KindZeroSwap:                "cannot perform a zero swap",
	KindInsufficientInput:       "insufficient input balance",
	KindUnknownAction:           "unknown router action",
	KindInvalidAction:           "invalid router action",
	KindOwnerMismatch:           "caller is not the continuation owner",
	KindOverflowSwapResult:      "swap result overflowed when checking balance difference",
	KindNoMoreSteps:             "no more steps to process",
	KindEndIncomplete:           "not all steps were processed",
	KindContinuationNotFound:    "continuation not found",
	KindContinuationBusy:        "continuation is held by another route",
	KindContinuationClosed:      "continuation is closed",
	KindBalanceLower:            "swap resulted in a balance lower than the original balance",
	KindMinimumOutNotMet:        "minimum amount out not met",
}

// Category returns the taxonomy bucket of the kind
func (k ErrorKind) Category() ErrorCategory {
	switch k {
	case KindOverflowSwapResult:
		return CategoryArithmetic
	case KindNoMoreSteps, KindEndIncomplete, KindContinuationNotFound, KindContinuationBusy, KindContinuationClosed:
		return CategoryState
	case KindBalanceLower, KindMinimumOutNotMet:
		return CategoryInvariant
	default:
		return CategoryValidation
	}
}

// RouteError is returned by every router operation that fails
type RouteError struct {
	Kind   ErrorKind
	Detail string
}

func (e *RouteError) Error() string {
	msg, ok := kindMessages[e.Kind]
	if !ok {
		msg = string(e.Kind)
	}
	if e.Detail == "" {
		return msg
	}
	return msg + ": " + e.Detail
}

// Is matches any RouteError of the same kind, so the sentinels below work
// with errors.Is regardless of the detail text.
func (e *RouteError) Is(target error) bool {
	t, ok := target.(*RouteError)
	return ok && t.Kind == e.Kind
}

// NewRouteError creates a RouteError with a formatted detail
func NewRouteError(kind ErrorKind, format string, args ...any) error {
	return &RouteError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

var (
	ErrPathInputOutputMismatch = &RouteError{Kind: KindPathInputOutputMismatch}
	ErrInputOwnerMismatch      = &RouteError{Kind: KindInputOwnerMismatch}
	ErrInputMintMismatch       = &RouteError{Kind: KindInputMintMismatch}
	ErrOutputOwnerMismatch     = &RouteError{Kind: KindOutputOwnerMismatch}
	ErrOutputMintMismatch      = &RouteError{Kind: KindOutputMintMismatch}
	ErrZeroSwap                = &RouteError{Kind: KindZeroSwap}
	ErrInsufficientInput       = &RouteError{Kind: KindInsufficientInput}
	ErrUnknownAction           = &RouteError{Kind: KindUnknownAction}
	ErrInvalidAction           = &RouteError{Kind: KindInvalidAction}
	ErrOwnerMismatch           = &RouteError{Kind: KindOwnerMismatch}
	ErrOverflowSwapResult      = &RouteError{Kind: KindOverflowSwapResult}
	ErrNoMoreSteps             = &RouteError{Kind: KindNoMoreSteps}
	ErrEndIncomplete           = &RouteError{Kind: KindEndIncomplete}
	ErrContinuationNotFound    = &RouteError{Kind: KindContinuationNotFound}
	ErrContinuationBusy        = &RouteError{Kind: KindContinuationBusy}
	ErrContinuationClosed      = &RouteError{Kind: KindContinuationClosed}
	ErrBalanceLower            = &RouteError{Kind: KindBalanceLower}
	ErrMinimumOutNotMet        = &RouteError{Kind: KindMinimumOutNotMet}
)

// MissingConfigError is returned when a route or venue definition lacks a
// required key. Key is the YAML path of the key, e.g. "pool.reserve_a".
type MissingConfigError struct {
	Key string
}

func (e *MissingConfigError) Error() string {
	return e.Key + " is required"
}

// ErrMissingConfig reports a missing definition key
func ErrMissingConfig(key string) error {
	return &MissingConfigError{Key: key}
}
