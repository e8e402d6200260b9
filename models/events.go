package models

import (
	"time"
)

// EventType is the type of an event emitted by the router
type EventType string

const (
	EventRouteInitialized   EventType = "route.initialized"
	EventRouteStepCompleted EventType = "route.step_completed"
	EventRouteCompleted     EventType = "route.completed"
	EventRouteCancelled     EventType = "route.cancelled"
	EventRouteExpired       EventType = "route.expired"
	EventRouteFailed        EventType = "route.failed"
)

// Event is a generic router event.
// Data carries the fields of the matching *Event struct below, keyed by
// their json names.
type Event struct {
	ID             string                 `json:"id"`
	Type           EventType              `json:"type"`
	ContinuationID string                 `json:"continuation_id"`
	Timestamp      time.Time              `json:"timestamp"`
	Data           map[string]interface{} `json:"data"`
}

// RouteInitializedEvent is emitted when a continuation is created
type RouteInitializedEvent struct {
	Owner            Key         `json:"owner"`
	Payer            Key         `json:"payer"`
	AmountIn         TokenAmount `json:"amount_in"`
	MinimumAmountOut TokenAmount `json:"minimum_amount_out"`
	NumSteps         uint16      `json:"num_steps"`
}

func (e RouteInitializedEvent) Data() map[string]interface{} {
	return map[string]interface{}{
		"owner":              e.Owner,
		"payer":              e.Payer,
		"amount_in":          e.AmountIn,
		"minimum_amount_out": e.MinimumAmountOut,
		"num_steps":          e.NumSteps,
	}
}

// StepCompletedEvent is emitted after every successful step
type StepCompletedEvent struct {
	ActionType    ActionType  `json:"action_type"`
	Owner         Key         `json:"owner"`
	InputAmount   TokenAmount `json:"input_amount"`
	OutputAccount Key         `json:"output_account"`
	OutputAmount  TokenAmount `json:"output_amount"`
	StepsLeft     uint16      `json:"steps_left"`
}

func (e StepCompletedEvent) Data() map[string]interface{} {
	return map[string]interface{}{
		"action_type":    e.ActionType.String(),
		"owner":          e.Owner,
		"input_amount":   e.InputAmount,
		"output_account": e.OutputAccount,
		"output_amount":  e.OutputAmount,
		"steps_left":     e.StepsLeft,
	}
}

// RouteCompletedEvent is emitted when end succeeds
type RouteCompletedEvent struct {
	Owner     Key         `json:"owner"`
	AmountIn  TokenAmount `json:"amount_in"`
	AmountOut TokenAmount `json:"amount_out"`
}

func (e RouteCompletedEvent) Data() map[string]interface{} {
	return map[string]interface{}{
		"owner":      e.Owner,
		"amount_in":  e.AmountIn,
		"amount_out": e.AmountOut,
	}
}

// RouteClosedEvent is emitted when a route is cancelled or expires
type RouteClosedEvent struct {
	Owner     Key    `json:"owner"`
	Payer     Key    `json:"payer"`
	StepsLeft uint16 `json:"steps_left"`
}

func (e RouteClosedEvent) Data() map[string]interface{} {
	return map[string]interface{}{
		"owner":      e.Owner,
		"payer":      e.Payer,
		"steps_left": e.StepsLeft,
	}
}

// RouteFailedEvent is emitted when an atomic batch is rejected
type RouteFailedEvent struct {
	Owner Key       `json:"owner"`
	Kind  ErrorKind `json:"kind,omitempty"`
	Error string    `json:"error"`
}

func (e RouteFailedEvent) Data() map[string]interface{} {
	data := map[string]interface{}{
		"owner": e.Owner,
		"error": e.Error,
	}
	if e.Kind != "" {
		data["kind"] = e.Kind
	}
	return data
}

// EventListener is the interface to implement to receive router events
type EventListener interface {
	OnEvent(event Event)
}

// EventListenerFunc is an adapter to use functions as EventListener
type EventListenerFunc func(event Event)

func (f EventListenerFunc) OnEvent(event Event) {
	f(event)
}
