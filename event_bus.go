package router

import (
	"errors"
	"sync"
	"time"

	"github.com/simon020286/continuation-router/models"
)

// eventBus manages event distribution to registered listeners (private)
type eventBus struct {
	listeners []models.EventListener
	mutex     sync.RWMutex
	pendingWg sync.WaitGroup // Tracks events being processed

	now   func() time.Time
	newID func() string
}

// newEventBus creates a new eventBus instance (private)
func newEventBus(now func() time.Time, newID func() string) *eventBus {
	return &eventBus{
		listeners: make([]models.EventListener, 0),
		now:       now,
		newID:     newID,
	}
}

// addListener registers a new listener
func (eb *eventBus) addListener(listener models.EventListener) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	eb.listeners = append(eb.listeners, listener)
}

// removeAllListeners removes all listeners
func (eb *eventBus) removeAllListeners() {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()
	eb.listeners = make([]models.EventListener, 0)
}

// publish sends events, in order, to all registered listeners
func (eb *eventBus) publish(events ...models.Event) {
	if len(events) == 0 {
		return
	}
	eb.mutex.RLock()
	listeners := make([]models.EventListener, len(eb.listeners))
	copy(listeners, eb.listeners)
	eb.mutex.RUnlock()

	// Notify listeners asynchronously to avoid blocking execution.
	// Each listener sees the events of one publish in order.
	for _, listener := range listeners {
		eb.pendingWg.Add(1)
		go func(l models.EventListener) {
			defer eb.pendingWg.Done()
			for _, event := range events {
				l.OnEvent(event)
			}
		}(listener)
	}
}

// wait waits for all pending events to be processed
func (eb *eventBus) wait() {
	eb.pendingWg.Wait()
}

func (eb *eventBus) newEvent(eventType models.EventType, continuationID string, data map[string]interface{}) models.Event {
	return models.Event{
		ID:             eb.newID(),
		Type:           eventType,
		ContinuationID: continuationID,
		Timestamp:      eb.now().UTC(),
		Data:           data,
	}
}

// routeInitialized builds a route start event
func (eb *eventBus) routeInitialized(c *models.Continuation) models.Event {
	return eb.newEvent(models.EventRouteInitialized, c.ID, models.RouteInitializedEvent{
		Owner:            c.Owner,
		Payer:            c.Payer,
		AmountIn:         c.InitialAmountIn,
		MinimumAmountOut: c.MinimumAmountOut,
		NumSteps:         c.StepsLeft,
	}.Data())
}

// stepCompleted builds a step completion event
func (eb *eventBus) stepCompleted(c *models.Continuation, action models.ActionType, input models.TokenAmount) models.Event {
	return eb.newEvent(models.EventRouteStepCompleted, c.ID, models.StepCompletedEvent{
		ActionType:    action,
		Owner:         c.Owner,
		InputAmount:   input,
		OutputAccount: c.Input,
		OutputAmount:  c.AmountIn,
		StepsLeft:     c.StepsLeft,
	}.Data())
}

// routeCompleted builds a route completion event
func (eb *eventBus) routeCompleted(receipt *Receipt) models.Event {
	return eb.newEvent(models.EventRouteCompleted, receipt.ContinuationID, models.RouteCompletedEvent{
		Owner:     receipt.Owner,
		AmountIn:  receipt.AmountIn,
		AmountOut: receipt.AmountOut,
	}.Data())
}

// routeClosed builds a cancel or expiry event
func (eb *eventBus) routeClosed(eventType models.EventType, c *models.Continuation) models.Event {
	return eb.newEvent(eventType, c.ID, models.RouteClosedEvent{
		Owner:     c.Owner,
		Payer:     c.Payer,
		StepsLeft: c.StepsLeft,
	}.Data())
}

// routeFailed builds a batch rejection event
func (eb *eventBus) routeFailed(continuationID string, owner models.Key, err error) models.Event {
	payload := models.RouteFailedEvent{Owner: owner, Error: err.Error()}
	var routeErr *models.RouteError
	if errors.As(err, &routeErr) {
		payload.Kind = routeErr.Kind
	}
	return eb.newEvent(models.EventRouteFailed, continuationID, payload.Data())
}
