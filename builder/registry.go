package builder

import (
	"fmt"
	"sort"
	"sync"

	"github.com/simon020286/continuation-router/config"
	"github.com/simon020286/continuation-router/models"
)

// VenueResolver looks venues up by name for action factories
type VenueResolver interface {
	StableSwap(name string) (models.StableSwap, error)
	PassThrough(name string) (models.PassThroughProcessor, error)
}

// ActionFactory creates an Action from a route step
type ActionFactory func(step config.StepConfig, venues VenueResolver) (models.Action, error)

var (
	// registry contains all registered factories by action name
	registry = make(map[string]ActionFactory)
	mu       sync.RWMutex
)

// RegisterActionType registers a factory for an action name
// This function is called by init() in the actions package
func RegisterActionType(name string, factory ActionFactory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = factory
}

// GetActionFactory returns the factory for an action name
func GetActionFactory(name string) (ActionFactory, error) {
	mu.RLock()
	defer mu.RUnlock()

	factory, exists := registry[name]
	if !exists {
		return nil, models.NewRouteError(models.KindUnknownAction, "unknown action type: %s", name)
	}
	return factory, nil
}

// ListActionTypes returns all registered action names, sorted
func ListActionTypes() []string {
	mu.RLock()
	defer mu.RUnlock()

	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// CreateAction creates an action from a route step
func CreateAction(step config.StepConfig, venues VenueResolver) (models.Action, error) {
	factory, err := GetActionFactory(step.Action)
	if err != nil {
		return nil, err
	}
	action, err := factory(step, venues)
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", step.Action, err)
	}
	return action, nil
}
