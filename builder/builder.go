package builder

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/simon020286/continuation-router/config"
	"github.com/simon020286/continuation-router/models"
)

// CreateActions creates one action per route step, in order
func CreateActions(steps []config.StepConfig, venues VenueResolver) ([]models.Action, error) {
	actions := make([]models.Action, 0, len(steps))
	for i, step := range steps {
		action, err := CreateAction(step, venues)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		actions = append(actions, action)
	}
	return actions, nil
}

// RegisterVenues registers the venue definitions declared inline in a route
func RegisterVenues(vr *VenueRegistry, defs []config.VenueDefinition) error {
	for i := range defs {
		if err := vr.Register(&defs[i]); err != nil {
			return err
		}
	}
	return nil
}

// GenerateEventID generates a unique ID for an event
func GenerateEventID() string {
	return "evt_" + uuid.NewString()
}

// GenerateContinuationID generates a unique ID for a continuation
func GenerateContinuationID() string {
	return "cont_" + uuid.NewString()
}
