package conversation

import (
	"fmt"

	"github.com/qmuntal/stateless"
)

const (
	triggerComplete = "complete"
	triggerArchive  = "archive"
)

var statusTriggers = map[string]string{
	StatusCompleted: triggerComplete,
	StatusArchived:  triggerArchive,
}

// applyTransition runs the conversation lifecycle machine from the current
// status. Archived is terminal and has no outgoing transitions.
func applyTransition(current, target string) (string, error) {
	trigger, ok := statusTriggers[target]
	if !ok {
		return "", fmt.Errorf("%w: invalid status: %s", ErrInvalidInput, target)
	}

	sm := stateless.NewStateMachine(current)
	sm.Configure(StatusActive).Permit(triggerComplete, StatusCompleted)
	sm.Configure(StatusCompleted).Permit(triggerArchive, StatusArchived)
	sm.Configure(StatusArchived)

	if err := sm.Fire(trigger); err != nil {
		return "", fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidInput, current, target)
	}
	return sm.MustState().(string), nil
}
