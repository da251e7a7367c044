package topology

import (
	"fmt"
)

// InputShapeError reports device state that cannot be modeled. It aborts the
// run before anything is created in the simulator.
type InputShapeError struct {
	Device string
	Field  string
	Reason string
}

func (e *InputShapeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid state for device %q: %s", e.Device, e.Reason)
	}
	return fmt.Sprintf("invalid state for device %q: %s: %s", e.Device, e.Field, e.Reason)
}

// CapacityExceededError is returned when a node needs more simulator ports
// than its adapters provide.
type CapacityExceededError struct {
	Node       string
	Interfaces int
	Capacity   int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("node %q needs %d ports but the simulator provides %d", e.Node, e.Interfaces, e.Capacity)
}

// CollaboratorError wraps a failed call to a device, the simulator or a
// transfer sink with the entity it was made for.
type CollaboratorError struct {
	Op     string
	Entity string
	Err    error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
