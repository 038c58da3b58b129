package recommend

import "fmt"

// OperationError identifies the engine operation and entity (track, user or
// pair id) whose store call failed. Err keeps the store error for errors.Is.
type OperationError struct {
	Op     string
	Entity string
	Err    error
}

func (e *OperationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Entity == "" {
		return fmt.Sprintf("recommend %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("recommend %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
