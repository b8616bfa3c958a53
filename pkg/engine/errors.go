// Package engine drives workflow instances through their step graph: trigger
// matching, step execution, approvals, escalation, completion detection and
// analytics.
package engine

import (
	"errors"
	"fmt"

	"github.com/docuflow/docuflow/pkg/persistence"
)

var (
	// ErrDependencyNotSatisfied indicates a step was attempted before its
	// prerequisites completed. The caller should retry later; this is not an
	// engine fault.
	ErrDependencyNotSatisfied = errors.New("step dependency not satisfied")

	// ErrTerminalState indicates an operation was attempted on an instance in
	// a terminal state (completed, failed or cancelled).
	ErrTerminalState = errors.New("instance is in a terminal state")

	// ErrInstancePaused indicates step execution was attempted on a paused
	// instance.
	ErrInstancePaused = errors.New("instance is paused")

	// ErrNotPaused indicates resume was called on an instance that is not
	// paused.
	ErrNotPaused = errors.New("instance is not paused")

	// ErrStepNotFound indicates the step id does not exist in the owning
	// definition.
	ErrStepNotFound = errors.New("step not found in workflow definition")

	// ErrStepExecution indicates a step handler itself failed.
	ErrStepExecution = errors.New("step execution failed")

	// Re-exported store sentinels so callers only depend on the engine package.
	ErrInstanceNotFound   = persistence.ErrInstanceNotFound
	ErrDefinitionNotFound = persistence.ErrDefinitionNotFound
)

// StepError wraps a step-level failure with enough context to be replayed
// from history for audit.
type StepError struct {
	InstanceID string
	StepID     string
	Err        error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed for instance %s: %v", e.StepID, e.InstanceID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func (e *StepError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsDependencyNotSatisfied checks whether an error indicates unmet step
// dependencies.
func IsDependencyNotSatisfied(err error) bool {
	return errors.Is(err, ErrDependencyNotSatisfied)
}

// IsTerminalState checks whether an error indicates a terminal instance.
func IsTerminalState(err error) bool {
	return errors.Is(err, ErrTerminalState)
}
