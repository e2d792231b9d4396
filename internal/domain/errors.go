package domain

import (
	"fmt"
)

// ValidationError reports a malformed or incomplete spec. It is raised
// before any state change.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Msg
}

// NewValidationError builds a ValidationError with a formatted message
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown orchestration or component id
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewOrchestrationNotFound builds a NotFoundError for an orchestration id
func NewOrchestrationNotFound(id string) *NotFoundError {
	return &NotFoundError{Kind: "orchestration", ID: id}
}

// CircularDependencyError reports a cyclic component graph, naming the
// component at which the cycle was detected.
type CircularDependencyError struct {
	ComponentID string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected at component %s", e.ComponentID)
}

// ProvisioningError reports a failed resource provisioner call
type ProvisioningError struct {
	ComponentID string
	Err         error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provisioning failed for component %s: %v", e.ComponentID, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports a component whose declared dependencies cannot
// satisfy its provisioning strategy (wrong type or not yet running). It is
// signaled before any provisioning call is made.
type ConfigurationError struct {
	ComponentID string
	Msg         string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for component %s: %s", e.ComponentID, e.Msg)
}

// ScalingError reports a scale request that violates replica bounds or the
// cooldown window.
type ScalingError struct {
	ComponentID string
	Msg         string
}

func (e *ScalingError) Error() string {
	return fmt.Sprintf("scaling rejected for component %s: %s", e.ComponentID, e.Msg)
}

// RollbackError reports a rollback to a revision with no stored snapshot
type RollbackError struct {
	Revision int
	Msg      string
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback to revision %d failed: %s", e.Revision, e.Msg)
}

// ConflictError reports a mutating action attempted while another one holds
// the orchestration lock. The caller may retry once the in-flight action
// completes.
type ConflictError struct {
	OrchestrationID string
	Action          string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("orchestration %s is busy, cannot run %s concurrently", e.OrchestrationID, e.Action)
}
