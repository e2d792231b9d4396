package domain

import (
	"time"
)

// OrchestrationStatus represents the lifecycle status of an orchestration
type OrchestrationStatus string

const (
	OrchestrationStatusCreating  OrchestrationStatus = "creating"
	OrchestrationStatusDeploying OrchestrationStatus = "deploying"
	OrchestrationStatusRunning   OrchestrationStatus = "running"
	OrchestrationStatusScaling   OrchestrationStatus = "scaling"
	OrchestrationStatusStopped   OrchestrationStatus = "stopped"
	OrchestrationStatusError     OrchestrationStatus = "error"
)

// validTransitions encodes the orchestration state machine. An orchestration
// is removed on delete, never transitioned into a terminal state.
var validTransitions = map[OrchestrationStatus][]OrchestrationStatus{
	OrchestrationStatusCreating:  {OrchestrationStatusDeploying},
	OrchestrationStatusDeploying: {OrchestrationStatusRunning, OrchestrationStatusError},
	OrchestrationStatusRunning:   {OrchestrationStatusScaling, OrchestrationStatusDeploying, OrchestrationStatusStopped},
	OrchestrationStatusScaling:   {OrchestrationStatusRunning, OrchestrationStatusError},
	OrchestrationStatusStopped:   {OrchestrationStatusDeploying, OrchestrationStatusRunning},
	OrchestrationStatusError:     {OrchestrationStatusDeploying},
}

// CanTransitionTo reports whether moving from s to next is a valid
// state machine transition.
func (s OrchestrationStatus) CanTransitionTo(next OrchestrationStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// DeployStrategy is a deployment configuration hint. It does not affect
// correctness; provisioning inside one workflow is always sequential in
// resolver order.
type DeployStrategy string

const (
	DeployStrategyRolling  DeployStrategy = "rolling"
	DeployStrategyRecreate DeployStrategy = "recreate"
)

// OrchestrationConfig holds deployment configuration hints
type OrchestrationConfig struct {
	Strategy    DeployStrategy `json:"strategy,omitempty"`
	MaxParallel int            `json:"max_parallel,omitempty"`
}

// Orchestration is a user-defined stack of interdependent components
// managed as one unit. It is owned exclusively by the orchestration manager
// and mutated only while holding that orchestration's logical lock.
type Orchestration struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Components    []*Component        `json:"components"`
	Status        OrchestrationStatus `json:"status"`
	StatusMessage string              `json:"status_message,omitempty"`

	// Revision increases monotonically on every successful full deployment.
	Revision  int        `json:"revision"`
	Revisions []Revision `json:"revisions,omitempty"`

	Config OrchestrationConfig `json:"config"`

	// Version is the storage version used for optimistic concurrency checks
	// by the repository. It is unrelated to Revision.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Component returns the component with the given id, or nil if it does not
// exist in this orchestration.
func (o *Orchestration) Component(id string) *Component {
	for _, c := range o.Components {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Snapshot captures the current component configuration as an immutable
// revision with the given number.
func (o *Orchestration) Snapshot(number int) Revision {
	specs := make([]ComponentSpec, len(o.Components))
	for i, c := range o.Components {
		specs[i] = c.Spec()
	}
	return Revision{
		Number:     number,
		Components: specs,
		TakenAt:    time.Now(),
	}
}

// FindRevision returns the snapshot with the given number, or nil.
func (o *Orchestration) FindRevision(number int) *Revision {
	for i := range o.Revisions {
		if o.Revisions[i].Number == number {
			return &o.Revisions[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the orchestration. Repositories hand out
// clones so callers never share mutable state with the store.
func (o *Orchestration) Clone() *Orchestration {
	if o == nil {
		return nil
	}
	clone := *o
	clone.Components = make([]*Component, len(o.Components))
	for i, c := range o.Components {
		clone.Components[i] = c.Clone()
	}
	clone.Revisions = make([]Revision, len(o.Revisions))
	copy(clone.Revisions, o.Revisions)
	return &clone
}

// Revision is an immutable snapshot of an orchestration's component
// configuration, taken after a successful deploy.
type Revision struct {
	Number     int             `json:"number"`
	Components []ComponentSpec `json:"components"`
	TakenAt    time.Time       `json:"taken_at"`
}

// OrchestrationSpec is a request to create a new orchestration
type OrchestrationSpec struct {
	Name       string              `json:"name"`
	Components []ComponentSpec     `json:"components"`
	Config     OrchestrationConfig `json:"config"`
}

// OrchestrationFilter selects orchestrations for listing
type OrchestrationFilter struct {
	Status OrchestrationStatus `json:"status,omitempty" form:"status"`
	Limit  int                 `json:"limit,omitempty" form:"limit"`
	Offset int                 `json:"offset,omitempty" form:"offset"`
}

// OrchestrationPatch is a partial update to an orchestration. Nil fields
// are left untouched.
type OrchestrationPatch struct {
	Name    *string              `json:"name,omitempty"`
	Config  *OrchestrationConfig `json:"config,omitempty"`
	Scaling map[string]ScalingSpec `json:"scaling,omitempty"` // component id -> new bounds
}

// ActionResult is the structured outcome of an orchestration action.
// Actions never propagate faults to the caller; failures are reported here.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Action names a lifecycle action dispatched through the manager
type Action string

const (
	ActionDeploy   Action = "deploy"
	ActionScale    Action = "scale"
	ActionRollback Action = "rollback"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionRestart  Action = "restart"
)
