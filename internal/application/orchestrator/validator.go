package orchestrator

import (
	"github.com/stackd-io/stackd/internal/domain"
)

// Validator validates orchestration specs before any state change
type Validator struct{}

// NewValidator creates a new orchestration spec validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks an orchestration spec for structural errors. A spec that
// passes validation can be handed to the deployer without further shape
// checks; only runtime conditions (dependency not yet running) can still
// fail.
func (v *Validator) Validate(spec *domain.OrchestrationSpec) error {
	if spec == nil {
		return domain.NewValidationError("spec is nil")
	}
	if spec.Name == "" {
		return domain.NewValidationError("orchestration name is required")
	}
	if len(spec.Components) == 0 {
		return domain.NewValidationError("orchestration must have at least one component")
	}

	ids := make(map[string]domain.ComponentType, len(spec.Components))
	for _, c := range spec.Components {
		if c.ID == "" {
			return domain.NewValidationError("component id is required")
		}
		if _, exists := ids[c.ID]; exists {
			return domain.NewValidationError("duplicate component id: %s", c.ID)
		}
		ids[c.ID] = c.Type
	}

	for _, c := range spec.Components {
		if err := v.validateComponent(c, ids); err != nil {
			return err
		}
	}

	// Reject cyclic dependency graphs at creation time
	components := make([]*domain.Component, len(spec.Components))
	for i, cs := range spec.Components {
		components[i] = domain.NewComponent(cs)
	}
	if _, err := ResolveOrder(components); err != nil {
		return err
	}

	return nil
}

// validateComponent validates a single component spec
func (v *Validator) validateComponent(c domain.ComponentSpec, ids map[string]domain.ComponentType) error {
	if !domain.KnownComponentType(c.Type) {
		return domain.NewValidationError("component %s has unknown type: %s", c.ID, c.Type)
	}

	if variant := c.Config.Variant(); variant != c.Type {
		return domain.NewValidationError("component %s declares type %s but its config variant does not match", c.ID, c.Type)
	}

	// All dependency ids must resolve within the same orchestration
	for _, dep := range c.DependsOn {
		if dep == c.ID {
			return domain.NewValidationError("component %s depends on itself", c.ID)
		}
		if _, ok := ids[dep]; !ok {
			return domain.NewValidationError("component %s depends on unknown component: %s", c.ID, dep)
		}
	}

	switch c.Type {
	case domain.ComponentTypeDevServer:
		// A dev server is provisioned into a compute unit and needs its
		// handle at deploy time.
		if !dependsOnType(c, ids, domain.ComponentTypeComputeUnit) {
			return domain.NewValidationError("dev-server %s must declare a compute-unit dependency", c.ID)
		}
	case domain.ComponentTypeAPIGateway:
		for _, route := range c.Config.APIGateway.Routes {
			if !containsString(c.DependsOn, route.TargetComponent) {
				return domain.NewValidationError("api-gateway %s routes to %s which is not a declared dependency", c.ID, route.TargetComponent)
			}
		}
	}

	if c.Scaling.Enabled {
		s := c.Scaling
		if s.MinReplicas < 1 {
			return domain.NewValidationError("component %s: min_replicas must be at least 1", c.ID)
		}
		if s.MaxReplicas < s.MinReplicas {
			return domain.NewValidationError("component %s: max_replicas must be >= min_replicas", c.ID)
		}
		if s.TargetUtilization < 0 || s.TargetUtilization > 100 {
			return domain.NewValidationError("component %s: target_utilization must be between 0 and 100", c.ID)
		}
	}

	if c.Health.Enabled && c.Health.Interval < 0 {
		return domain.NewValidationError("component %s: health interval must not be negative", c.ID)
	}

	return nil
}

func dependsOnType(c domain.ComponentSpec, ids map[string]domain.ComponentType, t domain.ComponentType) bool {
	for _, dep := range c.DependsOn {
		if ids[dep] == t {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
