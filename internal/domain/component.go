package domain

import (
	"time"
)

// ComponentType identifies one of the five deployable unit kinds
type ComponentType string

const (
	ComponentTypeComputeUnit ComponentType = "compute-unit"
	ComponentTypeEnvironment ComponentType = "environment"
	ComponentTypeDevServer   ComponentType = "dev-server"
	ComponentTypeServiceMesh ComponentType = "service-mesh"
	ComponentTypeAPIGateway  ComponentType = "api-gateway"
)

// KnownComponentType reports whether t is one of the supported types
func KnownComponentType(t ComponentType) bool {
	switch t {
	case ComponentTypeComputeUnit, ComponentTypeEnvironment, ComponentTypeDevServer,
		ComponentTypeServiceMesh, ComponentTypeAPIGateway:
		return true
	}
	return false
}

// ComponentStatus represents the lifecycle status of a single component
type ComponentStatus string

const (
	ComponentStatusCreating ComponentStatus = "creating"
	ComponentStatusRunning  ComponentStatus = "running"
	ComponentStatusStopped  ComponentStatus = "stopped"
	ComponentStatusError    ComponentStatus = "error"
)

// ComponentConfig is the closed union of per-type configurations. Exactly
// one variant must be set, and it must match the component's declared type.
type ComponentConfig struct {
	ComputeUnit *ComputeUnitConfig `json:"compute_unit,omitempty"`
	Environment *EnvironmentConfig `json:"environment,omitempty"`
	DevServer   *DevServerConfig   `json:"dev_server,omitempty"`
	ServiceMesh *ServiceMeshConfig `json:"service_mesh,omitempty"`
	APIGateway  *APIGatewayConfig  `json:"api_gateway,omitempty"`
}

// Variant returns the component type the set variant corresponds to, or ""
// when zero or more than one variant is set.
func (c ComponentConfig) Variant() ComponentType {
	var found ComponentType
	set := 0
	if c.ComputeUnit != nil {
		found, set = ComponentTypeComputeUnit, set+1
	}
	if c.Environment != nil {
		found, set = ComponentTypeEnvironment, set+1
	}
	if c.DevServer != nil {
		found, set = ComponentTypeDevServer, set+1
	}
	if c.ServiceMesh != nil {
		found, set = ComponentTypeServiceMesh, set+1
	}
	if c.APIGateway != nil {
		found, set = ComponentTypeAPIGateway, set+1
	}
	if set != 1 {
		return ""
	}
	return found
}

// ComputeUnitConfig configures a container-like compute unit
type ComputeUnitConfig struct {
	Image         string            `json:"image"`
	CPUMillis     int               `json:"cpu_millis,omitempty"`
	MemoryMB      int               `json:"memory_mb,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	ExposedPorts  []int             `json:"exposed_ports,omitempty"`
}

// EnvironmentConfig configures a runtime environment
type EnvironmentConfig struct {
	Runtime  string            `json:"runtime"`
	Packages []string          `json:"packages,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
}

// DevServerConfig configures an interactive dev server. A dev server is
// provisioned inside a compute unit, so it must declare a compute-unit
// dependency whose resource handle is passed to the provisioner.
type DevServerConfig struct {
	Command    string   `json:"command"`
	Port       int      `json:"port"`
	WatchPaths []string `json:"watch_paths,omitempty"`
}

// ServiceMeshConfig configures a service-mesh sidecar layer
type ServiceMeshConfig struct {
	MTLS            bool          `json:"mtls"`
	UpstreamTimeout time.Duration `json:"upstream_timeout,omitempty"`
}

// APIGatewayConfig configures an API gateway. Route targets must be
// component ids declared as dependencies of the gateway.
type APIGatewayConfig struct {
	Port   int         `json:"port"`
	Routes []RouteRule `json:"routes,omitempty"`
}

// RouteRule maps a path prefix to an upstream component
type RouteRule struct {
	PathPrefix      string `json:"path_prefix"`
	TargetComponent string `json:"target_component"`
}

// Component is one deployable unit within an orchestration
type Component struct {
	ID        string          `json:"id"`
	Type      ComponentType   `json:"type"`
	DependsOn []string        `json:"depends_on,omitempty"`
	Status    ComponentStatus `json:"status"`
	LastError string          `json:"last_error,omitempty"`

	// ResourceHandle is the opaque provisioner reference, set once
	// provisioning succeeds.
	ResourceHandle string `json:"resource_handle,omitempty"`

	// ReplicaHandles are scaled replica instances, most recent last.
	// Scale-down tears them down in LIFO order.
	ReplicaHandles []string `json:"replica_handles,omitempty"`

	Config  ComponentConfig  `json:"config"`
	Health  HealthCheckState `json:"health"`
	Scaling ScalingState     `json:"scaling"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewComponent builds a component in its initial state from a spec
func NewComponent(spec ComponentSpec) *Component {
	now := time.Now()
	deps := make([]string, len(spec.DependsOn))
	copy(deps, spec.DependsOn)

	interval := spec.Health.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	current := spec.Scaling.MinReplicas
	if current < 1 {
		current = 1
	}

	return &Component{
		ID:        spec.ID,
		Type:      spec.Type,
		DependsOn: deps,
		Status:    ComponentStatusCreating,
		Config:    spec.Config,
		Health: HealthCheckState{
			Enabled:  spec.Health.Enabled,
			Endpoint: spec.Health.Endpoint,
			Interval: interval,
			Status:   HealthStatusUnknown,
		},
		Scaling: ScalingState{
			Enabled:           spec.Scaling.Enabled,
			MinReplicas:       spec.Scaling.MinReplicas,
			CurrentReplicas:   current,
			MaxReplicas:       spec.Scaling.MaxReplicas,
			TargetUtilization: spec.Scaling.TargetUtilization,
			Cooldown:          spec.Scaling.Cooldown,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Spec returns the configuration portion of the component, suitable for
// revision snapshots.
func (c *Component) Spec() ComponentSpec {
	deps := make([]string, len(c.DependsOn))
	copy(deps, c.DependsOn)
	return ComponentSpec{
		ID:        c.ID,
		Type:      c.Type,
		DependsOn: deps,
		Config:    c.Config,
		Health: HealthCheckSpec{
			Enabled:  c.Health.Enabled,
			Endpoint: c.Health.Endpoint,
			Interval: c.Health.Interval,
		},
		Scaling: ScalingSpec{
			Enabled:           c.Scaling.Enabled,
			MinReplicas:       c.Scaling.MinReplicas,
			MaxReplicas:       c.Scaling.MaxReplicas,
			TargetUtilization: c.Scaling.TargetUtilization,
			Cooldown:          c.Scaling.Cooldown,
		},
	}
}

// Clone returns a deep copy of the component
func (c *Component) Clone() *Component {
	if c == nil {
		return nil
	}
	clone := *c
	clone.DependsOn = make([]string, len(c.DependsOn))
	copy(clone.DependsOn, c.DependsOn)
	clone.ReplicaHandles = make([]string, len(c.ReplicaHandles))
	copy(clone.ReplicaHandles, c.ReplicaHandles)
	clone.Health.Recent = make([]ProbeResult, len(c.Health.Recent))
	copy(clone.Health.Recent, c.Health.Recent)
	return &clone
}

// ComponentSpec declares one component of an orchestration spec
type ComponentSpec struct {
	ID        string          `json:"id"`
	Type      ComponentType   `json:"type"`
	DependsOn []string        `json:"depends_on,omitempty"`
	Config    ComponentConfig `json:"config"`
	Health    HealthCheckSpec `json:"health"`
	Scaling   ScalingSpec     `json:"scaling"`
}

// HealthCheckSpec declares how a component is probed
type HealthCheckSpec struct {
	Enabled  bool          `json:"enabled"`
	Endpoint string        `json:"endpoint,omitempty"` // empty means existence check
	Interval time.Duration `json:"interval,omitempty"`
}

// ScalingSpec declares autoscaling bounds for a component
type ScalingSpec struct {
	Enabled           bool          `json:"enabled"`
	MinReplicas       int           `json:"min_replicas"`
	MaxReplicas       int           `json:"max_replicas"`
	TargetUtilization int           `json:"target_utilization,omitempty"` // percent
	Cooldown          time.Duration `json:"cooldown,omitempty"`
}
