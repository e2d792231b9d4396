package ports

import (
	"context"
	"errors"
	"time"

	"github.com/stackd-io/stackd/internal/domain"
)

// ErrVersionConflict is returned by Repository.Update when the stored
// version no longer matches the version the caller read.
var ErrVersionConflict = errors.New("orchestration version conflict")

// Repository is durable storage for orchestration records. Update performs
// an optimistic version check so the orchestration-level lock can be backed
// by a transactional guard rather than single-process memory.
type Repository interface {
	Create(ctx context.Context, o *domain.Orchestration) error
	Get(ctx context.Context, id string) (*domain.Orchestration, error)
	List(ctx context.Context, filter domain.OrchestrationFilter) ([]*domain.Orchestration, int, error)
	Update(ctx context.Context, o *domain.Orchestration) error
	Delete(ctx context.Context, id string) error
}

// ProvisionSpec carries everything a provisioning strategy resolved for one
// runtime unit. DependencyHandles maps dependency component ids to their
// resource handles for strategies that bind to them.
type ProvisionSpec struct {
	OrchestrationID string
	ComponentID     string
	Type            domain.ComponentType
	Config          domain.ComponentConfig

	// ReplicaOf is set when provisioning an additional replica of an
	// already running component; the provisioner allocates fresh exclusive
	// resources (ports, identities) for it.
	ReplicaOf string

	DependencyHandles map[string]string
}

// Provisioner creates and destroys concrete runtime units. Implementations
// must respect ctx deadlines; a call that never returns is treated as a
// failure after its timeout.
type Provisioner interface {
	Provision(ctx context.Context, spec ProvisionSpec) (handle string, err error)
	Teardown(ctx context.Context, handle string) error
	Start(ctx context.Context, handle string) error
	Stop(ctx context.Context, handle string) error
}

// ProbeSpec describes one health check invocation
type ProbeSpec struct {
	Endpoint string
	Timeout  time.Duration
}

// ProbeOutcome is the result of one probe. A probe that errors at the
// transport level is reported by the error return, not by OK=false alone.
type ProbeOutcome struct {
	OK      bool
	Latency time.Duration
	Output  string
}

// ProbeExecutor performs health checks against a resource handle
type ProbeExecutor interface {
	Probe(ctx context.Context, handle string, spec ProbeSpec) (ProbeOutcome, error)
}

// Utilization is a point-in-time resource utilization sample
type Utilization struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}

// MetricSource returns utilization for a resource handle
type MetricSource interface {
	GetUtilization(ctx context.Context, handle string) (Utilization, error)
}

// EventType identifies a lifecycle event
type EventType string

const (
	EventOrchestrationCreated  EventType = "orchestration.created"
	EventOrchestrationDeployed EventType = "orchestration.deployed"
	EventOrchestrationFailed   EventType = "orchestration.failed"
	EventOrchestrationDeleted  EventType = "orchestration.deleted"
	EventComponentDeployed     EventType = "component.deployed"
	EventComponentFailed       EventType = "component.failed"
	EventScaleApplied          EventType = "scale.applied"
	EventRollbackStarted       EventType = "rollback.started"
)

// Event is a lifecycle event published on the event bus
type Event struct {
	ID              string                 `json:"id"`
	Type            EventType              `json:"type"`
	OrchestrationID string                 `json:"orchestration_id"`
	ComponentID     string                 `json:"component_id,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
	Data            map[string]interface{} `json:"data,omitempty"`
}

// EventHandler processes a single event
type EventHandler func(ctx context.Context, event Event) error

// EventBus distributes lifecycle events to subscribers
type EventBus interface {
	Publish(ctx context.Context, topic string, event Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}

// Topics used on the event bus
const (
	TopicOrchestrationEvents = "orchestration.events"
	TopicComponentEvents     = "component.events"
)

// MetricsCollector records control plane metrics
type MetricsCollector interface {
	RecordOrchestrationSubmitted(status string)
	RecordDeploy(status string, duration time.Duration)
	RecordComponentProvisioned(componentType string, status string, duration time.Duration)
	RecordProbe(ok bool, latency time.Duration)
	RecordScaleAction(direction string)
	SetActiveWorkflows(count int)
	SetActiveProbeTasks(count int)
}

// NopMetricsCollector discards all metrics
type NopMetricsCollector struct{}

func (NopMetricsCollector) RecordOrchestrationSubmitted(string)                       {}
func (NopMetricsCollector) RecordDeploy(string, time.Duration)                        {}
func (NopMetricsCollector) RecordComponentProvisioned(string, string, time.Duration)  {}
func (NopMetricsCollector) RecordProbe(bool, time.Duration)                           {}
func (NopMetricsCollector) RecordScaleAction(string)                                  {}
func (NopMetricsCollector) SetActiveWorkflows(int)                                    {}
func (NopMetricsCollector) SetActiveProbeTasks(int)                                   {}
