package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stackd-io/stackd/internal/domain"
	"github.com/stackd-io/stackd/internal/ports"
)

// Deployer provisions the components of an orchestration in resolver order
// and applies replica scale requests. All provisioner calls carry a bounded
// timeout.
type Deployer struct {
	provisioner      ports.Provisioner
	eventBus         ports.EventBus
	metrics          ports.MetricsCollector
	logger           *zap.Logger
	provisionTimeout time.Duration
}

// NewDeployer creates a new component deployer
func NewDeployer(
	provisioner ports.Provisioner,
	eventBus ports.EventBus,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	provisionTimeout time.Duration,
) *Deployer {
	return &Deployer{
		provisioner:      provisioner,
		eventBus:         eventBus,
		metrics:          metrics,
		logger:           logger,
		provisionTimeout: provisionTimeout,
	}
}

// Deploy walks the orchestration's components in dependency order and
// provisions each one that is not already running. The walk is sequential:
// later components may need earlier components' resource handles.
//
// liveCheck runs between provisioning steps; an error aborts the walk early
// (the orchestration was deleted out from under the workflow). persist runs
// after every component state change so partial completion is always
// observable.
//
// On the first provisioning failure the remaining components are not
// attempted and the error is returned.
func (d *Deployer) Deploy(
	ctx context.Context,
	o *domain.Orchestration,
	liveCheck func(ctx context.Context) error,
	persist func(ctx context.Context, o *domain.Orchestration) error,
) error {
	order, err := ResolveOrder(o.Components)
	if err != nil {
		return err
	}

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if liveCheck != nil {
			if err := liveCheck(ctx); err != nil {
				return err
			}
		}

		c := o.Component(id)
		if c.Status == domain.ComponentStatusRunning && c.ResourceHandle != "" {
			continue
		}

		var deployErr error
		if c.ResourceHandle != "" && c.Status == domain.ComponentStatusStopped {
			// Administratively stopped unit with a live handle: resume it
			deployErr = d.resumeComponent(ctx, o, c)
		} else {
			deployErr = d.deployComponent(ctx, o, c)
		}
		if persist != nil {
			if err := persist(ctx, o); err != nil {
				d.logger.Error("failed to persist component state",
					zap.String("orchestration_id", o.ID),
					zap.String("component_id", c.ID),
					zap.Error(err))
			}
		}
		if deployErr != nil {
			return deployErr
		}
	}

	return nil
}

// deployComponent provisions a single component through its type strategy
func (d *Deployer) deployComponent(ctx context.Context, o *domain.Orchestration, c *domain.Component) error {
	start := time.Now()

	spec, err := d.buildProvisionSpec(o, c)
	if err != nil {
		// Configuration errors are signaled before any provisioning call
		d.markFailed(c, err)
		d.metrics.RecordComponentProvisioned(string(c.Type), "error", time.Since(start))
		d.publishComponentEvent(ctx, ports.EventComponentFailed, o.ID, c.ID, map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}

	pctx, cancel := context.WithTimeout(ctx, d.provisionTimeout)
	defer cancel()

	handle, err := d.provisioner.Provision(pctx, spec)
	duration := time.Since(start)
	if err != nil {
		provErr := &domain.ProvisioningError{ComponentID: c.ID, Err: err}
		d.markFailed(c, provErr)
		d.metrics.RecordComponentProvisioned(string(c.Type), "error", duration)
		d.publishComponentEvent(ctx, ports.EventComponentFailed, o.ID, c.ID, map[string]interface{}{
			"error": provErr.Error(),
		})
		d.logger.Error("component provisioning failed",
			zap.String("orchestration_id", o.ID),
			zap.String("component_id", c.ID),
			zap.String("component_type", string(c.Type)),
			zap.Error(err))
		return provErr
	}

	c.ResourceHandle = handle
	c.Status = domain.ComponentStatusRunning
	c.LastError = ""
	c.Health.Status = postDeployHealth(c)
	c.UpdatedAt = time.Now()

	d.metrics.RecordComponentProvisioned(string(c.Type), "running", duration)
	d.publishComponentEvent(ctx, ports.EventComponentDeployed, o.ID, c.ID, map[string]interface{}{
		"handle": handle,
		"type":   string(c.Type),
	})
	d.logger.Info("component provisioned",
		zap.String("orchestration_id", o.ID),
		zap.String("component_id", c.ID),
		zap.String("component_type", string(c.Type)),
		zap.String("handle", handle),
		zap.Duration("duration", duration))

	return nil
}

// resumeComponent restarts a stopped component and its replicas in place,
// keeping their resource handles.
func (d *Deployer) resumeComponent(ctx context.Context, o *domain.Orchestration, c *domain.Component) error {
	handles := append([]string{c.ResourceHandle}, c.ReplicaHandles...)
	for _, handle := range handles {
		if err := d.provisioner.Start(ctx, handle); err != nil {
			provErr := &domain.ProvisioningError{ComponentID: c.ID, Err: err}
			d.markFailed(c, provErr)
			d.publishComponentEvent(ctx, ports.EventComponentFailed, o.ID, c.ID, map[string]interface{}{
				"error": provErr.Error(),
			})
			return provErr
		}
	}

	c.Status = domain.ComponentStatusRunning
	c.LastError = ""
	c.Health.Status = postDeployHealth(c)
	c.UpdatedAt = time.Now()

	d.publishComponentEvent(ctx, ports.EventComponentDeployed, o.ID, c.ID, map[string]interface{}{
		"handle": c.ResourceHandle,
		"type":   string(c.Type),
	})
	d.logger.Info("component resumed",
		zap.String("orchestration_id", o.ID),
		zap.String("component_id", c.ID),
		zap.Int("units", len(handles)))
	return nil
}

// postDeployHealth is the health status of a freshly provisioned unit.
// Supervised components stay in starting until their first probe reports;
// unsupervised ones are considered healthy by construction.
func postDeployHealth(c *domain.Component) domain.HealthStatus {
	if c.Health.Enabled {
		return domain.HealthStatusStarting
	}
	return domain.HealthStatusHealthy
}

// publishComponentEvent emits a component lifecycle event on the bus
func (d *Deployer) publishComponentEvent(ctx context.Context, eventType ports.EventType, orchestrationID, componentID string, data map[string]interface{}) {
	if d.eventBus == nil {
		return
	}
	event := ports.Event{
		ID:              uuid.New().String(),
		Type:            eventType,
		OrchestrationID: orchestrationID,
		ComponentID:     componentID,
		Timestamp:       time.Now(),
		Data:            data,
	}
	if err := d.eventBus.Publish(ctx, ports.TopicComponentEvents, event); err != nil {
		d.logger.Error("failed to publish component event",
			zap.String("event_type", string(eventType)),
			zap.String("orchestration_id", orchestrationID),
			zap.String("component_id", componentID),
			zap.Error(err))
	}
}

// markFailed records a provisioning failure on the component
func (d *Deployer) markFailed(c *domain.Component, err error) {
	c.Status = domain.ComponentStatusError
	c.LastError = err.Error()
	c.Health.Status = domain.HealthStatusUnhealthy
	c.Health.FailureCount++
	c.UpdatedAt = time.Now()
}

// buildProvisionSpec resolves the inputs a component's type strategy needs.
// Strategies that bind to a dependency's resource handle require that
// dependency to be running; otherwise a ConfigurationError is returned
// before any provisioning call is made.
func (d *Deployer) buildProvisionSpec(o *domain.Orchestration, c *domain.Component) (ports.ProvisionSpec, error) {
	spec := ports.ProvisionSpec{
		OrchestrationID:   o.ID,
		ComponentID:       c.ID,
		Type:              c.Type,
		Config:            c.Config,
		DependencyHandles: make(map[string]string, len(c.DependsOn)),
	}

	switch c.Type {
	case domain.ComponentTypeDevServer:
		// A dev server runs inside its compute unit; the unit's handle is
		// a hard input to the strategy.
		found := false
		for _, dep := range c.DependsOn {
			dc := o.Component(dep)
			if dc == nil || dc.Type != domain.ComponentTypeComputeUnit {
				continue
			}
			if dc.Status != domain.ComponentStatusRunning || dc.ResourceHandle == "" {
				return spec, &domain.ConfigurationError{
					ComponentID: c.ID,
					Msg:         fmt.Sprintf("compute-unit dependency %s is not running", dep),
				}
			}
			spec.DependencyHandles[dep] = dc.ResourceHandle
			found = true
		}
		if !found {
			return spec, &domain.ConfigurationError{
				ComponentID: c.ID,
				Msg:         "no compute-unit dependency declared",
			}
		}

	case domain.ComponentTypeAPIGateway:
		// A gateway binds routes to its upstreams' handles
		for _, dep := range c.DependsOn {
			dc := o.Component(dep)
			if dc == nil {
				continue
			}
			if dc.Status != domain.ComponentStatusRunning || dc.ResourceHandle == "" {
				return spec, &domain.ConfigurationError{
					ComponentID: c.ID,
					Msg:         fmt.Sprintf("upstream dependency %s is not running", dep),
				}
			}
			spec.DependencyHandles[dep] = dc.ResourceHandle
		}

	default:
		// Other strategies receive whatever handles their dependencies
		// already have, without requiring them.
		for _, dep := range c.DependsOn {
			if dc := o.Component(dep); dc != nil && dc.ResourceHandle != "" {
				spec.DependencyHandles[dep] = dc.ResourceHandle
			}
		}
	}

	return spec, nil
}

// ScaleUp provisions one additional replica of a running component, cloning
// its configuration under a fresh replica identity. CurrentReplicas is
// updated only after the provisioning call succeeds.
func (d *Deployer) ScaleUp(ctx context.Context, o *domain.Orchestration, c *domain.Component) error {
	if c.Status != domain.ComponentStatusRunning {
		return &domain.ScalingError{ComponentID: c.ID, Msg: "component is not running"}
	}
	if c.Scaling.CurrentReplicas+1 > c.Scaling.MaxReplicas {
		return &domain.ScalingError{ComponentID: c.ID, Msg: "max replicas reached"}
	}

	spec, err := d.buildProvisionSpec(o, c)
	if err != nil {
		return err
	}
	spec.ComponentID = fmt.Sprintf("%s-r%s", c.ID, uuid.NewString()[:8])
	spec.ReplicaOf = c.ID

	pctx, cancel := context.WithTimeout(ctx, d.provisionTimeout)
	defer cancel()

	handle, err := d.provisioner.Provision(pctx, spec)
	if err != nil {
		return &domain.ProvisioningError{ComponentID: c.ID, Err: err}
	}

	c.ReplicaHandles = append(c.ReplicaHandles, handle)
	c.Scaling.CurrentReplicas++
	c.Scaling.LastScaleAction = time.Now()
	c.UpdatedAt = time.Now()

	d.metrics.RecordScaleAction("up")
	d.logger.Info("scaled up component",
		zap.String("orchestration_id", o.ID),
		zap.String("component_id", c.ID),
		zap.Int("replicas", c.Scaling.CurrentReplicas))

	return nil
}

// ScaleDown tears down the most recently created replica of a component and
// releases its exclusive resources. CurrentReplicas is updated only after
// the teardown call succeeds.
func (d *Deployer) ScaleDown(ctx context.Context, o *domain.Orchestration, c *domain.Component) error {
	if c.Scaling.CurrentReplicas-1 < c.Scaling.MinReplicas {
		return &domain.ScalingError{ComponentID: c.ID, Msg: "min replicas reached"}
	}
	if len(c.ReplicaHandles) == 0 {
		return &domain.ScalingError{ComponentID: c.ID, Msg: "no replica instances to remove"}
	}

	handle := c.ReplicaHandles[len(c.ReplicaHandles)-1]

	pctx, cancel := context.WithTimeout(ctx, d.provisionTimeout)
	defer cancel()

	if err := d.provisioner.Teardown(pctx, handle); err != nil {
		return &domain.ProvisioningError{ComponentID: c.ID, Err: err}
	}

	c.ReplicaHandles = c.ReplicaHandles[:len(c.ReplicaHandles)-1]
	c.Scaling.CurrentReplicas--
	c.Scaling.LastScaleAction = time.Now()
	c.UpdatedAt = time.Now()

	d.metrics.RecordScaleAction("down")
	d.logger.Info("scaled down component",
		zap.String("orchestration_id", o.ID),
		zap.String("component_id", c.ID),
		zap.Int("replicas", c.Scaling.CurrentReplicas))

	return nil
}

// Restart stops and starts every provisioned unit of the orchestration
// without tearing anything down.
func (d *Deployer) Restart(ctx context.Context, o *domain.Orchestration) error {
	for _, c := range o.Components {
		if c.ResourceHandle == "" {
			continue
		}
		handles := append([]string{c.ResourceHandle}, c.ReplicaHandles...)
		for _, handle := range handles {
			pctx, cancel := context.WithTimeout(ctx, d.provisionTimeout)
			err := d.provisioner.Stop(pctx, handle)
			if err == nil {
				err = d.provisioner.Start(pctx, handle)
			}
			cancel()
			if err != nil {
				d.markFailed(c, &domain.ProvisioningError{ComponentID: c.ID, Err: err})
				return &domain.ProvisioningError{ComponentID: c.ID, Err: err}
			}
		}
		c.Status = domain.ComponentStatusRunning
		c.UpdatedAt = time.Now()
	}
	return nil
}

// TeardownComponent releases all provisioned units of a component, replica
// instances first in LIFO order, then the primary handle.
func (d *Deployer) TeardownComponent(ctx context.Context, c *domain.Component) error {
	var firstErr error

	for i := len(c.ReplicaHandles) - 1; i >= 0; i-- {
		if err := d.teardownHandle(ctx, c.ReplicaHandles[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.ReplicaHandles = nil

	if c.ResourceHandle != "" {
		if err := d.teardownHandle(ctx, c.ResourceHandle); err != nil && firstErr == nil {
			firstErr = err
		}
		c.ResourceHandle = ""
	}

	c.Status = domain.ComponentStatusStopped
	c.UpdatedAt = time.Now()
	return firstErr
}

func (d *Deployer) teardownHandle(ctx context.Context, handle string) error {
	pctx, cancel := context.WithTimeout(ctx, d.provisionTimeout)
	defer cancel()
	return d.provisioner.Teardown(pctx, handle)
}
