package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stackd-io/stackd/internal/domain"
	"github.com/stackd-io/stackd/internal/ports"
)

// HealthRegistry tracks probe tasks for running components. Implemented by
// the supervisor's health monitor.
type HealthRegistry interface {
	Register(orchestrationID string, component *domain.Component)
	Unregister(orchestrationID, componentID string)
	UnregisterAll(orchestrationID string)
}

// ActionParams carries optional parameters for an orchestration action
type ActionParams struct {
	// Component and Replicas select the target of a manual scale action
	Component string `json:"component,omitempty"`
	Replicas  int    `json:"replicas,omitempty"`

	// Revision selects the rollback target; zero means revision-1
	Revision int `json:"revision,omitempty"`
}

// DeployJob is a trackable asynchronous deployment workflow. Creation-time
// auto-deploys and Act-triggered deploys both return one so callers and
// tests can await completion and assert the final status.
type DeployJob struct {
	OrchestrationID string
	Trigger         string

	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Done returns a channel closed when the workflow finishes
func (j *DeployJob) Done() <-chan struct{} {
	return j.done
}

// Err returns the workflow error, valid once Done is closed
func (j *DeployJob) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Wait blocks until the workflow finishes or ctx is done
func (j *DeployJob) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel aborts the workflow; provisioning stops at the next step boundary
func (j *DeployJob) Cancel() {
	j.cancel()
}

func (j *DeployJob) setErr(err error) {
	j.mu.Lock()
	j.err = err
	j.mu.Unlock()
}

// Manager owns the orchestration lifecycle: validation, persistence, the
// deployment state machine and action dispatch. Each orchestration has a
// logical lock; only one of deploy, scale or rollback may run against it at
// a time, while independent orchestrations proceed fully concurrently.
type Manager struct {
	repo      ports.Repository
	deployer  *Deployer
	eventBus  ports.EventBus
	metrics   ports.MetricsCollector
	validator *Validator
	rollback  *RollbackController
	health    HealthRegistry
	logger    *zap.Logger

	deployTimeout time.Duration

	// locks maps orchestration id -> buffered channel used as a mutex
	locks sync.Map
	// jobs maps orchestration id -> most recent *DeployJob
	jobs sync.Map

	activeWorkflows atomic.Int64
}

// NewManager creates a new orchestration manager
func NewManager(
	repo ports.Repository,
	deployer *Deployer,
	eventBus ports.EventBus,
	metrics ports.MetricsCollector,
	validator *Validator,
	rollback *RollbackController,
	health HealthRegistry,
	logger *zap.Logger,
	deployTimeout time.Duration,
) *Manager {
	return &Manager{
		repo:          repo,
		deployer:      deployer,
		eventBus:      eventBus,
		metrics:       metrics,
		validator:     validator,
		rollback:      rollback,
		health:        health,
		logger:        logger,
		deployTimeout: deployTimeout,
	}
}

// Create validates and persists a new orchestration, then starts its
// deployment workflow. The returned job lets the caller await the
// auto-deploy outcome; its failures are recorded on the orchestration
// status, never propagated out of the creating request.
func (m *Manager) Create(ctx context.Context, spec *domain.OrchestrationSpec) (*domain.Orchestration, *DeployJob, error) {
	if err := m.validator.Validate(spec); err != nil {
		m.metrics.RecordOrchestrationSubmitted("rejected")
		return nil, nil, err
	}

	now := time.Now()
	o := &domain.Orchestration{
		ID:        uuid.New().String(),
		Name:      spec.Name,
		Status:    domain.OrchestrationStatusCreating,
		Config:    spec.Config,
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.Components = make([]*domain.Component, len(spec.Components))
	for i, cs := range spec.Components {
		o.Components[i] = domain.NewComponent(cs)
	}

	if err := m.repo.Create(ctx, o); err != nil {
		return nil, nil, fmt.Errorf("failed to persist orchestration: %w", err)
	}

	m.metrics.RecordOrchestrationSubmitted("creating")
	m.publishEvent(ctx, ports.TopicOrchestrationEvents, ports.EventOrchestrationCreated, o.ID, "", nil)
	m.logger.Info("orchestration created",
		zap.String("orchestration_id", o.ID),
		zap.String("name", o.Name),
		zap.Int("components", len(o.Components)))

	job, err := m.startWorkflow(o.ID, "create", nil)
	if err != nil {
		// A fresh orchestration cannot hold its own lock; log and move on
		m.logger.Error("failed to start auto-deploy", zap.String("orchestration_id", o.ID), zap.Error(err))
	}

	return o, job, nil
}

// Get retrieves one orchestration
func (m *Manager) Get(ctx context.Context, id string) (*domain.Orchestration, error) {
	return m.repo.Get(ctx, id)
}

// List retrieves orchestrations matching the filter along with the total
// number of matches before pagination.
func (m *Manager) List(ctx context.Context, filter domain.OrchestrationFilter) ([]*domain.Orchestration, int, error) {
	return m.repo.List(ctx, filter)
}

// Update applies a partial update. Only name, deploy configuration and
// per-component scaling bounds can be patched; the component set is fixed
// at creation.
func (m *Manager) Update(ctx context.Context, id string, patch domain.OrchestrationPatch) (*domain.Orchestration, error) {
	return ports.UpdateWithRetry(ctx, m.repo, id, func(o *domain.Orchestration) error {
		if patch.Name != nil {
			o.Name = *patch.Name
		}
		if patch.Config != nil {
			o.Config = *patch.Config
		}
		for compID, s := range patch.Scaling {
			c := o.Component(compID)
			if c == nil {
				return &domain.NotFoundError{Kind: "component", ID: compID}
			}
			if s.Enabled {
				if s.MinReplicas < 1 || s.MaxReplicas < s.MinReplicas {
					return domain.NewValidationError("component %s: invalid replica bounds [%d, %d]", compID, s.MinReplicas, s.MaxReplicas)
				}
				if c.Scaling.CurrentReplicas < s.MinReplicas || c.Scaling.CurrentReplicas > s.MaxReplicas {
					return domain.NewValidationError("component %s: current replica count %d outside new bounds [%d, %d]",
						compID, c.Scaling.CurrentReplicas, s.MinReplicas, s.MaxReplicas)
				}
			}
			c.Scaling.Enabled = s.Enabled
			c.Scaling.MinReplicas = s.MinReplicas
			c.Scaling.MaxReplicas = s.MaxReplicas
			c.Scaling.TargetUtilization = s.TargetUtilization
			c.Scaling.Cooldown = s.Cooldown
			c.UpdatedAt = time.Now()
		}
		o.UpdatedAt = time.Now()
		return nil
	})
}

// Act dispatches a lifecycle action. Action failures are caught and
// returned in the structured result; only an unknown orchestration id is
// surfaced as an error.
func (m *Manager) Act(ctx context.Context, id string, action domain.Action, params ActionParams) (domain.ActionResult, error) {
	o, err := m.repo.Get(ctx, id)
	if err != nil {
		return domain.ActionResult{}, err
	}

	var result domain.ActionResult
	switch action {
	case domain.ActionDeploy, domain.ActionResume:
		result = m.actDeploy(ctx, o, string(action))
	case domain.ActionRestart:
		result = m.actRestart(ctx, o)
	case domain.ActionScale:
		result = m.actScale(ctx, o, params)
	case domain.ActionRollback:
		result = m.actRollback(ctx, o, params)
	case domain.ActionPause:
		result = m.actPause(ctx, o)
	default:
		result = domain.ActionResult{Success: false, Message: fmt.Sprintf("unknown action: %s", action)}
	}

	m.logger.Info("action dispatched",
		zap.String("orchestration_id", id),
		zap.String("action", string(action)),
		zap.Bool("success", result.Success),
		zap.String("message", result.Message))

	return result, nil
}

// Job returns the most recent deployment workflow for an orchestration
func (m *Manager) Job(id string) (*DeployJob, bool) {
	v, ok := m.jobs.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*DeployJob), true
}

// Delete cancels all supervision tasks, tears down every provisioned
// resource and removes the record. Deleting an unknown id returns a
// NotFoundError.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if _, err := m.repo.Get(ctx, id); err != nil {
		return err
	}

	// Abort any in-flight workflow; it checks for deletion between
	// provisioning steps and stops at the next boundary.
	if job, ok := m.Job(id); ok {
		job.Cancel()
		select {
		case <-job.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	release, err := m.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	if m.health != nil {
		m.health.UnregisterAll(id)
	}

	o, err := m.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	for _, c := range o.Components {
		if err := m.deployer.TeardownComponent(ctx, c); err != nil {
			m.logger.Error("component teardown failed during delete",
				zap.String("orchestration_id", id),
				zap.String("component_id", c.ID),
				zap.Error(err))
		}
	}

	if err := m.repo.Delete(ctx, id); err != nil {
		return err
	}

	m.jobs.Delete(id)
	m.publishEvent(ctx, ports.TopicOrchestrationEvents, ports.EventOrchestrationDeleted, id, "", nil)
	m.logger.Info("orchestration deleted", zap.String("orchestration_id", id))
	return nil
}

// Shutdown cancels all in-flight workflows and waits for them to finish
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down orchestration manager")

	var jobs []*DeployJob
	m.jobs.Range(func(_, value interface{}) bool {
		job := value.(*DeployJob)
		job.Cancel()
		jobs = append(jobs, job)
		return true
	})

	for _, job := range jobs {
		select {
		case <-job.Done():
		case <-ctx.Done():
			return fmt.Errorf("shutdown timeout")
		}
	}

	m.logger.Info("orchestration manager shut down complete")
	return nil
}

// Action implementations

func (m *Manager) actDeploy(ctx context.Context, o *domain.Orchestration, trigger string) domain.ActionResult {
	if !o.Status.CanTransitionTo(domain.OrchestrationStatusDeploying) {
		return domain.ActionResult{Success: false, Message: fmt.Sprintf("cannot deploy from status %s", o.Status)}
	}
	if _, err := m.startWorkflow(o.ID, trigger, nil); err != nil {
		return domain.ActionResult{Success: false, Message: err.Error()}
	}
	return domain.ActionResult{Success: true, Message: "deployment started"}
}

func (m *Manager) actRestart(ctx context.Context, o *domain.Orchestration) domain.ActionResult {
	if !o.Status.CanTransitionTo(domain.OrchestrationStatusDeploying) {
		return domain.ActionResult{Success: false, Message: fmt.Sprintf("cannot restart from status %s", o.Status)}
	}
	prepare := func(ctx context.Context, o *domain.Orchestration) error {
		return m.deployer.Restart(ctx, o)
	}
	if _, err := m.startWorkflow(o.ID, "restart", prepare); err != nil {
		return domain.ActionResult{Success: false, Message: err.Error()}
	}
	return domain.ActionResult{Success: true, Message: "restart started"}
}

func (m *Manager) actRollback(ctx context.Context, o *domain.Orchestration, params ActionParams) domain.ActionResult {
	target := params.Revision
	if target == 0 {
		target = o.Revision - 1
	}
	if target < 1 || o.FindRevision(target) == nil {
		err := &domain.RollbackError{Revision: target, Msg: "no snapshot stored for revision"}
		return domain.ActionResult{Success: false, Message: err.Error()}
	}
	if !o.Status.CanTransitionTo(domain.OrchestrationStatusDeploying) {
		return domain.ActionResult{Success: false, Message: fmt.Sprintf("cannot rollback from status %s", o.Status)}
	}

	prepare := func(ctx context.Context, o *domain.Orchestration) error {
		// The restored configuration is provisioned fresh; release the
		// current resources first.
		if m.health != nil {
			m.health.UnregisterAll(o.ID)
		}
		for _, c := range o.Components {
			if err := m.deployer.TeardownComponent(ctx, c); err != nil {
				m.logger.Error("component teardown failed during rollback",
					zap.String("orchestration_id", o.ID),
					zap.String("component_id", c.ID),
					zap.Error(err))
			}
		}
		return m.rollback.Restore(o, target)
	}

	if _, err := m.startWorkflow(o.ID, "rollback", prepare); err != nil {
		return domain.ActionResult{Success: false, Message: err.Error()}
	}
	m.publishEvent(ctx, ports.TopicOrchestrationEvents, ports.EventRollbackStarted, o.ID, "", map[string]interface{}{
		"target_revision": target,
	})
	return domain.ActionResult{Success: true, Message: fmt.Sprintf("rollback to revision %d started", target)}
}

func (m *Manager) actScale(ctx context.Context, o *domain.Orchestration, params ActionParams) domain.ActionResult {
	if params.Component == "" {
		return domain.ActionResult{Success: false, Message: "scale requires a component parameter"}
	}

	release, err := m.TryAcquire(o.ID, "scale")
	if err != nil {
		return domain.ActionResult{Success: false, Message: err.Error()}
	}
	defer release()

	if err := m.applyScale(ctx, o.ID, params.Component, params.Replicas); err != nil {
		return domain.ActionResult{Success: false, Message: err.Error()}
	}
	return domain.ActionResult{Success: true, Message: fmt.Sprintf("component %s scaled to %d replicas", params.Component, params.Replicas)}
}

// applyScale drives a component to the target replica count. The caller
// must hold the orchestration lock.
func (m *Manager) applyScale(ctx context.Context, id, componentID string, target int) error {
	o, err := m.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	c := o.Component(componentID)
	if c == nil {
		return &domain.NotFoundError{Kind: "component", ID: componentID}
	}
	if !c.Scaling.Enabled {
		return &domain.ScalingError{ComponentID: componentID, Msg: "scaling is not configured"}
	}
	if target < c.Scaling.MinReplicas || target > c.Scaling.MaxReplicas {
		return &domain.ScalingError{
			ComponentID: componentID,
			Msg: fmt.Sprintf("target %d outside bounds [%d, %d]",
				target, c.Scaling.MinReplicas, c.Scaling.MaxReplicas),
		}
	}
	if target == c.Scaling.CurrentReplicas {
		return nil
	}
	if c.Scaling.InCooldown(time.Now()) {
		return &domain.ScalingError{ComponentID: componentID, Msg: "cooldown window has not elapsed"}
	}
	if !o.Status.CanTransitionTo(domain.OrchestrationStatusScaling) {
		return &domain.ScalingError{ComponentID: componentID, Msg: fmt.Sprintf("cannot scale from status %s", o.Status)}
	}

	prior := o.Status
	o.Status = domain.OrchestrationStatusScaling
	if err := m.persistFrom(ctx, o); err != nil {
		return err
	}

	var scaleErr error
	for c.Scaling.CurrentReplicas < target && scaleErr == nil {
		scaleErr = m.deployer.ScaleUp(ctx, o, c)
	}
	for c.Scaling.CurrentReplicas > target && scaleErr == nil {
		scaleErr = m.deployer.ScaleDown(ctx, o, c)
	}

	if scaleErr != nil {
		o.Status = domain.OrchestrationStatusError
		o.StatusMessage = scaleErr.Error()
	} else {
		o.Status = domain.OrchestrationStatusRunning
		o.StatusMessage = ""
	}
	if err := m.persistFrom(ctx, o); err != nil {
		return err
	}
	if scaleErr != nil {
		return scaleErr
	}

	m.publishEvent(ctx, ports.TopicComponentEvents, ports.EventScaleApplied, id, componentID, map[string]interface{}{
		"replicas": target,
		"prior":    prior,
	})
	return nil
}

func (m *Manager) actPause(ctx context.Context, o *domain.Orchestration) domain.ActionResult {
	release, err := m.TryAcquire(o.ID, "pause")
	if err != nil {
		return domain.ActionResult{Success: false, Message: err.Error()}
	}
	defer release()

	latest, err := m.repo.Get(ctx, o.ID)
	if err != nil {
		return domain.ActionResult{Success: false, Message: err.Error()}
	}
	if !latest.Status.CanTransitionTo(domain.OrchestrationStatusStopped) {
		return domain.ActionResult{Success: false, Message: fmt.Sprintf("cannot pause from status %s", latest.Status)}
	}

	if m.health != nil {
		m.health.UnregisterAll(latest.ID)
	}

	// Components are not torn down, only administratively stopped
	for _, c := range latest.Components {
		if c.ResourceHandle == "" {
			continue
		}
		handles := append([]string{c.ResourceHandle}, c.ReplicaHandles...)
		for _, handle := range handles {
			if err := m.deployer.provisioner.Stop(ctx, handle); err != nil {
				m.logger.Error("failed to stop unit during pause",
					zap.String("orchestration_id", latest.ID),
					zap.String("component_id", c.ID),
					zap.Error(err))
			}
		}
		c.Status = domain.ComponentStatusStopped
		c.UpdatedAt = time.Now()
	}

	latest.Status = domain.OrchestrationStatusStopped
	latest.StatusMessage = "paused"
	if err := m.persistFrom(ctx, latest); err != nil {
		return domain.ActionResult{Success: false, Message: err.Error()}
	}
	return domain.ActionResult{Success: true, Message: "orchestration paused"}
}

// Workflow machinery

// startWorkflow begins an asynchronous deployment workflow under the
// orchestration lock. Exactly one workflow may be active per orchestration;
// a concurrent attempt fails with a ConflictError.
func (m *Manager) startWorkflow(id, trigger string, prepare func(ctx context.Context, o *domain.Orchestration) error) (*DeployJob, error) {
	release, err := m.TryAcquire(id, trigger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.deployTimeout)
	job := &DeployJob{
		OrchestrationID: id,
		Trigger:         trigger,
		cancel:          cancel,
		done:            make(chan struct{}),
	}
	m.jobs.Store(id, job)
	m.metrics.SetActiveWorkflows(int(m.activeWorkflows.Add(1)))

	go func() {
		defer func() {
			m.metrics.SetActiveWorkflows(int(m.activeWorkflows.Add(-1)))
			cancel()
			release()
			close(job.done)
		}()

		err := m.runWorkflow(ctx, id, trigger, prepare)
		job.setErr(err)
		if err != nil {
			// Background deploys own their failures: recorded on the
			// orchestration and logged, never thrown at a caller.
			m.logger.Error("deployment workflow failed",
				zap.String("orchestration_id", id),
				zap.String("trigger", trigger),
				zap.Error(err))
		}
	}()

	return job, nil
}

// runWorkflow executes one full deployment pass
func (m *Manager) runWorkflow(ctx context.Context, id, trigger string, prepare func(ctx context.Context, o *domain.Orchestration) error) error {
	start := time.Now()

	o, err := m.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !o.Status.CanTransitionTo(domain.OrchestrationStatusDeploying) {
		return fmt.Errorf("cannot deploy orchestration %s from status %s", id, o.Status)
	}

	if prepare != nil {
		if err := prepare(ctx, o); err != nil {
			m.finishWorkflow(ctx, o, start, err)
			return err
		}
	}

	o.Status = domain.OrchestrationStatusDeploying
	o.StatusMessage = ""
	if err := m.persistFrom(ctx, o); err != nil {
		return err
	}

	liveCheck := func(ctx context.Context) error {
		_, err := m.repo.Get(ctx, id)
		return err
	}
	persist := func(ctx context.Context, working *domain.Orchestration) error {
		return m.persistFrom(ctx, working)
	}

	deployErr := m.deployer.Deploy(ctx, o, liveCheck, persist)

	var notFound *domain.NotFoundError
	if errors.As(deployErr, &notFound) {
		m.logger.Info("orchestration deleted during deployment, aborting",
			zap.String("orchestration_id", id))
		return deployErr
	}

	m.finishWorkflow(ctx, o, start, deployErr)

	m.logger.Info("deployment workflow finished",
		zap.String("orchestration_id", id),
		zap.String("trigger", trigger),
		zap.String("status", string(o.Status)),
		zap.Duration("duration", time.Since(start)))

	return deployErr
}

// finishWorkflow records the terminal state of one workflow pass: error
// status on failure, or running status, an incremented revision and a fresh
// configuration snapshot on success.
func (m *Manager) finishWorkflow(ctx context.Context, o *domain.Orchestration, start time.Time, deployErr error) {
	duration := time.Since(start)

	if deployErr != nil {
		o.Status = domain.OrchestrationStatusError
		o.StatusMessage = deployErr.Error()
		if err := m.persistFrom(ctx, o); err != nil {
			m.logger.Error("failed to persist error status",
				zap.String("orchestration_id", o.ID), zap.Error(err))
		}
		m.metrics.RecordDeploy("error", duration)
		m.publishEvent(ctx, ports.TopicOrchestrationEvents, ports.EventOrchestrationFailed, o.ID, "", map[string]interface{}{
			"error": deployErr.Error(),
		})
		return
	}

	o.Status = domain.OrchestrationStatusRunning
	o.StatusMessage = ""
	o.Revision++
	o.Revisions = append(o.Revisions, o.Snapshot(o.Revision))
	if err := m.persistFrom(ctx, o); err != nil {
		m.logger.Error("failed to persist deployed status",
			zap.String("orchestration_id", o.ID), zap.Error(err))
		return
	}

	if m.health != nil {
		for _, c := range o.Components {
			if c.Status == domain.ComponentStatusRunning && c.Health.Enabled {
				m.health.Register(o.ID, c.Clone())
			}
		}
	}

	m.metrics.RecordDeploy("running", duration)
	m.publishEvent(ctx, ports.TopicOrchestrationEvents, ports.EventOrchestrationDeployed, o.ID, "", map[string]interface{}{
		"revision": o.Revision,
	})
}

// persistFrom writes the working copy's deploy-owned state (status,
// revisions, components) over the latest stored record, preserving the
// stored version counter for the optimistic check. Probe observations the
// health monitor persisted since the working copy was taken are kept.
func (m *Manager) persistFrom(ctx context.Context, working *domain.Orchestration) error {
	updated, err := ports.UpdateWithRetry(ctx, m.repo, working.ID, func(latest *domain.Orchestration) error {
		latest.Name = working.Name
		latest.Status = working.Status
		latest.StatusMessage = working.StatusMessage
		latest.Revision = working.Revision
		latest.Revisions = append([]domain.Revision(nil), working.Revisions...)
		components := make([]*domain.Component, len(working.Components))
		for i, c := range working.Components {
			clone := c.Clone()
			if prev := latest.Component(c.ID); prev != nil {
				clone.Health.MergeObservations(prev.Health)
			}
			components[i] = clone
		}
		latest.Components = components
		latest.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return err
	}
	working.Version = updated.Version
	return nil
}

// Locking

func (m *Manager) lockFor(id string) chan struct{} {
	v, _ := m.locks.LoadOrStore(id, make(chan struct{}, 1))
	return v.(chan struct{})
}

// TryAcquire takes the orchestration's logical lock without blocking. It
// returns a release function, or a ConflictError when another mutating
// action is in flight. Exported for the scaler, which acquires the lock
// only for the duration of applying a scale decision.
func (m *Manager) TryAcquire(id, action string) (func(), error) {
	lock := m.lockFor(id)
	select {
	case lock <- struct{}{}:
		return func() { <-lock }, nil
	default:
		return nil, &domain.ConflictError{OrchestrationID: id, Action: action}
	}
}

// acquire blocks until the orchestration's lock is available or ctx is done
func (m *Manager) acquire(ctx context.Context, id string) (func(), error) {
	lock := m.lockFor(id)
	select {
	case lock <- struct{}{}:
		return func() { <-lock }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Events

func (m *Manager) publishEvent(ctx context.Context, topic string, eventType ports.EventType, orchestrationID, componentID string, data map[string]interface{}) {
	if m.eventBus == nil {
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
	if err := m.eventBus.Publish(ctx, topic, event); err != nil {
		m.logger.Error("failed to publish event",
			zap.String("event_type", string(eventType)),
			zap.String("orchestration_id", orchestrationID),
			zap.Error(err))
	}
}
