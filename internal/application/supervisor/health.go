package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stackd-io/stackd/internal/domain"
	"github.com/stackd-io/stackd/internal/ports"
)

type taskKey struct {
	orchestrationID string
	componentID     string
}

type probeTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// HealthMonitor runs one cancellable probe task per supervised component.
// Probe results are persisted with optimistic retries and never take the
// orchestration lock, so supervision keeps running through deploys and
// scale actions on other components.
type HealthMonitor struct {
	repo    ports.Repository
	probes  ports.ProbeExecutor
	metrics ports.MetricsCollector
	logger  *zap.Logger

	defaultInterval time.Duration
	probeTimeout    time.Duration

	mu    sync.Mutex
	tasks map[taskKey]*probeTask
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(
	repo ports.Repository,
	probes ports.ProbeExecutor,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	defaultInterval time.Duration,
	probeTimeout time.Duration,
) *HealthMonitor {
	return &HealthMonitor{
		repo:            repo,
		probes:          probes,
		metrics:         metrics,
		logger:          logger,
		defaultInterval: defaultInterval,
		probeTimeout:    probeTimeout,
		tasks:           make(map[taskKey]*probeTask),
	}
}

// Register starts a probe task for a component, replacing any existing task
// for the same component.
func (m *HealthMonitor) Register(orchestrationID string, component *domain.Component) {
	if !component.Health.Enabled {
		return
	}

	key := taskKey{orchestrationID: orchestrationID, componentID: component.ID}
	interval := component.Health.Interval
	if interval <= 0 {
		interval = m.defaultInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	task := &probeTask{cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	if old, ok := m.tasks[key]; ok {
		old.cancel()
	}
	m.tasks[key] = task
	m.metrics.SetActiveProbeTasks(len(m.tasks))
	m.mu.Unlock()

	go m.run(ctx, task, key, component.Clone(), interval)

	m.logger.Debug("probe task registered",
		zap.String("orchestration_id", orchestrationID),
		zap.String("component_id", component.ID),
		zap.Duration("interval", interval))
}

// Unregister cancels the probe task for one component
func (m *HealthMonitor) Unregister(orchestrationID, componentID string) {
	key := taskKey{orchestrationID: orchestrationID, componentID: componentID}

	m.mu.Lock()
	task, ok := m.tasks[key]
	if ok {
		delete(m.tasks, key)
		m.metrics.SetActiveProbeTasks(len(m.tasks))
	}
	m.mu.Unlock()

	if ok {
		task.cancel()
	}
}

// UnregisterAll cancels every probe task belonging to an orchestration
func (m *HealthMonitor) UnregisterAll(orchestrationID string) {
	m.mu.Lock()
	var cancelled []*probeTask
	for key, task := range m.tasks {
		if key.orchestrationID == orchestrationID {
			delete(m.tasks, key)
			cancelled = append(cancelled, task)
		}
	}
	m.metrics.SetActiveProbeTasks(len(m.tasks))
	m.mu.Unlock()

	for _, task := range cancelled {
		task.cancel()
	}
}

// Stop cancels all probe tasks and waits for them to finish
func (m *HealthMonitor) Stop() {
	m.mu.Lock()
	tasks := make([]*probeTask, 0, len(m.tasks))
	for key, task := range m.tasks {
		delete(m.tasks, key)
		tasks = append(tasks, task)
	}
	m.metrics.SetActiveProbeTasks(0)
	m.mu.Unlock()

	for _, task := range tasks {
		task.cancel()
	}
	for _, task := range tasks {
		<-task.done
	}
	m.logger.Info("health monitor stopped")
}

func (m *HealthMonitor) run(ctx context.Context, task *probeTask, key taskKey, component *domain.Component, interval time.Duration) {
	defer close(task.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if gone := m.probeOnce(ctx, key, component); gone {
				m.Unregister(key.orchestrationID, key.componentID)
				return
			}
		}
	}
}

// probeOnce executes a single probe and persists the result. It reports
// true when the supervised target no longer exists and the task should
// stop itself.
func (m *HealthMonitor) probeOnce(ctx context.Context, key taskKey, component *domain.Component) bool {
	result := m.execute(ctx, key, component)
	m.metrics.RecordProbe(result.OK, result.Latency)

	_, err := ports.UpdateWithRetry(ctx, m.repo, key.orchestrationID, func(o *domain.Orchestration) error {
		c := o.Component(key.componentID)
		if c == nil {
			return &domain.NotFoundError{Kind: "component", ID: key.componentID}
		}
		c.Health.RecordProbe(result)
		if !result.OK {
			c.LastError = result.Output
		}
		return nil
	})
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return true
		}
		if ctx.Err() == nil {
			m.logger.Error("failed to persist probe result",
				zap.String("orchestration_id", key.orchestrationID),
				zap.String("component_id", key.componentID),
				zap.Error(err))
		}
		return false
	}

	if !result.OK {
		m.logger.Warn("health probe failed",
			zap.String("orchestration_id", key.orchestrationID),
			zap.String("component_id", key.componentID),
			zap.String("output", result.Output))
	}
	return false
}

// execute performs the probe itself. Components with an endpoint get a real
// probe through the executor; the rest get an existence check that verifies
// the stored record still tracks a live handle.
func (m *HealthMonitor) execute(ctx context.Context, key taskKey, component *domain.Component) domain.ProbeResult {
	now := time.Now()

	if component.Health.Endpoint != "" && m.probes != nil {
		pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
		defer cancel()

		outcome, err := m.probes.Probe(pctx, component.ResourceHandle, ports.ProbeSpec{
			Endpoint: component.Health.Endpoint,
			Timeout:  m.probeTimeout,
		})
		if err != nil {
			return domain.ProbeResult{OK: false, Latency: time.Since(now), Output: err.Error(), At: now}
		}
		return domain.ProbeResult{OK: outcome.OK, Latency: outcome.Latency, Output: outcome.Output, At: now}
	}

	o, err := m.repo.Get(ctx, key.orchestrationID)
	if err != nil {
		return domain.ProbeResult{OK: false, Latency: time.Since(now), Output: err.Error(), At: now}
	}
	c := o.Component(component.ID)
	if c == nil || c.ResourceHandle == "" {
		return domain.ProbeResult{OK: false, Latency: time.Since(now), Output: "no provisioned unit", At: now}
	}
	return domain.ProbeResult{OK: c.Status == domain.ComponentStatusRunning, Latency: time.Since(now), At: now}
}
