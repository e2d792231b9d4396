package supervisor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/stackd-io/stackd/internal/domain"
	"github.com/stackd-io/stackd/internal/ports"
)

// ActionLocker grants the per-orchestration action lock without blocking.
// The manager implements it; a held lock means a deploy, rollback or manual
// scale is in flight and the scaler skips this cycle.
type ActionLocker interface {
	TryAcquire(id, action string) (func(), error)
}

// ScaleExecutor applies a single replica step to a component
type ScaleExecutor interface {
	ScaleUp(ctx context.Context, o *domain.Orchestration, c *domain.Component) error
	ScaleDown(ctx context.Context, o *domain.Orchestration, c *domain.Component) error
}

type scaleDirection int

const (
	scaleNone scaleDirection = iota
	scaleUp
	scaleDown
)

// Scaler periodically evaluates utilization against per-component targets
// and applies one replica step at a time. Metric sampling runs outside the
// orchestration lock; only applying a decision takes it.
type Scaler struct {
	repo     ports.Repository
	source   ports.MetricSource
	locker   ActionLocker
	executor ScaleExecutor
	logger   *zap.Logger

	interval time.Duration

	// defaultCooldown applies to components that declare no cooldown of
	// their own; the window between scale actions is never zero.
	defaultCooldown time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewScaler creates a new reactive scaler
func NewScaler(
	repo ports.Repository,
	source ports.MetricSource,
	locker ActionLocker,
	executor ScaleExecutor,
	logger *zap.Logger,
	interval time.Duration,
	defaultCooldown time.Duration,
) *Scaler {
	return &Scaler{
		repo:            repo,
		source:          source,
		locker:          locker,
		executor:        executor,
		logger:          logger,
		interval:        interval,
		defaultCooldown: defaultCooldown,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
}

// Start begins the evaluation loop
func (s *Scaler) Start() {
	go s.loop()
	s.logger.Info("scaler started", zap.Duration("interval", s.interval))
}

// Stop halts the evaluation loop and waits for the current cycle to finish
func (s *Scaler) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.logger.Info("scaler stopped")
}

func (s *Scaler) loop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			s.evaluateAll(ctx)
			cancel()
		}
	}
}

// EvaluateOnce runs a single evaluation cycle
func (s *Scaler) EvaluateOnce(ctx context.Context) {
	s.evaluateAll(ctx)
}

func (s *Scaler) evaluateAll(ctx context.Context) {
	orchestrations, _, err := s.repo.List(ctx, domain.OrchestrationFilter{
		Status: domain.OrchestrationStatusRunning,
	})
	if err != nil {
		s.logger.Error("scaler failed to list orchestrations", zap.Error(err))
		return
	}

	for _, o := range orchestrations {
		for _, c := range o.Components {
			if !s.eligible(c) {
				continue
			}
			direction := s.decide(ctx, o.ID, c)
			if direction == scaleNone {
				continue
			}
			s.apply(ctx, o.ID, c.ID, direction)
		}
	}
}

// inCooldown checks the component's cooldown window, falling back to the
// configured default when the component declares none.
func (s *Scaler) inCooldown(c *domain.Component, now time.Time) bool {
	if c.Scaling.Cooldown > 0 || s.defaultCooldown <= 0 {
		return c.Scaling.InCooldown(now)
	}
	withDefault := c.Scaling
	withDefault.Cooldown = s.defaultCooldown
	return withDefault.InCooldown(now)
}

// eligible reports whether a component participates in reactive scaling
func (s *Scaler) eligible(c *domain.Component) bool {
	return c.Scaling.Enabled &&
		c.Scaling.TargetUtilization > 0 &&
		c.Status == domain.ComponentStatusRunning &&
		c.ResourceHandle != ""
}

// decide samples utilization and returns the scale direction. Scale up when
// any dimension exceeds the target, scale down when every dimension sits
// below half the target. Bounds and cooldown turn a decision into a no-op
// here, before any lock is taken.
func (s *Scaler) decide(ctx context.Context, orchestrationID string, c *domain.Component) scaleDirection {
	util, err := s.source.GetUtilization(ctx, c.ResourceHandle)
	if err != nil {
		s.logger.Warn("failed to sample utilization",
			zap.String("orchestration_id", orchestrationID),
			zap.String("component_id", c.ID),
			zap.Error(err))
		return scaleNone
	}

	target := float64(c.Scaling.TargetUtilization)
	var direction scaleDirection
	switch {
	case util.CPUPercent > target || util.MemoryPercent > target:
		direction = scaleUp
	case util.CPUPercent < target/2 && util.MemoryPercent < target/2:
		direction = scaleDown
	default:
		return scaleNone
	}

	if direction == scaleUp && c.Scaling.CurrentReplicas >= c.Scaling.MaxReplicas {
		return scaleNone
	}
	if direction == scaleDown && c.Scaling.CurrentReplicas <= c.Scaling.MinReplicas {
		return scaleNone
	}
	if s.inCooldown(c, time.Now()) {
		return scaleNone
	}

	s.logger.Info("scale decision",
		zap.String("orchestration_id", orchestrationID),
		zap.String("component_id", c.ID),
		zap.Float64("cpu_percent", util.CPUPercent),
		zap.Float64("memory_percent", util.MemoryPercent),
		zap.Float64("target", target),
		zap.Int("current_replicas", c.Scaling.CurrentReplicas),
		zap.Bool("up", direction == scaleUp))

	return direction
}

// apply takes the orchestration lock, revalidates the decision against the
// latest record and applies one replica step through the executor.
func (s *Scaler) apply(ctx context.Context, orchestrationID, componentID string, direction scaleDirection) {
	release, err := s.locker.TryAcquire(orchestrationID, "scale")
	if err != nil {
		// another action holds the lock, try again next cycle
		return
	}
	defer release()

	o, err := s.repo.Get(ctx, orchestrationID)
	if err != nil {
		return
	}
	c := o.Component(componentID)
	if c == nil || !s.eligible(c) || s.inCooldown(c, time.Now()) {
		return
	}
	if direction == scaleUp && c.Scaling.CurrentReplicas >= c.Scaling.MaxReplicas {
		return
	}
	if direction == scaleDown && c.Scaling.CurrentReplicas <= c.Scaling.MinReplicas {
		return
	}
	if !o.Status.CanTransitionTo(domain.OrchestrationStatusScaling) {
		return
	}

	o.Status = domain.OrchestrationStatusScaling
	if err := s.persist(ctx, o); err != nil {
		s.logger.Error("failed to persist scaling status",
			zap.String("orchestration_id", orchestrationID), zap.Error(err))
		return
	}

	// The executor records the scale action metric when the step succeeds
	var scaleErr error
	if direction == scaleUp {
		scaleErr = s.executor.ScaleUp(ctx, o, c)
	} else {
		scaleErr = s.executor.ScaleDown(ctx, o, c)
	}

	if scaleErr != nil {
		o.Status = domain.OrchestrationStatusError
		o.StatusMessage = scaleErr.Error()
		s.logger.Error("scale step failed",
			zap.String("orchestration_id", orchestrationID),
			zap.String("component_id", componentID),
			zap.Error(scaleErr))
	} else {
		o.Status = domain.OrchestrationStatusRunning
		o.StatusMessage = ""
	}

	if err := s.persist(ctx, o); err != nil {
		s.logger.Error("failed to persist scale result",
			zap.String("orchestration_id", orchestrationID), zap.Error(err))
	}
}

// persist writes the working copy's status and component state over the
// latest stored record. Probe observations persisted concurrently by the
// health monitor are kept when they are newer than the working copy's.
func (s *Scaler) persist(ctx context.Context, working *domain.Orchestration) error {
	updated, err := ports.UpdateWithRetry(ctx, s.repo, working.ID, func(latest *domain.Orchestration) error {
		latest.Status = working.Status
		latest.StatusMessage = working.StatusMessage
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
