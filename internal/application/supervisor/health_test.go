package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stackd-io/stackd/internal/domain"
	"github.com/stackd-io/stackd/internal/ports"
	memstorage "github.com/stackd-io/stackd/pkg/adapters/storage/memory"
)

type fakeProbeExecutor struct {
	mu    sync.Mutex
	ok    bool
	err   error
	calls int
}

func (f *fakeProbeExecutor) Probe(ctx context.Context, handle string, spec ports.ProbeSpec) (ports.ProbeOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return ports.ProbeOutcome{}, f.err
	}
	return ports.ProbeOutcome{OK: f.ok, Latency: time.Millisecond, Output: "probed"}, nil
}

func (f *fakeProbeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeProbeExecutor) setOK(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ok = ok
}

func seedOrchestration(t *testing.T, repo ports.Repository, endpoint string) (*domain.Orchestration, *domain.Component) {
	t.Helper()

	c := domain.NewComponent(domain.ComponentSpec{
		ID:   "api",
		Type: domain.ComponentTypeComputeUnit,
		Config: domain.ComponentConfig{
			ComputeUnit: &domain.ComputeUnitConfig{Image: "nginx:1.25"},
		},
		Health: domain.HealthCheckSpec{
			Enabled:  true,
			Endpoint: endpoint,
			Interval: 10 * time.Millisecond,
		},
	})
	c.Status = domain.ComponentStatusRunning
	c.ResourceHandle = "unit-api-1"

	o := &domain.Orchestration{
		ID:         "orch-1",
		Name:       "test",
		Status:     domain.OrchestrationStatusRunning,
		Components: []*domain.Component{c},
	}
	require.NoError(t, repo.Create(context.Background(), o))
	return o, c
}

func newTestMonitor(repo ports.Repository, probes ports.ProbeExecutor) *HealthMonitor {
	return NewHealthMonitor(repo, probes, ports.NopMetricsCollector{}, zap.NewNop(), 30*time.Second, time.Second)
}

func TestProbeSuccessResetsFailureCount(t *testing.T) {
	repo := memstorage.NewRepository(zap.NewNop())
	o, c := seedOrchestration(t, repo, "http://localhost:9999/health")

	// seed a prior failure streak
	stored, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	stored.Component(c.ID).Health.Status = domain.HealthStatusUnhealthy
	stored.Component(c.ID).Health.FailureCount = 3
	require.NoError(t, repo.Update(context.Background(), stored))

	probes := &fakeProbeExecutor{ok: true}
	m := newTestMonitor(repo, probes)

	key := taskKey{orchestrationID: o.ID, componentID: c.ID}
	gone := m.probeOnce(context.Background(), key, c)
	assert.False(t, gone)

	stored, err = repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	health := stored.Component(c.ID).Health
	assert.Equal(t, domain.HealthStatusHealthy, health.Status)
	assert.Zero(t, health.FailureCount)
	assert.False(t, health.LastCheck.IsZero())
}

func TestProbeFailuresAccumulate(t *testing.T) {
	repo := memstorage.NewRepository(zap.NewNop())
	o, c := seedOrchestration(t, repo, "http://localhost:9999/health")

	probes := &fakeProbeExecutor{ok: false}
	m := newTestMonitor(repo, probes)

	key := taskKey{orchestrationID: o.ID, componentID: c.ID}
	for i := 0; i < 3; i++ {
		m.probeOnce(context.Background(), key, c)
	}

	stored, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	health := stored.Component(c.ID).Health
	assert.Equal(t, domain.HealthStatusUnhealthy, health.Status)
	assert.Equal(t, 3, health.FailureCount)
}

func TestProbeTransportErrorCountsAsFailure(t *testing.T) {
	repo := memstorage.NewRepository(zap.NewNop())
	o, c := seedOrchestration(t, repo, "http://localhost:9999/health")

	probes := &fakeProbeExecutor{err: errors.New("connection refused")}
	m := newTestMonitor(repo, probes)

	key := taskKey{orchestrationID: o.ID, componentID: c.ID}
	m.probeOnce(context.Background(), key, c)

	stored, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	health := stored.Component(c.ID).Health
	assert.Equal(t, domain.HealthStatusUnhealthy, health.Status)
	assert.Contains(t, stored.Component(c.ID).LastError, "connection refused")
}

func TestProbeHistoryBounded(t *testing.T) {
	repo := memstorage.NewRepository(zap.NewNop())
	o, c := seedOrchestration(t, repo, "http://localhost:9999/health")

	probes := &fakeProbeExecutor{ok: true}
	m := newTestMonitor(repo, probes)

	key := taskKey{orchestrationID: o.ID, componentID: c.ID}
	for i := 0; i < domain.ProbeRingCapacity+5; i++ {
		m.probeOnce(context.Background(), key, c)
	}

	stored, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Component(c.ID).Health.Recent, domain.ProbeRingCapacity)
}

func TestProbeReportsGoneAfterDelete(t *testing.T) {
	repo := memstorage.NewRepository(zap.NewNop())
	o, c := seedOrchestration(t, repo, "http://localhost:9999/health")

	probes := &fakeProbeExecutor{ok: true}
	m := newTestMonitor(repo, probes)

	require.NoError(t, repo.Delete(context.Background(), o.ID))

	key := taskKey{orchestrationID: o.ID, componentID: c.ID}
	gone := m.probeOnce(context.Background(), key, c)
	assert.True(t, gone)
}

func TestExistenceCheckFollowsComponentStatus(t *testing.T) {
	repo := memstorage.NewRepository(zap.NewNop())
	o, c := seedOrchestration(t, repo, "")

	m := newTestMonitor(repo, nil)
	key := taskKey{orchestrationID: o.ID, componentID: c.ID}

	result := m.execute(context.Background(), key, c)
	assert.True(t, result.OK)

	stored, err := repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	stored.Component(c.ID).Status = domain.ComponentStatusStopped
	require.NoError(t, repo.Update(context.Background(), stored))

	result = m.execute(context.Background(), key, c)
	assert.False(t, result.OK)
}

func TestRegisterRunsPeriodicProbes(t *testing.T) {
	repo := memstorage.NewRepository(zap.NewNop())
	o, c := seedOrchestration(t, repo, "http://localhost:9999/health")

	probes := &fakeProbeExecutor{ok: true}
	m := newTestMonitor(repo, probes)

	m.Register(o.ID, c)
	defer m.Stop()

	require.Eventually(t, func() bool {
		return probes.callCount() >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestUnregisterAllStopsTasks(t *testing.T) {
	repo := memstorage.NewRepository(zap.NewNop())
	o, c := seedOrchestration(t, repo, "http://localhost:9999/health")

	probes := &fakeProbeExecutor{ok: true}
	m := newTestMonitor(repo, probes)

	m.Register(o.ID, c)
	require.Eventually(t, func() bool {
		return probes.callCount() >= 1
	}, 2*time.Second, 5*time.Millisecond)

	m.UnregisterAll(o.ID)
	time.Sleep(30 * time.Millisecond)
	settled := probes.callCount()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, probes.callCount())
}

func TestRegisterSkipsDisabledHealthChecks(t *testing.T) {
	repo := memstorage.NewRepository(zap.NewNop())
	_, c := seedOrchestration(t, repo, "")
	c.Health.Enabled = false

	m := newTestMonitor(repo, nil)
	m.Register("orch-1", c)

	m.mu.Lock()
	assert.Empty(t, m.tasks)
	m.mu.Unlock()
}
