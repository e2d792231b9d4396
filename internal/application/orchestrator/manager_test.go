package orchestrator

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
	memevents "github.com/stackd-io/stackd/pkg/adapters/events/memory"
	memstorage "github.com/stackd-io/stackd/pkg/adapters/storage/memory"
)

type fakeHealthRegistry struct {
	mu              sync.Mutex
	registered      []string
	unregisteredAll []string
}

func (f *fakeHealthRegistry) Register(orchestrationID string, c *domain.Component) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered = append(f.registered, c.ID)
}

func (f *fakeHealthRegistry) Unregister(orchestrationID, componentID string) {}

func (f *fakeHealthRegistry) UnregisterAll(orchestrationID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unregisteredAll = append(f.unregisteredAll, orchestrationID)
}

func (f *fakeHealthRegistry) unregisterAllCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.unregisteredAll)
}

type managerFixture struct {
	manager *Manager
	repo    ports.Repository
	prov    *fakeProvisioner
	health  *fakeHealthRegistry
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	logger := zap.NewNop()
	repo := memstorage.NewRepository(logger)
	prov := newFakeProvisioner()
	health := &fakeHealthRegistry{}

	manager := NewManager(
		repo,
		newTestDeployer(prov),
		memevents.NewInMemoryEventBus(),
		ports.NopMetricsCollector{},
		NewValidator(),
		NewRollbackController(logger),
		health,
		logger,
		30*time.Second,
	)

	return &managerFixture{manager: manager, repo: repo, prov: prov, health: health}
}

func awaitJob(t *testing.T, job *DeployJob) error {
	t.Helper()
	require.NotNil(t, job)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return job.Wait(ctx)
}

func TestCreateAutoDeploysToRunning(t *testing.T) {
	fx := newManagerFixture(t)
	ctx := context.Background()

	o, job, err := fx.manager.Create(ctx, validSpec())
	require.NoError(t, err)
	require.NoError(t, awaitJob(t, job))

	stored, err := fx.manager.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrchestrationStatusRunning, stored.Status)
	assert.Equal(t, 1, stored.Revision)
	require.Len(t, stored.Revisions, 1)
	for _, c := range stored.Components {
		assert.Equal(t, domain.ComponentStatusRunning, c.Status)
		assert.NotEmpty(t, c.ResourceHandle)
	}
}

func TestCreateRejectsInvalidSpec(t *testing.T) {
	fx := newManagerFixture(t)

	spec := validSpec()
	spec.Name = ""
	_, _, err := fx.manager.Create(context.Background(), spec)

	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)

	// nothing stored
	_, total, err := fx.manager.List(context.Background(), domain.OrchestrationFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreateFailedDeployRecordsErrorStatus(t *testing.T) {
	fx := newManagerFixture(t)
	fx.prov.failOn["api"] = errors.New("quota exceeded")
	ctx := context.Background()

	o, job, err := fx.manager.Create(ctx, validSpec())
	require.NoError(t, err)
	require.Error(t, awaitJob(t, job))

	stored, err := fx.manager.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrchestrationStatusError, stored.Status)
	assert.Contains(t, stored.StatusMessage, "quota exceeded")
	assert.Equal(t, 0, stored.Revision)
	assert.Empty(t, stored.Revisions)
}

func TestActDeployRetriesFromErrorStatus(t *testing.T) {
	fx := newManagerFixture(t)
	fx.prov.failOn["api"] = errors.New("quota exceeded")
	ctx := context.Background()

	o, job, err := fx.manager.Create(ctx, validSpec())
	require.NoError(t, err)
	require.Error(t, awaitJob(t, job))

	delete(fx.prov.failOn, "api")

	result, err := fx.manager.Act(ctx, o.ID, domain.ActionDeploy, ActionParams{})
	require.NoError(t, err)
	assert.True(t, result.Success)

	retryJob, ok := fx.manager.Job(o.ID)
	require.True(t, ok)
	require.NoError(t, awaitJob(t, retryJob))

	stored, err := fx.manager.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrchestrationStatusRunning, stored.Status)
	assert.Equal(t, 1, stored.Revision)
}

func TestActUnknownActionReturnsStructuredFailure(t *testing.T) {
	fx := newManagerFixture(t)
	ctx := context.Background()

	o, job, err := fx.manager.Create(ctx, validSpec())
	require.NoError(t, err)
	require.NoError(t, awaitJob(t, job))

	result, err := fx.manager.Act(ctx, o.ID, "explode", ActionParams{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "unknown action")
}

func TestActUnknownOrchestrationReturnsNotFound(t *testing.T) {
	fx := newManagerFixture(t)

	_, err := fx.manager.Act(context.Background(), "missing", domain.ActionDeploy, ActionParams{})

	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestActScaleDrivesComponentToTarget(t *testing.T) {
	fx := newManagerFixture(t)
	ctx := context.Background()

	spec := validSpec()
	spec.Components[1].Scaling = domain.ScalingSpec{Enabled: true, MinReplicas: 1, MaxReplicas: 5, Cooldown: time.Minute}
	o, job, err := fx.manager.Create(ctx, spec)
	require.NoError(t, err)
	require.NoError(t, awaitJob(t, job))

	result, err := fx.manager.Act(ctx, o.ID, domain.ActionScale, ActionParams{Component: "api", Replicas: 3})
	require.NoError(t, err)
	assert.True(t, result.Success, result.Message)

	stored, err := fx.manager.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrchestrationStatusRunning, stored.Status)
	api := stored.Component("api")
	assert.Equal(t, 3, api.Scaling.CurrentReplicas)
	assert.Len(t, api.ReplicaHandles, 2)
}

func TestActScaleEnforcesCooldown(t *testing.T) {
	fx := newManagerFixture(t)
	ctx := context.Background()

	spec := validSpec()
	spec.Components[1].Scaling = domain.ScalingSpec{Enabled: true, MinReplicas: 1, MaxReplicas: 5, Cooldown: time.Minute}
	o, job, err := fx.manager.Create(ctx, spec)
	require.NoError(t, err)
	require.NoError(t, awaitJob(t, job))

	result, err := fx.manager.Act(ctx, o.ID, domain.ActionScale, ActionParams{Component: "api", Replicas: 2})
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)

	result, err = fx.manager.Act(ctx, o.ID, domain.ActionScale, ActionParams{Component: "api", Replicas: 3})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "cooldown")
}

func TestActScaleRejectsTargetOutsideBounds(t *testing.T) {
	fx := newManagerFixture(t)
	ctx := context.Background()

	spec := validSpec()
	spec.Components[1].Scaling = domain.ScalingSpec{Enabled: true, MinReplicas: 1, MaxReplicas: 3}
	o, job, err := fx.manager.Create(ctx, spec)
	require.NoError(t, err)
	require.NoError(t, awaitJob(t, job))

	result, err := fx.manager.Act(ctx, o.ID, domain.ActionScale, ActionParams{Component: "api", Replicas: 10})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "bounds")
}

func TestActRejectsConcurrentMutatingActions(t *testing.T) {
	fx := newManagerFixture(t)
	ctx := context.Background()

	o, job, err := fx.manager.Create(ctx, validSpec())
	require.NoError(t, err)
	require.NoError(t, awaitJob(t, job))

	release, err := fx.manager.TryAcquire(o.ID, "deploy")
	require.NoError(t, err)
	defer release()

	result, err := fx.manager.Act(ctx, o.ID, domain.ActionScale, ActionParams{Component: "api", Replicas: 2})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "busy")
}

func TestActPauseAndResume(t *testing.T) {
	fx := newManagerFixture(t)
	ctx := context.Background()

	o, job, err := fx.manager.Create(ctx, validSpec())
	require.NoError(t, err)
	require.NoError(t, awaitJob(t, job))

	result, err := fx.manager.Act(ctx, o.ID, domain.ActionPause, ActionParams{})
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)

	stored, err := fx.manager.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrchestrationStatusStopped, stored.Status)
	for _, c := range stored.Components {
		assert.Equal(t, domain.ComponentStatusStopped, c.Status)
		assert.NotEmpty(t, c.ResourceHandle, "pause keeps resource handles")
	}
	assert.GreaterOrEqual(t, fx.health.unregisterAllCalls(), 1)

	provisionsBeforeResume := len(fx.prov.provisionedIDs())

	result, err = fx.manager.Act(ctx, o.ID, domain.ActionResume, ActionParams{})
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)

	resumeJob, ok := fx.manager.Job(o.ID)
	require.True(t, ok)
	require.NoError(t, awaitJob(t, resumeJob))

	stored, err = fx.manager.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrchestrationStatusRunning, stored.Status)
	for _, c := range stored.Components {
		assert.Equal(t, domain.ComponentStatusRunning, c.Status)
	}
	// resumed in place, nothing re-provisioned
	assert.Len(t, fx.prov.provisionedIDs(), provisionsBeforeResume)
}

func TestActRollbackRestoresSnapshotConfiguration(t *testing.T) {
	fx := newManagerFixture(t)
	ctx := context.Background()

	o, job, err := fx.manager.Create(ctx, validSpec())
	require.NoError(t, err)
	require.NoError(t, awaitJob(t, job))

	// change a component's configuration out of band and redeploy for a
	// second revision
	stored, err := fx.repo.Get(ctx, o.ID)
	require.NoError(t, err)
	stored.Component("db").Config.ComputeUnit.Image = "postgres:16"
	for _, c := range stored.Components {
		c.Status = domain.ComponentStatusCreating
		c.ResourceHandle = ""
	}
	require.NoError(t, fx.repo.Update(ctx, stored))

	result, err := fx.manager.Act(ctx, o.ID, domain.ActionDeploy, ActionParams{})
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)
	redeployJob, ok := fx.manager.Job(o.ID)
	require.True(t, ok)
	require.NoError(t, awaitJob(t, redeployJob))

	stored, err = fx.manager.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stored.Revision)
	require.Equal(t, "postgres:16", stored.Component("db").Config.ComputeUnit.Image)

	// roll back to the first revision
	result, err = fx.manager.Act(ctx, o.ID, domain.ActionRollback, ActionParams{Revision: 1})
	require.NoError(t, err)
	require.True(t, result.Success, result.Message)
	rollbackJob, ok := fx.manager.Job(o.ID)
	require.True(t, ok)
	require.NoError(t, awaitJob(t, rollbackJob))

	stored, err = fx.manager.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrchestrationStatusRunning, stored.Status)
	assert.Equal(t, "nginx:1.25", stored.Component("db").Config.ComputeUnit.Image)
	// rollback itself is a new revision
	assert.Equal(t, 3, stored.Revision)
}

func TestActRollbackToMissingRevisionFails(t *testing.T) {
	fx := newManagerFixture(t)
	ctx := context.Background()

	o, job, err := fx.manager.Create(ctx, validSpec())
	require.NoError(t, err)
	require.NoError(t, awaitJob(t, job))

	result, err := fx.manager.Act(ctx, o.ID, domain.ActionRollback, ActionParams{Revision: 7})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "no snapshot")
}

func TestDeleteTearsDownAndForgets(t *testing.T) {
	fx := newManagerFixture(t)
	ctx := context.Background()

	o, job, err := fx.manager.Create(ctx, validSpec())
	require.NoError(t, err)
	require.NoError(t, awaitJob(t, job))

	require.NoError(t, fx.manager.Delete(ctx, o.ID))

	assert.GreaterOrEqual(t, fx.health.unregisterAllCalls(), 1)
	assert.Len(t, fx.prov.torndown, 3)

	_, err = fx.manager.Get(ctx, o.ID)
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)

	// second delete reports not found
	err = fx.manager.Delete(ctx, o.ID)
	require.ErrorAs(t, err, &notFound)
}

func TestUpdatePatchesScalingBounds(t *testing.T) {
	fx := newManagerFixture(t)
	ctx := context.Background()

	o, job, err := fx.manager.Create(ctx, validSpec())
	require.NoError(t, err)
	require.NoError(t, awaitJob(t, job))

	updated, err := fx.manager.Update(ctx, o.ID, domain.OrchestrationPatch{
		Scaling: map[string]domain.ScalingSpec{
			"api": {Enabled: true, MinReplicas: 1, MaxReplicas: 4, TargetUtilization: 70},
		},
	})
	require.NoError(t, err)

	api := updated.Component("api")
	assert.True(t, api.Scaling.Enabled)
	assert.Equal(t, 4, api.Scaling.MaxReplicas)
	assert.Equal(t, 70, api.Scaling.TargetUtilization)
}

func TestUpdateRejectsBoundsExcludingCurrentReplicas(t *testing.T) {
	fx := newManagerFixture(t)
	ctx := context.Background()

	o, job, err := fx.manager.Create(ctx, validSpec())
	require.NoError(t, err)
	require.NoError(t, awaitJob(t, job))

	_, err = fx.manager.Update(ctx, o.ID, domain.OrchestrationPatch{
		Scaling: map[string]domain.ScalingSpec{
			"api": {Enabled: true, MinReplicas: 3, MaxReplicas: 5},
		},
	})

	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestIndependentOrchestrationsDeployConcurrently(t *testing.T) {
	fx := newManagerFixture(t)
	ctx := context.Background()

	a, jobA, err := fx.manager.Create(ctx, validSpec())
	require.NoError(t, err)
	b, jobB, err := fx.manager.Create(ctx, validSpec())
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)

	require.NoError(t, awaitJob(t, jobA))
	require.NoError(t, awaitJob(t, jobB))

	for _, id := range []string{a.ID, b.ID} {
		stored, err := fx.manager.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.OrchestrationStatusRunning, stored.Status)
	}
}

func TestWorkflowPersistKeepsConcurrentProbeResults(t *testing.T) {
	fx := newManagerFixture(t)
	ctx := context.Background()

	o, job, err := fx.manager.Create(ctx, validSpec())
	require.NoError(t, err)
	require.NoError(t, awaitJob(t, job))

	working, err := fx.repo.Get(ctx, o.ID)
	require.NoError(t, err)

	// a probe task writes while the workflow holds its working copy
	_, err = ports.UpdateWithRetry(ctx, fx.repo, o.ID, func(latest *domain.Orchestration) error {
		latest.Component("db").Health.RecordProbe(domain.ProbeResult{OK: false, Output: "connection refused", At: time.Now()})
		return nil
	})
	require.NoError(t, err)

	working.StatusMessage = "redeploying"
	require.NoError(t, fx.manager.persistFrom(ctx, working))

	stored, err := fx.repo.Get(ctx, o.ID)
	require.NoError(t, err)
	health := stored.Component("db").Health
	assert.Equal(t, domain.HealthStatusUnhealthy, health.Status)
	assert.Equal(t, 1, health.FailureCount)
	assert.Len(t, health.Recent, 1)
	assert.Equal(t, "redeploying", stored.StatusMessage)
}
