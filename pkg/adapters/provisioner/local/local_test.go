package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stackd-io/stackd/internal/domain"
	"github.com/stackd-io/stackd/internal/ports"
)

func computeSpec(id string, exposed ...int) ports.ProvisionSpec {
	return ports.ProvisionSpec{
		ComponentID: id,
		Type:        domain.ComponentTypeComputeUnit,
		Config: domain.ComponentConfig{
			ComputeUnit: &domain.ComputeUnitConfig{
				Image:        "nginx:1.25",
				ExposedPorts: exposed,
			},
		},
	}
}

func TestProvisionAndTeardown(t *testing.T) {
	p := NewProvisioner(zap.NewNop())

	handle, err := p.Provision(context.Background(), computeSpec("web", 8080))
	require.NoError(t, err)
	assert.NotEmpty(t, handle)
	assert.True(t, p.IsRunning(handle))
	assert.Equal(t, 1, p.UnitCount())

	require.NoError(t, p.Teardown(context.Background(), handle))
	assert.False(t, p.IsRunning(handle))
	assert.Zero(t, p.UnitCount())
}

func TestProvisionRejectsPortCollision(t *testing.T) {
	p := NewProvisioner(zap.NewNop())

	first, err := p.Provision(context.Background(), computeSpec("web", 8080))
	require.NoError(t, err)

	_, err = p.Provision(context.Background(), computeSpec("other", 8080))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already allocated")

	// releasing the owner frees the port for reuse
	require.NoError(t, p.Teardown(context.Background(), first))
	_, err = p.Provision(context.Background(), computeSpec("other", 8080))
	assert.NoError(t, err)
}

func TestReplicaProvisionAllocatesFreshPorts(t *testing.T) {
	p := NewProvisioner(zap.NewNop())

	_, err := p.Provision(context.Background(), computeSpec("web", 8080))
	require.NoError(t, err)

	replica := computeSpec("web-r1", 8080)
	replica.ReplicaOf = "web"
	handle, err := p.Provision(context.Background(), replica)
	require.NoError(t, err)
	assert.NotEmpty(t, handle)
	assert.Equal(t, 2, p.UnitCount())

	// the replica was remapped to the next free port
	_, err = p.Provision(context.Background(), computeSpec("other", 8081))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already allocated")
}

func TestReplicaProvisionRemapsEachPortDistinctly(t *testing.T) {
	p := NewProvisioner(zap.NewNop())

	replica := computeSpec("web-r1", 9000, 9000)
	replica.ReplicaOf = "web"
	_, err := p.Provision(context.Background(), replica)
	require.NoError(t, err)

	_, err = p.Provision(context.Background(), computeSpec("a", 9000))
	require.Error(t, err)
	_, err = p.Provision(context.Background(), computeSpec("b", 9001))
	require.Error(t, err)
}

func TestProvisionValidatesPerTypeConfig(t *testing.T) {
	p := NewProvisioner(zap.NewNop())

	tests := []struct {
		name string
		spec ports.ProvisionSpec
	}{
		{
			name: "compute unit without image",
			spec: ports.ProvisionSpec{
				ComponentID: "web",
				Type:        domain.ComponentTypeComputeUnit,
				Config:      domain.ComponentConfig{ComputeUnit: &domain.ComputeUnitConfig{}},
			},
		},
		{
			name: "environment without runtime",
			spec: ports.ProvisionSpec{
				ComponentID: "env",
				Type:        domain.ComponentTypeEnvironment,
				Config:      domain.ComponentConfig{Environment: &domain.EnvironmentConfig{}},
			},
		},
		{
			name: "dev server without host handle",
			spec: ports.ProvisionSpec{
				ComponentID: "dev",
				Type:        domain.ComponentTypeDevServer,
				Config: domain.ComponentConfig{
					DevServer: &domain.DevServerConfig{Command: "npm run dev", Port: 3000},
				},
			},
		},
		{
			name: "api gateway without port",
			spec: ports.ProvisionSpec{
				ComponentID: "gw",
				Type:        domain.ComponentTypeAPIGateway,
				Config:      domain.ComponentConfig{APIGateway: &domain.APIGatewayConfig{}},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Provision(context.Background(), tc.spec)
			assert.Error(t, err)
		})
	}
}

func TestStopAndStart(t *testing.T) {
	p := NewProvisioner(zap.NewNop())

	handle, err := p.Provision(context.Background(), computeSpec("web"))
	require.NoError(t, err)

	require.NoError(t, p.Stop(context.Background(), handle))
	assert.False(t, p.IsRunning(handle))

	require.NoError(t, p.Start(context.Background(), handle))
	assert.True(t, p.IsRunning(handle))

	assert.Error(t, p.Start(context.Background(), "nope"))
	assert.Error(t, p.Stop(context.Background(), "nope"))
}

func TestTeardownUnknownHandleIsIdempotent(t *testing.T) {
	p := NewProvisioner(zap.NewNop())
	assert.NoError(t, p.Teardown(context.Background(), "never-provisioned"))
}

func TestUtilizationRoundtrip(t *testing.T) {
	p := NewProvisioner(zap.NewNop())

	handle, err := p.Provision(context.Background(), computeSpec("web"))
	require.NoError(t, err)

	p.SetUtilization(handle, ports.Utilization{CPUPercent: 82.5, MemoryPercent: 41})

	util, err := p.GetUtilization(context.Background(), handle)
	require.NoError(t, err)
	assert.Equal(t, 82.5, util.CPUPercent)
	assert.Equal(t, 41.0, util.MemoryPercent)

	_, err = p.GetUtilization(context.Background(), "nope")
	assert.Error(t, err)
}
