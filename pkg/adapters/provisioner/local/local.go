package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stackd-io/stackd/internal/domain"
	"github.com/stackd-io/stackd/internal/ports"
)

type unit struct {
	handle  string
	spec    ports.ProvisionSpec
	running bool
	ports   []int
}

// Provisioner implements ports.Provisioner with in-process simulated units,
// used for the standalone deployment mode. Ports are allocated exclusively
// across all units, so two components asking for the same port collide the
// way real network binds would. It also implements ports.MetricSource with
// per-handle utilization samples the operator (or a test) can set.
type Provisioner struct {
	mu          sync.Mutex
	units       map[string]*unit
	portOwners  map[int]string
	utilization map[string]ports.Utilization
	logger      *zap.Logger
}

// NewProvisioner creates a new local provisioner
func NewProvisioner(logger *zap.Logger) *Provisioner {
	return &Provisioner{
		units:       make(map[string]*unit),
		portOwners:  make(map[int]string),
		utilization: make(map[string]ports.Utilization),
		logger:      logger,
	}
}

// Provision allocates a simulated unit (ports.Provisioner interface)
func (p *Provisioner) Provision(ctx context.Context, spec ports.ProvisionSpec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	requested, err := requestedPorts(spec)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if spec.ReplicaOf != "" {
		// A replica never inherits the primary's ports; each configured
		// port is remapped to a free one so the replica binds its own.
		for i, port := range requested {
			free, err := p.freePort(port, requested[:i])
			if err != nil {
				return "", err
			}
			requested[i] = free
		}
	} else {
		for _, port := range requested {
			if owner, taken := p.portOwners[port]; taken {
				return "", fmt.Errorf("port %d already allocated to unit %s", port, owner)
			}
		}
	}

	handle := "local-" + uuid.New().String()[:12]
	u := &unit{
		handle:  handle,
		spec:    spec,
		running: true,
		ports:   requested,
	}
	p.units[handle] = u
	for _, port := range requested {
		p.portOwners[port] = handle
	}

	p.logger.Info("unit provisioned",
		zap.String("handle", handle),
		zap.String("component_id", spec.ComponentID),
		zap.String("component_type", string(spec.Type)),
		zap.Ints("ports", requested))

	return handle, nil
}

// Teardown releases a unit and its ports (ports.Provisioner interface).
// Unknown handles are treated as already released.
func (p *Provisioner) Teardown(ctx context.Context, handle string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.units[handle]
	if !ok {
		return nil
	}
	for _, port := range u.ports {
		delete(p.portOwners, port)
	}
	delete(p.units, handle)
	delete(p.utilization, handle)

	p.logger.Info("unit released", zap.String("handle", handle))
	return nil
}

// Start marks a unit running (ports.Provisioner interface)
func (p *Provisioner) Start(ctx context.Context, handle string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.units[handle]
	if !ok {
		return fmt.Errorf("unknown unit: %s", handle)
	}
	u.running = true
	return nil
}

// Stop marks a unit stopped without releasing it (ports.Provisioner interface)
func (p *Provisioner) Stop(ctx context.Context, handle string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.units[handle]
	if !ok {
		return fmt.Errorf("unknown unit: %s", handle)
	}
	u.running = false
	return nil
}

// GetUtilization returns the current utilization sample for a unit
// (ports.MetricSource interface)
func (p *Provisioner) GetUtilization(ctx context.Context, handle string) (ports.Utilization, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.units[handle]; !ok {
		return ports.Utilization{}, fmt.Errorf("unknown unit: %s", handle)
	}
	return p.utilization[handle], nil
}

// SetUtilization records a utilization sample for a unit
func (p *Provisioner) SetUtilization(handle string, u ports.Utilization) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.utilization[handle] = u
}

// IsRunning reports whether a unit exists and is running
func (p *Provisioner) IsRunning(handle string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.units[handle]
	return ok && u.running
}

// UnitCount returns the number of live units
func (p *Provisioner) UnitCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.units)
}

// freePort returns the lowest unallocated port at or above from, skipping
// ports already chosen for the same unit. Caller holds p.mu.
func (p *Provisioner) freePort(from int, chosen []int) (int, error) {
	for port := from; port <= 65535; port++ {
		if _, taken := p.portOwners[port]; taken {
			continue
		}
		clash := false
		for _, c := range chosen {
			if c == port {
				clash = true
				break
			}
		}
		if !clash {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no free port available at or above %d", from)
}

// requestedPorts validates the per-type configuration and returns the ports
// the unit needs exclusively.
func requestedPorts(spec ports.ProvisionSpec) ([]int, error) {
	switch spec.Type {
	case domain.ComponentTypeComputeUnit:
		cfg := spec.Config.ComputeUnit
		if cfg == nil || cfg.Image == "" {
			return nil, fmt.Errorf("compute unit requires an image")
		}
		return append([]int(nil), cfg.ExposedPorts...), nil

	case domain.ComponentTypeEnvironment:
		cfg := spec.Config.Environment
		if cfg == nil || cfg.Runtime == "" {
			return nil, fmt.Errorf("environment requires a runtime")
		}
		return nil, nil

	case domain.ComponentTypeDevServer:
		cfg := spec.Config.DevServer
		if cfg == nil || cfg.Command == "" || cfg.Port <= 0 {
			return nil, fmt.Errorf("dev server requires a command and a port")
		}
		if len(spec.DependencyHandles) == 0 {
			return nil, fmt.Errorf("dev server requires a host compute unit handle")
		}
		return []int{cfg.Port}, nil

	case domain.ComponentTypeServiceMesh:
		if spec.Config.ServiceMesh == nil {
			return nil, fmt.Errorf("service mesh configuration missing")
		}
		return nil, nil

	case domain.ComponentTypeAPIGateway:
		cfg := spec.Config.APIGateway
		if cfg == nil || cfg.Port <= 0 {
			return nil, fmt.Errorf("api gateway requires a port")
		}
		return []int{cfg.Port}, nil
	}

	return nil, fmt.Errorf("unsupported component type: %s", spec.Type)
}
