package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/stackd-io/stackd/internal/domain"
	"github.com/stackd-io/stackd/internal/ports"
)

// Repository implements ports.Repository backed by process memory. Records
// are cloned on the way in and out, so callers never share state with the
// store, and updates enforce the optimistic version check the same way the
// Redis repository does.
type Repository struct {
	mu             sync.RWMutex
	orchestrations map[string]*domain.Orchestration
	logger         *zap.Logger
}

// NewRepository creates a new in-memory repository
func NewRepository(logger *zap.Logger) *Repository {
	return &Repository{
		orchestrations: make(map[string]*domain.Orchestration),
		logger:         logger,
	}
}

// Create stores a new orchestration (ports.Repository interface)
func (r *Repository) Create(ctx context.Context, o *domain.Orchestration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orchestrations[o.ID]; exists {
		return fmt.Errorf("orchestration already exists: %s", o.ID)
	}

	o.Version = 1
	r.orchestrations[o.ID] = o.Clone()

	r.logger.Debug("orchestration stored",
		zap.String("orchestration_id", o.ID))
	return nil
}

// Get retrieves an orchestration by id (ports.Repository interface)
func (r *Repository) Get(ctx context.Context, id string) (*domain.Orchestration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orchestrations[id]
	if !ok {
		return nil, domain.NewOrchestrationNotFound(id)
	}
	return o.Clone(), nil
}

// List retrieves orchestrations matching the filter (ports.Repository interface)
func (r *Repository) List(ctx context.Context, filter domain.OrchestrationFilter) ([]*domain.Orchestration, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*domain.Orchestration, 0, len(r.orchestrations))
	for _, o := range r.orchestrations {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		matched = append(matched, o)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := len(matched)
	matched = paginate(matched, filter.Offset, filter.Limit)

	result := make([]*domain.Orchestration, len(matched))
	for i, o := range matched {
		result[i] = o.Clone()
	}
	return result, total, nil
}

// Update replaces a stored orchestration after checking that the caller
// read the latest version (ports.Repository interface)
func (r *Repository) Update(ctx context.Context, o *domain.Orchestration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orchestrations[o.ID]
	if !ok {
		return domain.NewOrchestrationNotFound(o.ID)
	}
	if stored.Version != o.Version {
		return ports.ErrVersionConflict
	}

	o.Version++
	r.orchestrations[o.ID] = o.Clone()
	return nil
}

// Delete removes an orchestration (ports.Repository interface)
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orchestrations[id]; !ok {
		return domain.NewOrchestrationNotFound(id)
	}
	delete(r.orchestrations, id)

	r.logger.Debug("orchestration removed",
		zap.String("orchestration_id", id))
	return nil
}

func paginate(items []*domain.Orchestration, offset, limit int) []*domain.Orchestration {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
