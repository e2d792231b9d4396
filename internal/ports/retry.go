package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/stackd-io/stackd/internal/domain"
)

// updateAttempts bounds the number of optimistic concurrency retries
const updateAttempts = 5

// UpdateWithRetry applies mutate to the latest stored orchestration and
// persists the result, retrying on version conflicts. Health probe tasks
// and the deploy workflow both write to the same record without sharing a
// lock; each retry re-reads the latest version so neither clobbers a whole
// record.
func UpdateWithRetry(
	ctx context.Context,
	repo Repository,
	id string,
	mutate func(o *domain.Orchestration) error,
) (*domain.Orchestration, error) {
	var lastErr error
	for attempt := 0; attempt < updateAttempts; attempt++ {
		o, err := repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(o); err != nil {
			return nil, err
		}
		if err := repo.Update(ctx, o); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return o, nil
	}
	return nil, fmt.Errorf("update of orchestration %s did not converge: %w", id, lastErr)
}
