package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/stackd-io/stackd/internal/domain"
	"github.com/stackd-io/stackd/internal/ports"
)

const keyPattern = "stackd:orchestration:*"

// Repository implements ports.Repository backed by Redis. Each record is a
// JSON document; updates run inside a WATCH transaction so the optimistic
// version check holds across processes.
type Repository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRepository creates a new Redis repository
func NewRepository(client *redis.Client, logger *zap.Logger) *Repository {
	return &Repository{
		client: client,
		logger: logger,
	}
}

// Create stores a new orchestration (ports.Repository interface)
func (r *Repository) Create(ctx context.Context, o *domain.Orchestration) error {
	o.Version = 1

	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal orchestration: %w", err)
	}

	ok, err := r.client.SetNX(ctx, getKey(o.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to store orchestration: %w", err)
	}
	if !ok {
		return fmt.Errorf("orchestration already exists: %s", o.ID)
	}

	r.logger.Debug("orchestration stored",
		zap.String("orchestration_id", o.ID))
	return nil
}

// Get retrieves an orchestration by id (ports.Repository interface)
func (r *Repository) Get(ctx context.Context, id string) (*domain.Orchestration, error) {
	data, err := r.client.Get(ctx, getKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.NewOrchestrationNotFound(id)
		}
		return nil, fmt.Errorf("failed to get orchestration: %w", err)
	}

	var o domain.Orchestration
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to unmarshal orchestration: %w", err)
	}
	return &o, nil
}

// List retrieves orchestrations matching the filter (ports.Repository interface)
func (r *Repository) List(ctx context.Context, filter domain.OrchestrationFilter) ([]*domain.Orchestration, int, error) {
	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = r.client.Scan(ctx, cursor, keyPattern, 100).Result()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	matched := make([]*domain.Orchestration, 0, len(keys))
	for _, key := range keys {
		data, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}

		var o domain.Orchestration
		if err := json.Unmarshal(data, &o); err != nil {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		matched = append(matched, &o)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

// Update replaces a stored orchestration after checking that the caller
// read the latest version (ports.Repository interface)
func (r *Repository) Update(ctx context.Context, o *domain.Orchestration) error {
	key := getKey(o.ID)

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if err == redis.Nil {
				return domain.NewOrchestrationNotFound(o.ID)
			}
			return fmt.Errorf("failed to get orchestration: %w", err)
		}

		var stored domain.Orchestration
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("failed to unmarshal orchestration: %w", err)
		}
		if stored.Version != o.Version {
			return ports.ErrVersionConflict
		}

		o.Version++
		updated, err := json.Marshal(o)
		if err != nil {
			o.Version--
			return fmt.Errorf("failed to marshal orchestration: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	if err := r.client.Watch(ctx, txn, key); err != nil {
		if err == redis.TxFailedErr {
			return ports.ErrVersionConflict
		}
		return err
	}
	return nil
}

// Delete removes an orchestration (ports.Repository interface)
func (r *Repository) Delete(ctx context.Context, id string) error {
	deleted, err := r.client.Del(ctx, getKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete orchestration: %w", err)
	}
	if deleted == 0 {
		return domain.NewOrchestrationNotFound(id)
	}

	r.logger.Debug("orchestration removed",
		zap.String("orchestration_id", id))
	return nil
}

// getKey returns the Redis key for an orchestration record
func getKey(id string) string {
	return fmt.Sprintf("stackd:orchestration:%s", id)
}
