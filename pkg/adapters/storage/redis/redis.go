package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aescanero/synapse/pkg/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "synapse:run:"

// RunStorage implements RunStorage using Redis
type RunStorage struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewRunStorage creates a new Redis run storage. A zero ttl keeps records
// until they are deleted.
func NewRunStorage(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RunStorage {
	return &RunStorage{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// SaveRun creates or replaces a run record
func (s *RunStorage) SaveRun(ctx context.Context, record *domain.RunRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	// Save to Redis with TTL
	if err := s.client.Set(ctx, runKey(record.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	s.logger.Debug("run saved",
		zap.String("run_id", record.ID),
		zap.String("status", string(record.Status)))

	return nil
}

// GetRun retrieves a run record
func (s *RunStorage) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	data, err := s.client.Get(ctx, runKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("run %s: %w", runID, domain.ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var record domain.RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &record, nil
}

// ListRuns returns every stored run record
func (s *RunStorage) ListRuns(ctx context.Context) ([]*domain.RunRecord, error) {
	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	records := make([]*domain.RunRecord, 0, len(keys))
	for _, key := range keys {
		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			// Expired between scan and get
			continue
		}

		var record domain.RunRecord
		if err := json.Unmarshal(data, &record); err != nil {
			s.logger.Warn("skipping unreadable run record", zap.String("key", key), zap.Error(err))
			continue
		}

		records = append(records, &record)
	}

	return records, nil
}

// DeleteRun removes a run record
func (s *RunStorage) DeleteRun(ctx context.Context, runID string) error {
	if err := s.client.Del(ctx, runKey(runID)).Err(); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	s.logger.Debug("run deleted", zap.String("run_id", runID))
	return nil
}

// runKey returns the Redis key for a run record
func runKey(runID string) string {
	return keyPrefix + runID
}
