package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"btc-scenario-lab/internal/domain"
	"btc-scenario-lab/internal/observability"
	"btc-scenario-lab/internal/storage"
)

// DefaultProgressTTL bounds how long a progress key outlives its last write.
const DefaultProgressTTL = time.Hour

const (
	fieldProgress     = "progress"
	fieldCurrentPrice = "current_price"
)

// ProgressKey returns the hash key holding live progress for a simulation.
func ProgressKey(simulationID string) string {
	return "simulation:" + simulationID + ":progress"
}

// ProgressStore implements storage.ProgressStore on Redis hashes.
type ProgressStore struct {
	client *Client
	ttl    time.Duration
}

// NewProgressStore creates a new ProgressStore. A non-positive ttl uses DefaultProgressTTL.
func NewProgressStore(client *Client, ttl time.Duration) *ProgressStore {
	if ttl <= 0 {
		ttl = DefaultProgressTTL
	}
	return &ProgressStore{client: client, ttl: ttl}
}

// Compile-time interface check.
var _ storage.ProgressStore = (*ProgressStore)(nil)

// Publish writes both fields and refreshes the TTL in one round trip.
func (s *ProgressStore) Publish(ctx context.Context, simulationID string, sample domain.ProgressSample) (err error) {
	defer func(start time.Time) {
		observability.RecordDBQuery("redis", "publish_progress", time.Since(start).Seconds(), err)
	}(time.Now())

	key := ProgressKey(simulationID)
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldProgress, strconv.FormatFloat(sample.Progress, 'f', -1, 64),
			fieldCurrentPrice, strconv.FormatFloat(sample.CurrentPrice, 'f', -1, 64),
		)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish progress: %w", err)
	}
	return nil
}

// Get reads the last published sample. Returns ErrNotFound if absent or expired.
func (s *ProgressStore) Get(ctx context.Context, simulationID string) (*domain.ProgressSample, error) {
	fields, err := s.client.HGetAll(ctx, ProgressKey(simulationID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get progress: %w", err)
	}
	if len(fields) == 0 {
		return nil, storage.ErrNotFound
	}

	var sample domain.ProgressSample
	if sample.Progress, err = parseField(fields, fieldProgress); err != nil {
		return nil, err
	}
	if sample.CurrentPrice, err = parseField(fields, fieldCurrentPrice); err != nil {
		return nil, err
	}
	return &sample, nil
}

// Clear removes the progress key.
func (s *ProgressStore) Clear(ctx context.Context, simulationID string) error {
	if err := s.client.Del(ctx, ProgressKey(simulationID)).Err(); err != nil {
		return fmt.Errorf("clear progress: %w", err)
	}
	return nil
}

func parseField(fields map[string]string, name string) (float64, error) {
	raw, ok := fields[name]
	if !ok {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return v, nil
}
