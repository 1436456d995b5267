package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/listing-harvester/internal/domain"
)

const harvestKeyPrefix = "harvest:"

// HarvestStore keeps finished harvest summaries in Redis for a limited time.
type HarvestStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewHarvestStore(opts *redis.Options, ttl time.Duration) *HarvestStore {
	return &HarvestStore{client: redis.NewClient(opts), ttl: ttl}
}

func (s *HarvestStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *HarvestStore) Close() error {
	return s.client.Close()
}

// SaveHarvest stores a summary under its ID. A zero TTL keeps it forever.
func (s *HarvestStore) SaveHarvest(ctx context.Context, summary domain.HarvestSummary) error {
	if summary.ID == "" {
		return errors.New("harvest summary has no id")
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode harvest %s: %w", summary.ID, err)
	}
	if err := s.client.Set(ctx, harvestKey(summary.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save harvest %s: %w", summary.ID, err)
	}
	return nil
}

// GetHarvest returns the summary for id. found is false when it expired or never existed.
func (s *HarvestStore) GetHarvest(ctx context.Context, id string) (summary domain.HarvestSummary, found bool, err error) {
	data, err := s.client.Get(ctx, harvestKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.HarvestSummary{}, false, nil
	}
	if err != nil {
		return domain.HarvestSummary{}, false, fmt.Errorf("failed to load harvest %s: %w", id, err)
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		return domain.HarvestSummary{}, false, fmt.Errorf("failed to decode harvest %s: %w", id, err)
	}
	return summary, true, nil
}

func harvestKey(id string) string {
	return harvestKeyPrefix + id
}
