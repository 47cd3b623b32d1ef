package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/pricelens/backend/internal/domain"
)

const defaultSnapshotKey = "pricelens:snapshot"

// RedisStore persists the snapshot as one export document under a single key
type RedisStore struct {
	client *redis.Client
	key    string
	codec  domain.Exporter
}

// NewRedisStore creates a Redis-backed snapshot store. The codec decides the
// stored document format.
func NewRedisStore(client *redis.Client, key string, codec domain.Exporter) *RedisStore {
	if key == "" {
		key = defaultSnapshotKey
	}
	return &RedisStore{client: client, key: key, codec: codec}
}

// Load reads and decodes the stored snapshot
func (s *RedisStore) Load(ctx context.Context) (*domain.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot %s: %w", s.key, err)
	}

	snapshot, _, err := s.codec.Import(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", s.key, err)
	}

	log.WithFields(log.Fields{
		"component": "store",
		"key":       s.key,
		"version":   snapshot.Version,
	}).Debug("loaded snapshot")

	return snapshot, nil
}

// Save encodes the snapshot and writes it without expiration
func (s *RedisStore) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	data, err := s.codec.Export(snapshot, snapshot.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", s.key, err)
	}
	return nil
}
