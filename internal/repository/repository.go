// Package repository persists investigation snapshots in Redis so that
// a run can be audited or resumed without replaying collaborator calls.
// Snapshots are keyed by target phone and start timestamp.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lvonguyen/numintel/internal/investigation"
)

// ErrNotFound is returned when no snapshot exists under a key.
var ErrNotFound = errors.New("repository: investigation not found")

// Config holds Redis connection settings.
type Config struct {
	Addr        string        `yaml:"addr"`
	PasswordEnv string        `yaml:"password_env"`
	DB          int           `yaml:"db"`
	PoolSize    int           `yaml:"pool_size"`
	TTL         time.Duration `yaml:"ttl"`
}

// DefaultConfig returns sensible Redis defaults.
func DefaultConfig() Config {
	return Config{
		Addr:     "localhost:6379",
		PoolSize: 10,
		TTL:      30 * 24 * time.Hour,
	}
}

// Store reads and writes snapshots.
type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore wraps an existing Redis client.
func NewStore(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{rdb: rdb, ttl: ttl, logger: logger}
}

// Key returns the storage key for one investigation.
func Key(target string, startedAt time.Time) string {
	return fmt.Sprintf("investigation:%s:%s", target, startedAt.UTC().Format(time.RFC3339))
}

// Save writes a snapshot under its target+start key.
func (s *Store) Save(ctx context.Context, snap investigation.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	key := Key(snap.Target, snap.StartedAt)
	if err := s.rdb.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", key, err)
	}
	s.logger.Debug("snapshot saved",
		zap.String("key", key),
		zap.Int("evidence", len(snap.Evidence)))
	return nil
}

// Load reads one snapshot.
func (s *Store) Load(ctx context.Context, target string, startedAt time.Time) (investigation.Snapshot, error) {
	var snap investigation.Snapshot
	key := Key(target, startedAt)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return snap, ErrNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("reading snapshot %s: %w", key, err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("decoding snapshot %s: %w", key, err)
	}
	return snap, nil
}

// List returns the stored keys for one target.
func (s *Store) List(ctx context.Context, target string) ([]string, error) {
	pattern := fmt.Sprintf("investigation:%s:*", target)
	var keys []string
	iter := s.rdb.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", pattern, err)
	}
	return keys, nil
}
