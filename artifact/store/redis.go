package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/launchforge/launchforge/artifact"
	"github.com/launchforge/launchforge/errs"
)

// RedisStore implements artifact.Store on Redis. Used for ephemeral preview
// projects where durability does not matter but read latency does.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig holds Redis configuration for the artifact store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedisStore creates a Redis-backed artifact store.
func NewRedisStore(config *RedisConfig) *RedisStore {
	if config == nil {
		config = &RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "launchforge:artifact:",
			TTL:    24 * time.Hour,
		}
	}
	if config.Prefix == "" {
		config.Prefix = "launchforge:artifact:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisStore{client: client, prefix: config.Prefix, ttl: config.TTL}
}

func (s *RedisStore) key(projectID, kind string) string {
	return s.prefix + projectID + ":" + kind
}

// Get implements artifact.Store.
func (s *RedisStore) Get(ctx context.Context, projectID, kind string) (*artifact.Record, error) {
	raw, err := s.client.Get(ctx, s.key(projectID, kind)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, errs.NotFoundf("artifact %s/%s", projectID, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load artifact: %w", err)
	}

	var rec artifact.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode artifact record: %w", err)
	}
	return &rec, nil
}

// Put implements artifact.Store.
func (s *RedisStore) Put(ctx context.Context, projectID, kind, data string) (*artifact.Record, error) {
	rec, err := s.Get(ctx, projectID, kind)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			return nil, err
		}
		rec = &artifact.Record{ProjectID: projectID, Kind: kind}
	}

	rec.PreviousData = rec.Data
	rec.Data = data
	rec.Version++
	rec.UpdatedAt = time.Now()

	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Undo implements artifact.Store.
func (s *RedisStore) Undo(ctx context.Context, projectID, kind string) (*artifact.Record, error) {
	rec, err := s.Get(ctx, projectID, kind)
	if err != nil {
		return nil, err
	}
	if rec.PreviousData == "" {
		return nil, errs.NotFoundf("artifact %s/%s has no previous version", projectID, kind)
	}

	rec.Data = rec.PreviousData
	rec.PreviousData = ""
	rec.Version++
	rec.UpdatedAt = time.Now()

	if err := s.save(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *RedisStore) save(ctx context.Context, rec *artifact.Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(rec.ProjectID, rec.Kind), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save artifact: %w", err)
	}
	return nil
}

// Ping verifies the Redis connection, used by health checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
