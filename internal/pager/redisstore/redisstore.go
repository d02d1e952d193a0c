// Package redisstore keeps page sessions in Redis as JSON blobs whose
// key TTL tracks the session expiry, so abandoned sessions vanish on
// their own.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opendata-tw/roadwatch/config"
	"github.com/opendata-tw/roadwatch/internal/pager"
)

type Store struct {
	client *redis.Client
}

// NewStore connects a session store to Redis.
func NewStore(cfg config.RedisConfig) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Store{client: rdb}
}

// Ping verifies the connection at startup.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func key(id string) string { return "page:" + id }

func (s *Store) Save(ctx context.Context, state *pager.PageState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	// Keep the blob a minute past expiry so late navigation still gets
	// the expiry error instead of a blank not-found.
	ttl := time.Until(state.ExpiresAt()) + time.Minute
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, key(state.ID), data, ttl).Err()
}

func (s *Store) Get(ctx context.Context, id string) (*pager.PageState, error) {
	val, err := s.client.Get(ctx, key(id)).Result()
	if err == redis.Nil {
		return nil, pager.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var state pager.PageState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, key(id)).Err()
}

var _ pager.Store = (*Store)(nil)
