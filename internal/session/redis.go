package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionPrefix = "session:"

	fieldTurnCount    = "turn_count"
	fieldLastRoute    = "last_route"
	fieldLastActiveAt = "last_active_at"
)

// RedisStore is the distributed session backend. HINCRBY makes the turn
// counter atomic across gateway replicas; the per-key TTL bounds growth.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func key(sessionID string) string {
	return sessionPrefix + sessionID
}

func (s *RedisStore) Touch(ctx context.Context, sessionID string) (State, error) {
	now := time.Now().UTC()
	k := key(sessionID)

	pipe := s.rdb.TxPipeline()
	prevRoute := pipe.HGet(ctx, k, fieldLastRoute)
	turn := pipe.HIncrBy(ctx, k, fieldTurnCount, 1)
	pipe.HSet(ctx, k, fieldLastActiveAt, now.Format(time.RFC3339Nano))
	if s.ttl > 0 {
		pipe.Expire(ctx, k, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return State{}, fmt.Errorf("session touch failed: %w", err)
	}

	st := State{TurnCount: turn.Val(), LastActiveAt: now}
	if route, err := prevRoute.Result(); err == nil && route != "" {
		st.LastRoute = &route
	}
	return st, nil
}

func (s *RedisStore) SetRoute(ctx context.Context, sessionID, route string) error {
	k := key(sessionID)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, k, fieldLastRoute, route)
	if s.ttl > 0 {
		pipe.Expire(ctx, k, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session set route failed: %w", err)
	}
	return nil
}

// Len reports the key count of the backing database. Session keys are the
// only keys the gateway writes there.
func (s *RedisStore) Len() int {
	n, err := s.rdb.DBSize(context.Background()).Result()
	if err != nil {
		return 0
	}
	return int(n)
}

func (s *RedisStore) Close() error {
	return nil // client lifecycle is owned by the caller
}
