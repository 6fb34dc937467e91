package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"roastbattle/backend/internal/battle"
)

const keyPrefix = "roastbattle:result:"

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient connects and pings within three seconds.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Put(ctx context.Context, result battle.EvaluationResult) error {
	if result.BattleID == "" {
		return errors.New("result has no battle id")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+result.BattleID, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache result: %w", err)
	}
	return nil
}

func (c *RedisCache) Get(ctx context.Context, battleID string) (battle.EvaluationResult, error) {
	raw, err := c.client.Get(ctx, keyPrefix+battleID).Bytes()
	if errors.Is(err, redis.Nil) {
		return battle.EvaluationResult{}, ErrMiss
	}
	if err != nil {
		return battle.EvaluationResult{}, fmt.Errorf("read cached result: %w", err)
	}
	var result battle.EvaluationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return battle.EvaluationResult{}, fmt.Errorf("decode cached result: %w", err)
	}
	return result, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
