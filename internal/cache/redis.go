package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnectRedis initializes and returns a Redis client instance.
func ConnectRedis(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := rdb.Ping(ctx).Result()
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	fmt.Println("Successfully connected to Redis!")
	return rdb, nil
}

// DisconnectRedis closes the Redis client connection.
func DisconnectRedis(client *redis.Client) error {
	if client == nil {
		return nil
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	fmt.Println("Redis connection closed.")
	return nil
}

// StageImage stores a raw uploaded image under a staging key with a TTL so the
// image worker can pick it up without the payload travelling through the task
// queue itself.
func StageImage(ctx context.Context, rdb *redis.Client, stagingKey string, data []byte, ttl time.Duration) error {
	if err := rdb.Set(ctx, stagingKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to stage image under %s: %w", stagingKey, err)
	}
	return nil
}

// TakeImage fetches and deletes a staged image. Returns redis.Nil wrapped if
// the key expired before the worker got to it.
func TakeImage(ctx context.Context, rdb *redis.Client, stagingKey string) ([]byte, error) {
	data, err := rdb.Get(ctx, stagingKey).Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read staged image %s: %w", stagingKey, err)
	}
	rdb.Del(ctx, stagingKey)
	return data, nil
}
