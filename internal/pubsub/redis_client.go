// Package pubsub carries the trigger-job queue: a Redis Streams client and
// the publisher/consumer pair that replaces fire-and-forget dispatch with
// an explicit, observable work queue.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/outletx/merch-engine/internal/config"
	"github.com/outletx/merch-engine/internal/storage"
	"github.com/outletx/merch-engine/pkg/logger"
)

// RedisClientImpl implements the storage.RedisClient interface.
type RedisClientImpl struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client and verifies connectivity.
func NewRedisClient(cfg config.RedisConfig) (storage.RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
	)

	return &RedisClientImpl{client: rdb}, nil
}

// PublishToStream appends a JSON-encoded message to a Redis stream.
func (r *RedisClientImpl) PublishToStream(ctx context.Context, stream string, key string, value interface{}) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{key: string(jsonData)},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", stream, err)
	}
	return nil
}

// ConsumeFromStream consumes messages from a Redis stream via a consumer
// group, creating the group and stream when missing.
func (r *RedisClientImpl) ConsumeFromStream(ctx context.Context, stream string, group string, consumer string) (<-chan storage.StreamMessage, error) {
	messageChan := make(chan storage.StreamMessage, 100)

	if err := r.ensureGroup(ctx, stream, group); err != nil {
		logger.Error("Failed to create consumer group",
			logger.ErrorField(err),
			logger.String("stream", stream),
			logger.String("group", group),
		)
		// Continue anyway - the read loop retries on NOGROUP.
	}

	go func() {
		defer close(messageChan)

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    group,
				Consumer: consumer,
				Streams:  []string{stream, ">"},
				Count:    10,
				Block:    time.Second,
			}).Result()

			if err != nil {
				if err == redis.Nil {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				if strings.Contains(err.Error(), "NOGROUP") {
					if createErr := r.ensureGroup(ctx, stream, group); createErr != nil {
						logger.Error("Failed to recreate consumer group",
							logger.ErrorField(createErr),
							logger.String("stream", stream),
						)
					}
					time.Sleep(2 * time.Second)
					continue
				}
				logger.Error("Error reading from stream",
					logger.ErrorField(err),
					logger.String("stream", stream),
				)
				time.Sleep(time.Second)
				continue
			}

			for _, s := range streams {
				for _, message := range s.Messages {
					msg := storage.StreamMessage{
						ID:     message.ID,
						Stream: s.Stream,
						Values: message.Values,
					}
					select {
					case messageChan <- msg:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return messageChan, nil
}

func (r *RedisClientImpl) ensureGroup(ctx context.Context, stream, group string) error {
	err := r.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

// AcknowledgeMessage acknowledges a message in a Redis stream.
func (r *RedisClientImpl) AcknowledgeMessage(ctx context.Context, stream string, group string, id string) error {
	return r.client.XAck(ctx, stream, group, id).Err()
}

// Close closes the Redis connection.
func (r *RedisClientImpl) Close() error {
	return r.client.Close()
}
