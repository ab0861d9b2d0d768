package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/saascore/saas-cloud/log"
)

const MaxRedisWait = time.Second * 30

type RedisClient struct {
	redisAddr string
	client    *redis.Client
}

func NewClient(redisAddr string) (*RedisClient, error) {
	if redisAddr == "" {
		return nil, fmt.Errorf("Missing redis addr")
	}
	redisClient := &RedisClient{}
	redisClient.redisAddr = redisAddr
	redisClient.client = redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	return redisClient, nil
}

func (r *RedisClient) IsServerReady(timeout time.Duration) error {
	start := time.Now()
	var err error
	for {
		_, err = r.client.Ping().Result()
		if err == nil {
			return nil
		}
		if time.Since(start) >= timeout {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("Failed to ping redis - %v", err)
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}

func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	out, err := r.client.Get(key).Result()
	log.SpanLog(ctx, log.DebugLevelEvents, "got data", "key", key, "err", err)
	return out, err
}

func (r *RedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	out, err := r.client.SetNX(key, value, expiration).Result()
	log.SpanLog(ctx, log.DebugLevelEvents, "set data if not exists", "key", key,
		"expiration", expiration, "out", out, "err", err)
	return out, err
}

func (r *RedisClient) Del(ctx context.Context, keys ...string) (int64, error) {
	out, err := r.client.Del(keys...).Result()
	log.SpanLog(ctx, log.DebugLevelEvents, "del data", "keys", keys, "out", out, "err", err)
	return out, err
}

func (r *RedisClient) RunScript(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (interface{}, error) {
	out, err := script.Run(r.client, keys, args...).Result()
	log.SpanLog(ctx, log.DebugLevelEvents, "ran script", "keys", keys, "out", out, "err", err)
	return out, err
}

func (r *RedisClient) Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error) {
	pubsub := r.client.Subscribe(channels...)

	// Wait for confirmation that subscription is created before publishing anything.
	_, err := pubsub.Receive()
	if err != nil {
		log.SpanLog(ctx, log.DebugLevelEvents, "failed to subscribe to channels",
			"channels", channels, "err", err)
		return nil, err
	}
	log.SpanLog(ctx, log.DebugLevelEvents, "subscribed to channels", "channels", channels)
	return pubsub, nil
}

func (r *RedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	err := r.client.Publish(channel, message).Err()
	log.SpanLog(ctx, log.DebugLevelEvents, "publish message on redis channel",
		"channel", channel, "err", err)
	return err
}
