package locker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"referral_platform/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const keyPrefix = "referral:lock:"

var ErrLockTimeout = errors.New("timed out waiting for lock")

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type RedisConfig struct {
	Addr          string        `json:"addr"`
	Password      string        `json:"password"`
	DB            int           `json:"db"`
	LockTTL       time.Duration `json:"lockTTL"`
	RetryInterval time.Duration `json:"retryInterval"`
	MaxWait       time.Duration `json:"maxWait"`
}

// RedisLocker is a SET NX PX lock shared by every instance talking to the
// same Redis.
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxWait       time.Duration
}

func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

func NewRedisLocker(client *redis.Client, cfg RedisConfig) *RedisLocker {
	l := &RedisLocker{
		client:        client,
		ttl:           cfg.LockTTL,
		retryInterval: cfg.RetryInterval,
		maxWait:       cfg.MaxWait,
	}
	if l.ttl <= 0 {
		l.ttl = 30 * time.Second
	}
	if l.retryInterval <= 0 {
		l.retryInterval = 50 * time.Millisecond
	}
	if l.maxWait <= 0 {
		l.maxWait = l.ttl
	}
	return l
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire redis lock %s: %w", redisKey, err)
		}
		if ok {
			return l.unlockFunc(redisKey, token), nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, redisKey)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
}

func (l *RedisLocker) unlockFunc(redisKey, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			logger.Logger().Warn("failed to release redis lock",
				zap.String("key", redisKey),
				zap.Error(err))
		}
	}
}
