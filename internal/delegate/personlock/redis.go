package personlock

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "quorum:personlock:"

// unlockScript deletes the key only if it still holds our token, so a lock
// that expired and was taken by someone else is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis implements Locker with SET NX PX. The TTL bounds how long a crashed
// holder blocks the person.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
	logger *slog.Logger
}

type RedisOption func(*Redis)

func WithRetryInterval(d time.Duration) RedisOption {
	return func(r *Redis) {
		if d > 0 {
			r.retry = d
		}
	}
}

func WithLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) {
		r.logger = logger
	}
}

func NewRedis(client redis.UniversalClient, ttl time.Duration, opts ...RedisOption) *Redis {
	r := &Redis{client: client, ttl: ttl, retry: 25 * time.Millisecond, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Lock(ctx context.Context, key string) (Unlock, error) {
	redisKey := keyPrefix + key
	token := uuid.NewString()
	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, timeout(ctx.Err())
			}
			return nil, fmt.Errorf("acquire person lock: %w", err)
		}
		if ok {
			break
		}
		wait := r.retry + time.Duration(rand.Int64N(int64(r.retry)))
		select {
		case <-ctx.Done():
			return nil, timeout(ctx.Err())
		case <-time.After(wait):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := unlockScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil {
				r.logger.WarnContext(ctx, "failed to release person lock", "error", err)
			}
		})
	}, nil
}
