package advisorylock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// releaseScript deletes the key only if it still carries the caller's token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// Redis takes exclusive locks as keys with an expiry so that a crashed holder cannot keep a lock
// forever. Shared mode is not supported.
type Redis struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	retry    time.Duration
	newToken func() string
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{
		client:   client,
		prefix:   "advisory_lock:",
		ttl:      ttl,
		retry:    100 * time.Millisecond,
		newToken: uuid.NewString,
	}
}

func (r *Redis) keyName(key int64) string {
	return r.prefix + strconv.FormatInt(key, 10)
}

func (r *Redis) Acquire(ctx context.Context, key int64, mode Mode) (Lease, error) {
	for {
		lease, ok, err := r.TryAcquire(ctx, key, mode)
		if err != nil || ok {
			return lease, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retry):
		}
	}
}

func (r *Redis) TryAcquire(ctx context.Context, key int64, mode Mode) (Lease, bool, error) {
	if mode != Exclusive {
		return nil, false, fmt.Errorf("redis %s lock: %w", mode, ErrUnsupported)
	}
	name, token := r.keyName(key), r.newToken()
	ok, err := r.client.SetNX(ctx, name, token, r.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{client: r.client, name: name, token: token}, true, nil
}

type redisLease struct {
	client *redis.Client
	name   string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	n, err := l.client.Eval(ctx, releaseScript, []string{l.name}, l.token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("lock %s expired before release", l.name)
	}
	return nil
}
