package jobs

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisScheduler keeps reruns in a sorted set scored by due time in unix seconds.
type RedisScheduler struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

func NewRedisScheduler(client *redis.Client) *RedisScheduler {
	return &RedisScheduler{client: client, key: "jobs:scheduled", now: time.Now}
}

func (s *RedisScheduler) ScheduleIn(ctx context.Context, name string, delay time.Duration) error {
	due := s.now().Add(delay).Unix()
	return s.client.ZAdd(ctx, s.key, &redis.Z{Score: float64(due), Member: name}).Err()
}

// Due claims members with ZREM so that two workers never run the same rerun.
func (s *RedisScheduler) Due(ctx context.Context, now time.Time) ([]string, error) {
	names, err := s.client.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	claimed := make([]string, 0, len(names))
	for _, name := range names {
		n, err := s.client.ZRem(ctx, s.key, name).Result()
		if err != nil {
			return claimed, fmt.Errorf("failed to claim job %s: %w", name, err)
		}
		if n == 1 {
			claimed = append(claimed, name)
		}
	}
	return claimed, nil
}

// MemoryScheduler is the in-process Scheduler.
type MemoryScheduler struct {
	mu  sync.Mutex
	due map[string]time.Time
	now func() time.Time
}

func NewMemoryScheduler() *MemoryScheduler {
	return &MemoryScheduler{due: map[string]time.Time{}, now: time.Now}
}

// ScheduleIn keeps one pending rerun per name, like a sorted set member.
func (s *MemoryScheduler) ScheduleIn(_ context.Context, name string, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.due[name] = s.now().Add(delay)
	return nil
}

func (s *MemoryScheduler) Due(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name, at := range s.due {
		if !at.After(now) {
			names = append(names, name)
			delete(s.due, name)
		}
	}
	return names, nil
}
