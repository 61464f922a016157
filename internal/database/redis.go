package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClients keeps job-queue traffic (BLPOP blocks a connection) apart from
// the pub/sub connection that carries presence and chat notifications.
type RedisClients struct {
	Jobs   *redis.Client
	Events *redis.Client
}

func NewRedisClients(redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	jobs := redis.NewClient(opt)
	if err := jobs.Ping(ctx).Err(); err != nil {
		jobs.Close()
		return nil, fmt.Errorf("failed to ping Redis (jobs): %w", err)
	}

	eventsOpt := *opt
	events := redis.NewClient(&eventsOpt)
	if err := events.Ping(ctx).Err(); err != nil {
		jobs.Close()
		events.Close()
		return nil, fmt.Errorf("failed to ping Redis (events): %w", err)
	}

	return &RedisClients{Jobs: jobs, Events: events}, nil
}

func (r *RedisClients) Close() {
	r.Jobs.Close()
	r.Events.Close()
}
