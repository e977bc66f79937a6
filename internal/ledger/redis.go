// Package ledger keeps a Redis-backed history of export runs.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pmtexport/internal/store"
)

// ErrRunNotFound indicates a run ID with no stored record.
var ErrRunNotFound = errors.New("run not found")

const defaultPrefix = "pmtexport:"

// RedisLedger records runs as JSON values plus a capped, newest-first ID list.
type RedisLedger struct {
	client *redis.Client
	prefix string
	size   int64
}

// NewRedisLedger connects to redisURL and keeps at most size runs.
func NewRedisLedger(redisURL string, size int) (*RedisLedger, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisLedgerWithClient(client, size), nil
}

// NewRedisLedgerWithClient wraps an existing client.
func NewRedisLedgerWithClient(client *redis.Client, size int) *RedisLedger {
	if size <= 0 {
		size = 100
	}
	return &RedisLedger{
		client: client,
		prefix: defaultPrefix,
		size:   int64(size),
	}
}

func (l *RedisLedger) runKey(id string) string {
	return l.prefix + "run:" + id
}

func (l *RedisLedger) listKey() string {
	return l.prefix + "runs"
}

// Record stores run and trims the history. Records evicted from the list
// are deleted.
func (l *RedisLedger) Record(ctx context.Context, run store.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	var evicted []string
	err = l.client.Watch(ctx, func(tx *redis.Tx) error {
		var err error
		evicted, err = tx.LRange(ctx, l.listKey(), l.size-1, -1).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, l.runKey(run.ID), data, 0)
			pipe.LPush(ctx, l.listKey(), run.ID)
			pipe.LTrim(ctx, l.listKey(), 0, l.size-1)
			for _, id := range evicted {
				pipe.Del(ctx, l.runKey(id))
			}
			return nil
		})
		return err
	}, l.listKey())
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Get returns one run by ID.
func (l *RedisLedger) Get(ctx context.Context, id string) (store.Run, error) {
	raw, err := l.client.Get(ctx, l.runKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return store.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return store.Run{}, fmt.Errorf("lookup run: %w", err)
	}
	var run store.Run
	if err := json.Unmarshal([]byte(raw), &run); err != nil {
		return store.Run{}, fmt.Errorf("unmarshal run: %w", err)
	}
	return run, nil
}

// Recent returns up to n runs, newest first.
func (l *RedisLedger) Recent(ctx context.Context, n int) ([]store.Run, error) {
	if n <= 0 {
		return []store.Run{}, nil
	}
	ids, err := l.client.LRange(ctx, l.listKey(), 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	runs := make([]store.Run, 0, len(ids))
	for _, id := range ids {
		run, err := l.Get(ctx, id)
		if errors.Is(err, ErrRunNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Close closes the Redis connection.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}

// Ping checks if Redis is reachable.
func (l *RedisLedger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
