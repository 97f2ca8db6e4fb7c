package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisIndex keeps entries in Redis so that machines sharing a store over a
// network filesystem agree on its contents. Each entry is a JSON string under
// prefix+"entry:"+fingerprint; a sorted set under prefix+"lru" orders
// fingerprints by last use.
type RedisIndex struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects to the server at url (redis://host:port/db). An empty
// prefix defaults to "sceneweaver:".
func OpenRedis(ctx context.Context, url, prefix string) (*RedisIndex, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if prefix == "" {
		prefix = "sceneweaver:"
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisIndex{client: client, prefix: prefix}, nil
}

func (r *RedisIndex) entryKey(fp string) string { return r.prefix + "entry:" + fp }
func (r *RedisIndex) lruKey() string            { return r.prefix + "lru" }

// do runs fn, retrying transient network failures.
func (r *RedisIndex) do(ctx context.Context, fn func() error) error {
	return RetryWithBackoff(ctx, func() error {
		err := fn()
		if err == nil || errors.Is(err, redis.Nil) {
			return err
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) {
			return Retryable(err)
		}
		return err
	})
}

func (r *RedisIndex) Get(ctx context.Context, fp string) (Entry, bool, error) {
	var data []byte
	err := r.do(ctx, func() error {
		var err error
		data, err = r.client.Get(ctx, r.entryKey(fp)).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get cache entry: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		// unreadable entries are treated as misses and dropped
		_ = r.Delete(ctx, fp)
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (r *RedisIndex) Put(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	err = r.do(ctx, func() error {
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.entryKey(e.Fingerprint), data, 0)
			pipe.ZAdd(ctx, r.lruKey(), redis.Z{Score: score(e.LastUsed), Member: e.Fingerprint})
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

func (r *RedisIndex) Touch(ctx context.Context, fp string, at time.Time) error {
	e, ok, err := r.Get(ctx, fp)
	if err != nil || !ok {
		return err
	}
	e.LastUsed = at
	return r.Put(ctx, e)
}

func (r *RedisIndex) Delete(ctx context.Context, fp string) error {
	err := r.do(ctx, func() error {
		_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, r.entryKey(fp))
			pipe.ZRem(ctx, r.lruKey(), fp)
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func (r *RedisIndex) List(ctx context.Context) ([]Entry, error) {
	var fps []string
	if err := r.do(ctx, func() error {
		var err error
		fps, err = r.client.ZRange(ctx, r.lruKey(), 0, -1).Result()
		return err
	}); err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	out := make([]Entry, 0, len(fps))
	for _, fp := range fps {
		e, ok, err := r.Get(ctx, fp)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	sortLRU(out)
	return out, nil
}

func (r *RedisIndex) Clear(ctx context.Context) (int, error) {
	entries, err := r.List(ctx)
	if err != nil {
		return 0, err
	}
	keys := []string{r.lruKey()}
	for _, e := range entries {
		keys = append(keys, r.entryKey(e.Fingerprint))
	}
	if err := r.do(ctx, func() error { return r.client.Del(ctx, keys...).Err() }); err != nil {
		return 0, fmt.Errorf("clear cache index: %w", err)
	}
	return len(entries), nil
}

// Close closes the client connection.
func (r *RedisIndex) Close() error {
	return r.client.Close()
}

func score(t time.Time) float64 {
	return float64(t.UnixNano())
}

var _ Index = (*RedisIndex)(nil)
