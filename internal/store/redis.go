package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	red "github.com/redis/go-redis/v9"

	"KievAlerts/internal/model"
)

const (
	defaultRedisPrefix = "kievalerts"
	maxBroadcasts      = 1000
)

type redisClient interface {
	red.Scripter
	Get(ctx context.Context, key string) *red.StringCmd
	HGetAll(ctx context.Context, key string) *red.MapStringStringCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *red.IntCmd
	SMembers(ctx context.Context, key string) *red.StringSliceCmd
	LRange(ctx context.Context, key string, start, stop int64) *red.StringSliceCmd
	TxPipelined(ctx context.Context, fn func(red.Pipeliner) error) ([]red.Cmder, error)
	Close() error
}

// Sets KEYS[1] to ARGV[1] only when it is larger than the stored value.
var saveMaxScript = red.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local ts = tonumber(ARGV[1])
if ts > cur then
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// RedisStore persists bot state in Redis.
type RedisStore struct {
	client redisClient
	prefix string
}

// NewRedisStore constructs a store on top of an existing client.
func NewRedisStore(client *red.Client, keyPrefix string) *RedisStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

func (s *RedisStore) LoadLastSuccess(ctx context.Context, window string) (int64, error) {
	value, err := s.client.Get(ctx, s.key("window", window)).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("redis get last success: %w", err)
	}
	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse last success: %w", err)
	}
	return ts, nil
}

func (s *RedisStore) SaveLastSuccess(ctx context.Context, window string, ts int64) error {
	if err := saveMaxScript.Run(ctx, s.client, []string{s.key("window", window)}, ts).Err(); err != nil {
		return fmt.Errorf("redis save last success: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadQuotas(ctx context.Context) (map[string]model.Quota, error) {
	raw, err := s.client.HGetAll(ctx, s.key("quotas")).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load quotas: %w", err)
	}
	out := make(map[string]model.Quota, len(raw))
	for id, v := range raw {
		var q model.Quota
		if err := json.Unmarshal([]byte(v), &q); err != nil {
			return nil, fmt.Errorf("decode quota %s: %w", id, err)
		}
		out[id] = q
	}
	return out, nil
}

func (s *RedisStore) SaveQuotas(ctx context.Context, quotas map[string]model.Quota) error {
	values := make(map[string]interface{}, len(quotas))
	for id, q := range quotas {
		b, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("encode quota %s: %w", id, err)
		}
		values[id] = string(b)
	}

	key := s.key("quotas")
	_, err := s.client.TxPipelined(ctx, func(pipe red.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.HSet(ctx, key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save quotas: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadSubscribers(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.key("subscribers")).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load subscribers: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RedisStore) AddSubscriber(ctx context.Context, chatID string) error {
	if err := s.client.SAdd(ctx, s.key("subscribers"), chatID).Err(); err != nil {
		return fmt.Errorf("redis add subscriber: %w", err)
	}
	return nil
}

func (s *RedisStore) RecordBroadcast(ctx context.Context, evt BroadcastEvent) error {
	b, err := json.Marshal(withDefaults(evt))
	if err != nil {
		return fmt.Errorf("encode broadcast: %w", err)
	}
	key := s.key("broadcasts")
	_, err = s.client.TxPipelined(ctx, func(pipe red.Pipeliner) error {
		pipe.LPush(ctx, key, string(b))
		pipe.LTrim(ctx, key, 0, maxBroadcasts-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis record broadcast: %w", err)
	}
	return nil
}

func (s *RedisStore) RecentBroadcasts(ctx context.Context, limit int) ([]BroadcastEvent, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := s.client.LRange(ctx, s.key("broadcasts"), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load broadcasts: %w", err)
	}
	out := make([]BroadcastEvent, 0, len(raw))
	for _, v := range raw {
		var evt BroadcastEvent
		if err := json.Unmarshal([]byte(v), &evt); err != nil {
			return nil, fmt.Errorf("decode broadcast: %w", err)
		}
		out = append(out, evt)
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
