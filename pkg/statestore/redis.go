package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// Redis is a StateStore backed by Redis. Values are JSON-encoded under
// a key prefix; an index set tracks the known keys so they can be
// listed without scanning. Entries set without the persist flag carry
// the session TTL, persisted entries never expire.
type Redis struct {
	client     *backend.Client
	prefix     string
	sessionTTL time.Duration
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithPrefix overrides the default key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *Redis) { s.prefix = prefix }
}

// WithSessionTTL sets the expiration for non-persisted entries.
func WithSessionTTL(ttl time.Duration) RedisOption {
	return func(s *Redis) { s.sessionTTL = ttl }
}

// NewRedis creates a store from connection settings.
func NewRedis(address, password string, db int, opts ...RedisOption) *Redis {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisFromClient(client, opts...)
}

// NewRedisFromClient creates a store from an existing client.
func NewRedisFromClient(client *backend.Client, opts ...RedisOption) *Redis {
	s := &Redis{
		client: client,
		prefix: "weft:state:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Redis) key(k string) string {
	return s.prefix + k
}

func (s *Redis) indexKey() string {
	return s.prefix + "index"
}

func (s *Redis) SetValue(ctx context.Context, key string, value any, persist bool) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal state value: %w", err)
	}

	ttl := time.Duration(0)
	if !persist {
		ttl = s.sessionTTL
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(key), data, ttl)
	pipe.SAdd(ctx, s.indexKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set state %q: %w", key, err)
	}
	return nil
}

func (s *Redis) DeleteValue(ctx context.Context, key string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(key))
	pipe.SRem(ctx, s.indexKey(), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete state %q: %w", key, err)
	}
	return nil
}

// Value returns the stored value for key, JSON-decoded.
func (s *Redis) Value(ctx context.Context, key string) (any, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get state %q: %w", key, err)
	}
	var out any
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		return nil, fmt.Errorf("unmarshal state %q: %w", key, err)
	}
	return out, nil
}

// Keys lists the known state keys from the index, pruning entries
// whose values have expired.
func (s *Redis) Keys(ctx context.Context) ([]string, error) {
	members, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list state keys: %w", err)
	}
	var out []string
	for _, k := range members {
		exists, err := s.client.Exists(ctx, s.key(k)).Result()
		if err != nil {
			return nil, fmt.Errorf("check state %q: %w", k, err)
		}
		if exists == 0 {
			s.client.SRem(ctx, s.indexKey(), k)
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

// Close closes the underlying client.
func (s *Redis) Close() error {
	return s.client.Close()
}
