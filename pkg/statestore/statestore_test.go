package statestore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
)

// TestMemoryStore covers set/delete/persist-flag behavior.
func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.SetValue(ctx, "x", 5, false); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if err := m.SetValue(ctx, "theme", "dark", true); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	v, err := m.Value("x")
	if err != nil || v != 5 {
		t.Errorf("x = %#v, %v", v, err)
	}
	if m.Persisted("x") {
		t.Error("x reported persisted")
	}
	if !m.Persisted("theme") {
		t.Error("theme not reported persisted")
	}

	if err := m.DeleteValue(ctx, "x"); err != nil {
		t.Fatalf("DeleteValue: %v", err)
	}
	if _, err := m.Value("x"); err != ErrNotFound {
		t.Errorf("deleted key err = %v, want ErrNotFound", err)
	}
}

func testRedis(t *testing.T, opts ...RedisOption) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	s := NewRedisFromClient(client, opts...)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

// TestRedisStoreRoundTrip covers set/get/delete with JSON values and
// the key index.
func TestRedisStoreRoundTrip(t *testing.T) {
	s, _ := testRedis(t)
	ctx := context.Background()

	if err := s.SetValue(ctx, "profile", map[string]any{"name": "Ada"}, true); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	v, err := s.Value(ctx, "profile")
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if m := v.(map[string]any); m["name"] != "Ada" {
		t.Errorf("profile = %#v", v)
	}

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "profile" {
		t.Errorf("keys = %v", keys)
	}

	if err := s.DeleteValue(ctx, "profile"); err != nil {
		t.Fatalf("DeleteValue: %v", err)
	}
	if _, err := s.Value(ctx, "profile"); err != ErrNotFound {
		t.Errorf("deleted key err = %v, want ErrNotFound", err)
	}
	if keys, _ := s.Keys(ctx); len(keys) != 0 {
		t.Errorf("keys after delete = %v", keys)
	}
}

// TestRedisSessionTTL verifies only non-persisted entries expire.
func TestRedisSessionTTL(t *testing.T) {
	s, mr := testRedis(t, WithSessionTTL(time.Minute))
	ctx := context.Background()

	if err := s.SetValue(ctx, "temp", 1, false); err != nil {
		t.Fatalf("SetValue temp: %v", err)
	}
	if err := s.SetValue(ctx, "kept", 2, true); err != nil {
		t.Fatalf("SetValue kept: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := s.Value(ctx, "temp"); err != ErrNotFound {
		t.Errorf("temp after ttl err = %v, want ErrNotFound", err)
	}
	if _, err := s.Value(ctx, "kept"); err != nil {
		t.Errorf("kept after ttl err = %v", err)
	}

	// The index prunes the expired entry lazily.
	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 1 || keys[0] != "kept" {
		t.Errorf("keys = %v", keys)
	}
}

// TestRedisKeyPrefix verifies values land under the configured prefix.
func TestRedisKeyPrefix(t *testing.T) {
	s, mr := testRedis(t, WithPrefix("acme:state:"))
	if err := s.SetValue(context.Background(), "x", 1, true); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if !mr.Exists("acme:state:x") {
		t.Error("value not stored under configured prefix")
	}
}
