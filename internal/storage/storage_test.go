package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// exerciseStorage runs the shared Storage contract against one backend.
func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v; want miss", ok, err)
	}

	if err := s.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "k", "v2"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || v != "v2" {
		t.Fatalf("Get(k) = %q, %v, %v; want v2", v, ok, err)
	}

	if err := s.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("key should be gone after Remove")
	}
	if err := s.Remove(ctx, "k"); err != nil {
		t.Errorf("Remove of missing key should not fail: %v", err)
	}
}

func TestMemory(t *testing.T) {
	exerciseStorage(t, NewMemory())
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisWithClient(client)
	defer s.Close()

	exerciseStorage(t, s)

	// Keys are namespaced
	s.Set(context.Background(), "probe", "1")
	if !mr.Exists(keyPrefix + "probe") {
		t.Errorf("expected key %q in redis", keyPrefix+"probe")
	}
}

func TestNewRedis_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := NewRedis(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	s.Close()

	if _, err := NewRedis(context.Background(), ""); err == nil {
		t.Error("expected error for empty address")
	}
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drawer.db")
	s, err := NewSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	exerciseStorage(t, s)

	// Values survive reopening
	ctx := context.Background()
	if err := s.Set(ctx, "persist", "yes"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	reopened, err := NewSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if v, ok, _ := reopened.Get(ctx, "persist"); !ok || v != "yes" {
		t.Errorf("after reopen Get = %q, %v; want yes", v, ok)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{})
	if err != nil {
		t.Fatalf("Open(default): %v", err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("default driver = %T, want *Memory", s)
	}

	if _, err := Open(ctx, Options{Driver: "etcd"}); err != ErrUnknownDriver {
		t.Errorf("Open(etcd) err = %v, want ErrUnknownDriver", err)
	}
}
