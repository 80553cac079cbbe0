// Package storage persists shopper-scoped preferences that survive between
// drawer rebuilds. Values are opaque strings, mirroring browser local storage.
package storage

import (
	"context"
	"errors"
	"sync"
)

// ErrUnknownDriver is returned by Open for unsupported drivers.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Storage is a string key/value store.
// Get returns ok=false for missing keys; Remove of a missing key is not an error.
type Storage interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Memory is an in-process Storage. Used in development and tests.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *Memory) Close() error { return nil }

// Options selects and configures a backend for Open.
type Options struct {
	Driver     string // "memory", "redis" or "sqlite"
	RedisAddr  string
	SQLitePath string
}

// Open creates the Storage named by opts.Driver.
func Open(ctx context.Context, opts Options) (Storage, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(ctx, opts.RedisAddr)
	case "sqlite":
		return NewSQLite(ctx, opts.SQLitePath)
	default:
		return nil, ErrUnknownDriver
	}
}

var (
	_ Storage = (*Memory)(nil)
	_ Storage = (*Redis)(nil)
	_ Storage = (*SQLite)(nil)
)
