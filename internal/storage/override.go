package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cart-drawer/internal/reconcile"
)

// OverrideKey is the storage key of the shipping protection opt-out.
const OverrideKey = "shippingProtectionDisabled"

// OverrideTTL is how long an opt-out is honored after it is written.
const OverrideTTL = time.Hour

// overrideRecord is the stored layout: {"value":"true","expiry":<epoch ms>}.
type overrideRecord struct {
	Value  string `json:"value"`
	Expiry int64  `json:"expiry"`
}

// OverrideStore reads and writes one shopper's protection opt-out.
// Expiry is enforced lazily: an expired record stays in storage until the
// next read deletes it.
type OverrideStore struct {
	kv       Storage
	key      string
	now      func() time.Time
	logger   *slog.Logger
	onExpire func()
}

// NewOverrideStore binds the opt-out of the shopper identified by scope.
// An empty scope uses the bare key (single-shopper storage such as the CLI).
func NewOverrideStore(kv Storage, scope string, logger *slog.Logger) *OverrideStore {
	key := OverrideKey
	if scope != "" {
		key = "session:" + scope + ":" + OverrideKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OverrideStore{kv: kv, key: key, now: time.Now, logger: logger}
}

// WithClock replaces the time source. Used by tests.
func (s *OverrideStore) WithClock(now func() time.Time) *OverrideStore {
	s.now = now
	return s
}

// OnExpire registers fn to run whenever a read finds an inert record.
func (s *OverrideStore) OnExpire(fn func()) *OverrideStore {
	s.onExpire = fn
	return s
}

// Disable records an opt-out valid for OverrideTTL from now.
func (s *OverrideStore) Disable(ctx context.Context) error {
	rec := overrideRecord{
		Value:  "true",
		Expiry: s.now().Add(OverrideTTL).UnixMilli(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling override: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("writing override: %w", err)
	}
	return nil
}

// Enable removes the opt-out.
func (s *OverrideStore) Enable(ctx context.Context) error {
	if err := s.kv.Remove(ctx, s.key); err != nil {
		return fmt.Errorf("removing override: %w", err)
	}
	return nil
}

// Active returns the opt-out if it is still in force, nil otherwise.
// Expired or unreadable records are deleted on the way out.
func (s *OverrideStore) Active(ctx context.Context) (*reconcile.Override, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("reading override: %w", err)
	}
	if !ok {
		return nil, nil
	}

	stored := &reconcile.Override{}
	var rec overrideRecord
	if err := json.Unmarshal([]byte(raw), &rec); err == nil {
		stored.Value = rec.Value == "true"
		stored.Expiry = time.UnixMilli(rec.Expiry)
	}

	active, stale := reconcile.ReadOverride(stored, s.now())
	if stale {
		if s.onExpire != nil {
			s.onExpire()
		}
		if err := s.kv.Remove(ctx, s.key); err != nil {
			// Inert either way; the next read retries the delete.
			s.logger.WarnContext(ctx, "failed to delete expired override",
				slog.String("key", s.key),
				slog.String("error", err.Error()))
		}
	}
	return active, nil
}
