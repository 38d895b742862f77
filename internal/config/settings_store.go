package config

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/haasonsaas/stark/internal/agent"
	"github.com/haasonsaas/stark/internal/storage"
)

// Settings key names as persisted in the storage.SettingsStore overlay.
const (
	settingsKeyBotName             = "bot_name"
	settingsKeyRequireConfirmation = "require_confirmation"
	settingsKeyDefaultModel        = "default_model"
)

// SettingsStore is the copy-on-update handle §9 calls for to resolve the
// "global mutable settings" anti-pattern: reads never block a writer and a
// writer never mutates a value a reader already holds. Every Update copies
// the current Settings, applies the mutation, and swaps in the new value
// atomically; every Snapshot is a lock-free load of whatever was swapped in
// most recently. The Dispatcher calls Snapshot once per turn (RunTurn) so a
// concurrent operator edit never changes policy mid-turn.
type SettingsStore struct {
	v atomic.Pointer[agent.Settings]

	// backing, if non-nil, is the durable key-value overlay (the
	// "settings" table) that Update also writes through to, so a restart
	// picks up the last value an operator set rather than reverting to
	// the config file's seed.
	backing storage.SettingsStore
}

// NewSettingsStore returns a store seeded with initial. Reads never see a
// zero value.
func NewSettingsStore(initial agent.Settings) *SettingsStore {
	st := &SettingsStore{}
	st.v.Store(&initial)
	return st
}

// SettingsFromConfig converts a Config's seed values into agent.Settings.
func SettingsFromConfig(cfg *Config) agent.Settings {
	requireConfirmation := true
	if cfg.Settings.RequireConfirmation != nil {
		requireConfirmation = *cfg.Settings.RequireConfirmation
	}
	return agent.Settings{
		BotName:             cfg.Settings.BotName,
		RequireConfirmation: requireConfirmation,
		DefaultModel:        cfg.Settings.DefaultModel,
	}
}

// LoadSettingsStore seeds a SettingsStore from cfg and then overlays any
// values an operator previously persisted to backing, matching §4.11's
// "Config carries ... a read-mostly settings snapshot" precedence: file
// defaults, then the durable overlay on top.
func LoadSettingsStore(ctx context.Context, cfg *Config, backing storage.SettingsStore) (*SettingsStore, error) {
	settings := SettingsFromConfig(cfg)
	st := NewSettingsStore(settings)
	st.backing = backing
	if backing == nil {
		return st, nil
	}

	if v, ok, err := backing.Get(ctx, settingsKeyBotName); err != nil {
		return nil, fmt.Errorf("load setting %q: %w", settingsKeyBotName, err)
	} else if ok {
		settings.BotName = v
	}
	if v, ok, err := backing.Get(ctx, settingsKeyRequireConfirmation); err != nil {
		return nil, fmt.Errorf("load setting %q: %w", settingsKeyRequireConfirmation, err)
	} else if ok {
		if parsed, err := strconv.ParseBool(v); err == nil {
			settings.RequireConfirmation = parsed
		}
	}
	if v, ok, err := backing.Get(ctx, settingsKeyDefaultModel); err != nil {
		return nil, fmt.Errorf("load setting %q: %w", settingsKeyDefaultModel, err)
	} else if ok {
		settings.DefaultModel = v
	}
	st.v.Store(&settings)
	return st, nil
}

// Snapshot implements agent.SettingsSource.
func (s *SettingsStore) Snapshot() agent.Settings {
	return *s.v.Load()
}

// Update applies mutate to a copy of the current Settings and swaps it in,
// retrying on a concurrent writer's interleaved update. It returns the
// Settings the store holds once the swap wins.
func (s *SettingsStore) Update(mutate func(*agent.Settings)) agent.Settings {
	for {
		old := s.v.Load()
		next := *old
		mutate(&next)
		if s.v.CompareAndSwap(old, &next) {
			return next
		}
	}
}

// Persist writes s's current snapshot through to the durable overlay, if
// one was configured. Call after Update when the change should survive a
// restart (e.g. an admin RPC editing require_confirmation).
func (s *SettingsStore) Persist(ctx context.Context) error {
	if s.backing == nil {
		return nil
	}
	snap := s.Snapshot()
	if err := s.backing.Set(ctx, settingsKeyBotName, snap.BotName); err != nil {
		return fmt.Errorf("persist setting %q: %w", settingsKeyBotName, err)
	}
	if err := s.backing.Set(ctx, settingsKeyRequireConfirmation, strconv.FormatBool(snap.RequireConfirmation)); err != nil {
		return fmt.Errorf("persist setting %q: %w", settingsKeyRequireConfirmation, err)
	}
	if err := s.backing.Set(ctx, settingsKeyDefaultModel, snap.DefaultModel); err != nil {
		return fmt.Errorf("persist setting %q: %w", settingsKeyDefaultModel, err)
	}
	return nil
}
