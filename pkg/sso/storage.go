package sso

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/platinummonkey/doorman/pkg/observability"
)

// SettingsStore persists the gateway settings as a single JSON document and
// serves a cached snapshot to the request path. The snapshot is invalidated
// on save; admin saves are serialized by the hosting framework, so there is
// no write-write hazard.
type SettingsStore struct {
	db       *sql.DB
	logger   *observability.Logger
	snapshot atomic.Pointer[Settings]
}

// NewSettingsStore creates a new settings store
func NewSettingsStore(db *sql.DB, logger *observability.Logger) *SettingsStore {
	return &SettingsStore{db: db, logger: logger}
}

// Load reads the persisted settings, bypassing the snapshot. Returns
// defaults when nothing has been saved yet.
func (s *SettingsStore) Load(ctx context.Context) (*Settings, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT settings FROM sso_settings WHERE id = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return DefaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	settings := &Settings{}
	if err := json.Unmarshal(payload, settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if settings.Variable == "" {
		settings.Variable = DefaultVariable
	}
	return settings, nil
}

// Save persists the settings and refreshes the snapshot
func (s *SettingsStore) Save(ctx context.Context, settings *Settings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sso_settings (id, settings, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET settings = $1, updated_at = NOW()
	`, payload)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	copied := *settings
	s.snapshot.Store(&copied)
	return nil
}

// Current returns the settings snapshot for the request path, loading it on
// first use. On a load failure it falls back to defaults (SSO disabled),
// which keeps the gateway serving.
func (s *SettingsStore) Current(ctx context.Context) *Settings {
	if snap := s.snapshot.Load(); snap != nil {
		return snap
	}

	settings, err := s.Load(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("settings load failed, using defaults")
		return DefaultSettings()
	}
	s.snapshot.Store(settings)
	return settings
}

// Invalidate drops the snapshot so the next request reloads from the store
func (s *SettingsStore) Invalidate() {
	s.snapshot.Store(nil)
}
