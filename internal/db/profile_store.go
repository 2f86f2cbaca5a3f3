package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/banshee-data/absorbance.report/internal/spectro"
)

// ProfileStore keeps the single current device profile.
type ProfileStore struct {
	db *DB
}

// NewProfileStore creates a ProfileStore.
func NewProfileStore(db *DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Load returns the saved profile, migrated to the current schema, or nil
// when none has been saved.
func (s *ProfileStore) Load(ctx context.Context) (*spectro.DeviceProfile, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload_json FROM device_profiles WHERE slot = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load device profile: %w", err)
	}
	return spectro.DecodeDeviceProfile([]byte(payload))
}

// Save replaces the stored profile. The stored copy is stamped with the
// current time; p itself is not modified.
func (s *ProfileStore) Save(ctx context.Context, p *spectro.DeviceProfile) error {
	if p == nil || p.DeviceHash == "" {
		return spectro.Errorf(spectro.ErrValidation, "save profile", "profile with device_hash is required")
	}
	cp := p.Clone()
	cp.UpdatedAt = s.db.now().UnixNano()
	payload, err := spectro.EncodeDeviceProfile(cp)
	if err != nil {
		return fmt.Errorf("encode device profile: %w", err)
	}

	return retryOnBusy(s.db.clock, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO device_profiles (slot, device_hash, schema_version, payload_json, updated_at)
			VALUES (1, ?, ?, ?, ?)
			ON CONFLICT(slot) DO UPDATE SET
				device_hash = excluded.device_hash,
				schema_version = excluded.schema_version,
				payload_json = excluded.payload_json,
				updated_at = excluded.updated_at`,
			cp.DeviceHash, spectro.CurrentProfileSchema, string(payload), cp.UpdatedAt,
		)
		return err
	})
}

// Clear removes the stored profile. Clearing an empty store is not an error.
func (s *ProfileStore) Clear(ctx context.Context) error {
	return retryOnBusy(s.db.clock, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM device_profiles WHERE slot = 1`)
		return err
	})
}
