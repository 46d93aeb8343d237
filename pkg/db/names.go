package db

import (
	"context"

	"github.com/rs/zerolog/log"
)

// DeviceNames returns a name store scoped to one profile. It satisfies the
// plug controller's NameStore interface for local rename persistence.
func (db *DB) DeviceNames(profileID int64) *DeviceNameStore {
	return &DeviceNameStore{db: db, profileID: profileID}
}

// DeviceNameStore persists locally assigned device names.
type DeviceNameStore struct {
	db        *DB
	profileID int64
}

// DeviceName returns the local name for a device, if one was assigned.
func (s *DeviceNameStore) DeviceName(id string) (string, bool) {
	var name string
	err := s.db.QueryRowContext(context.Background(), `
		SELECT name FROM device_names WHERE device_id = ? AND profile_id = ?
	`, id, s.profileID).Scan(&name)
	if err != nil {
		return "", false
	}
	return name, true
}

// SetDeviceName assigns or replaces the local name for a device.
func (s *DeviceNameStore) SetDeviceName(id, name string) error {
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO device_names (device_id, profile_id, name)
		VALUES (?, ?, ?)
		ON CONFLICT(device_id, profile_id)
		DO UPDATE SET name = excluded.name, updated_at = datetime('now')
	`, id, s.profileID, name)
	if err != nil {
		log.Warn().Err(err).Str("device", id).Msg("Failed to persist device name")
	}
	return err
}

// DeleteDeviceName removes the local name for a device. Removing a name
// that was never set is not an error.
func (s *DeviceNameStore) DeleteDeviceName(id string) error {
	_, err := s.db.ExecContext(context.Background(), `
		DELETE FROM device_names WHERE device_id = ? AND profile_id = ?
	`, id, s.profileID)
	return err
}
