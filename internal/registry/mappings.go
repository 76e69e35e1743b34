package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PutMapping upserts a learned ephemeral-to-phone mapping. The write is
// synchronous: once it returns nil the mapping is durable.
func (s *Store) PutMapping(ephemeralID, phone string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO phone_mappings (ephemeral_id, phone, learned_at)
		VALUES (?, ?, ?)`,
		ephemeralID, phone, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put mapping %s: %w", ephemeralID, err)
	}
	return nil
}

func (s *Store) GetMapping(ephemeralID string) (string, bool, error) {
	var phone string
	err := s.db.QueryRow(`
		SELECT phone FROM phone_mappings WHERE ephemeral_id = ?`,
		ephemeralID).Scan(&phone)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get mapping %s: %w", ephemeralID, err)
	}
	return phone, true, nil
}

func (s *Store) AllMappings() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT ephemeral_id, phone FROM phone_mappings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var eph, phone string
		if err := rows.Scan(&eph, &phone); err != nil {
			return nil, err
		}
		out[eph] = phone
	}
	return out, rows.Err()
}
