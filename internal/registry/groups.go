package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

type GroupRecord struct {
	GroupID       string
	Name          string
	CreatorPhone  string
	CreatedAt     time.Time
	Status        string
	LeftAt        *time.Time
	ReactivatedAt *time.Time
}

func (g *GroupRecord) Active() bool { return g.Status == StatusActive }

// CreateGroup inserts a fresh active record. The group id is
// transport-assigned and immutable, so a collision is a caller bug.
func (s *Store) CreateGroup(groupID, name, creatorPhone string, createdAt time.Time) (*GroupRecord, error) {
	_, err := s.db.Exec(`
		INSERT INTO groups (group_id, name, creator_phone, created_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		groupID, name, creatorPhone, createdAt.UTC(), StatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("create group %s: %w", groupID, err)
	}
	return &GroupRecord{
		GroupID:      groupID,
		Name:         name,
		CreatorPhone: creatorPhone,
		CreatedAt:    createdAt.UTC(),
		Status:       StatusActive,
	}, nil
}

func (s *Store) GetGroup(groupID string) (*GroupRecord, error) {
	row := s.db.QueryRow(`
		SELECT group_id, name, creator_phone, created_at, status, left_at, reactivated_at
		FROM groups WHERE group_id = ?`, groupID)
	return scanGroup(row)
}

// FindActiveGroupFor returns the creator's active group, or nil if they have
// none. The one-active-group-per-creator invariant is maintained by the
// provisioning flow, not by the store.
func (s *Store) FindActiveGroupFor(creatorPhone string) (*GroupRecord, error) {
	row := s.db.QueryRow(`
		SELECT group_id, name, creator_phone, created_at, status, left_at, reactivated_at
		FROM groups WHERE creator_phone = ? AND status = ?`, creatorPhone, StatusActive)
	rec, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *Store) MarkGroupInactive(groupID string, leftAt time.Time) error {
	res, err := s.db.Exec(`
		UPDATE groups SET status = ?, left_at = ? WHERE group_id = ?`,
		StatusInactive, leftAt.UTC(), groupID)
	if err != nil {
		return fmt.Errorf("deactivate group %s: %w", groupID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("deactivate group %s: %w", groupID, sql.ErrNoRows)
	}
	return nil
}

func (s *Store) ReactivateGroup(groupID, newName string, at time.Time) error {
	res, err := s.db.Exec(`
		UPDATE groups SET status = ?, name = ?, reactivated_at = ?, left_at = NULL
		WHERE group_id = ?`,
		StatusActive, newName, at.UTC(), groupID)
	if err != nil {
		return fmt.Errorf("reactivate group %s: %w", groupID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("reactivate group %s: %w", groupID, sql.ErrNoRows)
	}
	return nil
}

func (s *Store) ListActiveGroups() ([]*GroupRecord, error) {
	rows, err := s.db.Query(`
		SELECT group_id, name, creator_phone, created_at, status, left_at, reactivated_at
		FROM groups WHERE status = ? ORDER BY created_at`, StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*GroupRecord
	for rows.Next() {
		rec, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (*GroupRecord, error) {
	var rec GroupRecord
	var leftAt, reactivatedAt sql.NullTime
	err := row.Scan(&rec.GroupID, &rec.Name, &rec.CreatorPhone, &rec.CreatedAt,
		&rec.Status, &leftAt, &reactivatedAt)
	if err != nil {
		return nil, err
	}
	if leftAt.Valid {
		t := leftAt.Time
		rec.LeftAt = &t
	}
	if reactivatedAt.Valid {
		t := reactivatedAt.Time
		rec.ReactivatedAt = &t
	}
	return &rec, nil
}
