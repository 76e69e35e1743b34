// Package registry holds the bot's durable records: managed groups and
// learned phone mappings. Both live in a single sqlite database so a restart
// never loses what the bot has provisioned or learned.
package registry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type Store struct{ db *sql.DB }

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
	CREATE TABLE IF NOT EXISTS groups (
		group_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		creator_phone TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		left_at TIMESTAMP,
		reactivated_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_groups_creator ON groups(creator_phone, status);
	CREATE TABLE IF NOT EXISTS phone_mappings (
		ephemeral_id TEXT PRIMARY KEY,
		phone TEXT NOT NULL,
		learned_at TIMESTAMP NOT NULL
	);
	`)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }
