package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLite stores settings rows in a single key/value table. database/sql
// serializes access, so no additional locking is needed here.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the settings database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open settings database %s: %w", path, err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create settings table: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "OpenSQLite",
		"path":     path,
	}).Info("Settings database opened")
	return &SQLite{db: db}, nil
}

// Get implements Store.Get.
func (s *SQLite) Get(key string) (string, bool) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			logrus.WithFields(logrus.Fields{
				"function": "Get",
				"key":      key,
				"error":    err,
			}).Error("Settings read failed")
		}
		return "", false
	}
	return value, true
}

// Set implements Store.Set.
func (s *SQLite) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("persist setting %s: %w", key, err)
	}
	return nil
}

// Delete implements Store.Delete. The substr comparison avoids LIKE
// wildcard handling for keys containing metacharacters.
func (s *SQLite) Delete(prefix string) error {
	_, err := s.db.Exec(
		`DELETE FROM settings
		 WHERE key = ?1 OR substr(key, 1, length(?1) + 1) = ?1 || '.'`, prefix)
	if err != nil {
		return fmt.Errorf("delete settings under %s: %w", prefix, err)
	}
	return nil
}

// List implements Store.List.
func (s *SQLite) List(prefix string) []string {
	var rows *sql.Rows
	var err error
	if prefix == "" {
		rows, err = s.db.Query(`SELECT key FROM settings ORDER BY key`)
	} else {
		rows, err = s.db.Query(
			`SELECT key FROM settings
			 WHERE key = ?1 OR substr(key, 1, length(?1) + 1) = ?1 || '.'
			 ORDER BY key`, prefix)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "List",
			"prefix":   prefix,
			"error":    err,
		}).Error("Settings scan failed")
		return nil
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
