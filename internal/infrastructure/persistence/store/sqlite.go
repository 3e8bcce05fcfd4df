package store

import (
	"database/sql"
	"time"

	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/observability/logging"
	"github.com/badalhalder99/newVital-sub000/internal/infrastructure/persistence/database"
	"github.com/badalhalder99/newVital-sub000/pkg/config"
)

// SQLStore is the production DurableStore backed by a single key-value
// table. The row budget stands in for the quota a browser's localStorage
// imposes; exceeding it surfaces ErrQuotaExceeded so the guarded wrapper
// can run its cleanup pass.
type SQLStore struct {
	db        *database.DB
	logger    *logging.ChanneledLogger
	rowBudget int
}

// NewSQLStore opens (and migrates) the key-value table on the given
// connection.
func NewSQLStore(db *database.DB, logger *logging.ChanneledLogger) (*SQLStore, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS kv_store (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)`

	if _, err := db.Exec(schema); err != nil {
		logger.Storage().Error("Failed to create kv_store table", "error", err.Error())
		return nil, err
	}

	return &SQLStore{
		db:        db,
		logger:    logger,
		rowBudget: config.StoreRowBudget,
	}, nil
}

// Get returns the value for key, reporting presence explicitly.
func (s *SQLStore) Get(key string) (string, bool, error) {
	const query = `SELECT value FROM kv_store WHERE key = ?`

	start := time.Now()
	var value string
	err := s.db.QueryRow(query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		s.logger.Storage().Error("Failed to read key", "error", err.Error(), "key", key)
		return "", false, err
	}

	if duration := time.Since(start); duration > config.SlowQueryThreshold {
		s.logger.LogSlowQuery(query, duration, "store")
	}
	return value, true, nil
}

// Set upserts the value, enforcing the row budget for new keys.
func (s *SQLStore) Set(key, value string) error {
	if s.rowBudget > 0 {
		var count int
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM kv_store WHERE key != ?`, key).Scan(&count); err == nil && count >= s.rowBudget {
			return ErrQuotaExceeded
		}
	}

	const query = `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	_, err := s.db.Exec(query, key, value, time.Now().UTC())
	if err != nil {
		s.logger.Storage().Error("Failed to write key", "error", err.Error(), "key", key)
	}
	return err
}

// Remove deletes the key. Removing a missing key is not an error.
func (s *SQLStore) Remove(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv_store WHERE key = ?`, key)
	if err != nil {
		s.logger.Storage().Error("Failed to remove key", "error", err.Error(), "key", key)
	}
	return err
}

// KeysWithPrefix returns all keys under the prefix, oldest write first.
func (s *SQLStore) KeysWithPrefix(prefix string) ([]string, error) {
	const query = `
		SELECT key FROM kv_store
		WHERE key LIKE ? || '%'
		ORDER BY updated_at ASC`

	rows, err := s.db.Query(query, prefix)
	if err != nil {
		s.logger.Storage().Error("Failed to list keys", "error", err.Error(), "prefix", prefix)
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close closes the underlying connection.
func (s *SQLStore) Close() error { return s.db.Close() }
