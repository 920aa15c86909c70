package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jroosing/nettest/internal/config"
)

// ErrNotFound is returned by GetConfig for a key that is not stored.
var ErrNotFound = errors.New("config key not found")

const upsertConfig = `
	INSERT INTO config (key, value, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = CURRENT_TIMESTAMP
`

// SetConfig sets a configuration value.
func (db *DB) SetConfig(key, value string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.Exec(upsertConfig, key, value); err != nil {
		return fmt.Errorf("failed to set config %s: %w", key, err)
	}
	return nil
}

// GetConfig retrieves a configuration value.
func (db *DB) GetConfig(key string) (string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var value string
	err := db.conn.QueryRow("SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get config %s: %w", key, err)
	}
	return value, nil
}

// GetAllConfig retrieves all configuration key-value pairs.
func (db *DB) GetAllConfig() (map[string]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.Query("SELECT key, value FROM config ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to query config: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan config row: %w", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating config rows: %w", err)
	}
	return out, nil
}

// DeleteConfig removes a configuration key. Deleting a missing key is not an
// error.
func (db *DB) DeleteConfig(key string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.conn.Exec("DELETE FROM config WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete config %s: %w", key, err)
	}
	return nil
}

// SetMultipleConfig sets multiple config values in a transaction.
func (db *DB) SetMultipleConfig(values map[string]string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(upsertConfig)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for key, value := range values {
		if _, err := stmt.Exec(key, value); err != nil {
			return fmt.Errorf("failed to set config %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadInto applies every stored value to cfg. A stored key cfg does not know
// or a value that does not parse is an error naming the key.
func (db *DB) LoadInto(cfg *config.Config) error {
	values, err := db.GetAllConfig()
	if err != nil {
		return err
	}
	for _, key := range config.Keys() {
		if v, ok := values[key]; ok {
			if err := cfg.Set(key, v); err != nil {
				return fmt.Errorf("stored profile: %w", err)
			}
			delete(values, key)
		}
	}
	for key := range values {
		return fmt.Errorf("stored profile: %w: %s", config.ErrUnknownKey, key)
	}
	return nil
}

// SaveFrom stores the given keys of cfg, or every key when none are given.
func (db *DB) SaveFrom(cfg *config.Config, keys ...string) error {
	if len(keys) == 0 {
		keys = config.Keys()
	}
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		v, err := cfg.Get(key)
		if err != nil {
			return err
		}
		values[key] = v
	}
	return db.SetMultipleConfig(values)
}
