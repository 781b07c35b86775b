package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UserVersion reads PRAGMA user_version, the persisted schema version.
func UserVersion(ctx context.Context, q Querier) (int, error) {
	var version int
	if err := q.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion writes PRAGMA user_version. Inside a transaction the write
// commits or rolls back with it.
func SetUserVersion(ctx context.Context, q Querier, version int) error {
	if _, err := q.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// TableExists reports whether a table named name exists.
func TableExists(ctx context.Context, q Querier, name string) (bool, error) {
	return masterEntryExists(ctx, q, "table", name)
}

// IndexExists reports whether an index named name exists.
func IndexExists(ctx context.Context, q Querier, name string) (bool, error) {
	return masterEntryExists(ctx, q, "index", name)
}

func masterEntryExists(ctx context.Context, q Querier, kind, name string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?",
		kind, name,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("probe %s %s: %w", kind, name, err)
	}
	return n > 0, nil
}

// ColumnExists reports whether table has a column named column.
func ColumnExists(ctx context.Context, q Querier, table, column string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?",
		table, column,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("probe column %s.%s: %w", table, column, err)
	}
	return n > 0, nil
}

// GetSetting reads a key from the settings table. ok is false when the key
// (or the table) is absent.
func GetSetting(ctx context.Context, q Querier, key string) (value string, ok bool, err error) {
	exists, err := TableExists(ctx, q, "settings")
	if err != nil || !exists {
		return "", false, err
	}
	err = q.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, true, nil
}

// SetSetting upserts a key in the settings table.
func SetSetting(ctx context.Context, q Querier, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
