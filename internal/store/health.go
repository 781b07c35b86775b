package store

import (
	"context"
	"fmt"
)

// Tables lists the persistent tables in dependency order.
var Tables = []string{"neighborhoods", "streets", "clients", "payments", "logs", "settings"}

// Health is a point-in-time report on the database file.
type Health struct {
	IntegrityOK     bool             `json:"integrity_ok"`
	IntegrityDetail []string         `json:"integrity_detail,omitempty"`
	SizeBytes       int64            `json:"size_bytes"`
	RowCounts       map[string]int64 `json:"row_counts"`
	EngineVersion   string           `json:"engine_version"`
	SchemaVersion   int              `json:"schema_version"`
}

// Health runs an integrity check and gathers size, per-table row counts and
// the SQLite version. Missing tables (e.g. on a legacy database) are
// skipped rather than reported as errors.
func (s *Store) Health(ctx context.Context) (*Health, error) {
	h := &Health{RowCounts: make(map[string]int64)}

	rows, err := s.db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return nil, fmt.Errorf("integrity check: %w", err)
	}
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan integrity check: %w", err)
		}
		h.IntegrityDetail = append(h.IntegrityDetail, line)
	}
	// Release the single connection before issuing the next query.
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate integrity check: %w", err)
	}
	h.IntegrityOK = len(h.IntegrityDetail) == 1 && h.IntegrityDetail[0] == "ok"
	if h.IntegrityOK {
		h.IntegrityDetail = nil
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return nil, fmt.Errorf("page_count: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return nil, fmt.Errorf("page_size: %w", err)
	}
	h.SizeBytes = pageCount * pageSize

	for _, table := range Tables {
		exists, err := TableExists(ctx, s, table)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}
		var n int64
		// Table names come from the fixed Tables list, never from input.
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		h.RowCounts[table] = n
	}

	if err := s.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&h.EngineVersion); err != nil {
		return nil, fmt.Errorf("sqlite_version: %w", err)
	}
	if h.SchemaVersion, err = UserVersion(ctx, s); err != nil {
		return nil, err
	}
	return h, nil
}
