package schema

import (
	"context"
	"fmt"

	"github.com/roach88/routebook/internal/store"
)

// indexes are the secondary indexes of the latest schema. Every statement
// is idempotent.
var indexes = []string{
	// Positions <= 0 are transient or unsequenced and stay out of the index.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_clients_street_order
		ON clients(street_id, visit_order) WHERE visit_order > 0`,
	`CREATE INDEX IF NOT EXISTS idx_clients_name ON clients(name COLLATE NOCASE)`,
	`CREATE INDEX IF NOT EXISTS idx_clients_next_charge ON clients(next_charge_date)`,
	`CREATE INDEX IF NOT EXISTS idx_clients_updated_at ON clients(updated_at)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_client ON payments(client_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_timestamp ON payments(timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_logs_client_timestamp ON logs(client_id, timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_streets_neighborhood ON streets(neighborhood_id)`,
}

// IndexNames lists the names created by EnsureIndexes.
var IndexNames = []string{
	"idx_clients_street_order",
	"idx_clients_name",
	"idx_clients_next_charge",
	"idx_clients_updated_at",
	"idx_payments_client",
	"idx_payments_timestamp",
	"idx_logs_client_timestamp",
	"idx_streets_neighborhood",
}

// EnsureIndexes creates any missing index of the latest schema. Safe to
// call on every start; the database must already be at LatestVersion.
func (m *Manager) EnsureIndexes(ctx context.Context) error {
	version, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if version != LatestVersion {
		return fmt.Errorf("ensure indexes: schema is v%d, want v%d", version, LatestVersion)
	}
	return m.store.WithTx(ctx, func(ctx context.Context, tx *store.Tx) error {
		return createIndexes(ctx, tx)
	})
}

func createIndexes(ctx context.Context, tx *store.Tx) error {
	for _, stmt := range indexes {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
