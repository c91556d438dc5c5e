package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/pos-inventory/internal/core/domain"
	"github.com/rl1809/pos-inventory/internal/port"
)

const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
	errDuplicateKey    = 1062
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS inventory_snapshots (
		store_id   VARCHAR(64) NOT NULL,
		product_id VARCHAR(64) NOT NULL,
		barcode    VARCHAR(64) NULL,
		quantity   INT NOT NULL DEFAULT 0,
		updated_at TIMESTAMP(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
		PRIMARY KEY (store_id, product_id),
		CONSTRAINT chk_snapshot_quantity CHECK (quantity >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_entries (
		seq             BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		id              CHAR(36) NOT NULL,
		store_id        VARCHAR(64) NOT NULL,
		product_id      VARCHAR(64) NOT NULL,
		movement_type   VARCHAR(16) NOT NULL,
		delta           INT NOT NULL,
		unit_cost_minor BIGINT NULL,
		unit_sell_minor BIGINT NULL,
		reference_type  VARCHAR(32) NOT NULL,
		reference_id    VARCHAR(128) NOT NULL,
		created_at      TIMESTAMP(6) NOT NULL,
		UNIQUE KEY uniq_ledger_id (id),
		KEY idx_ledger_pair (store_id, product_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS processed_events (
		event_id    VARCHAR(64) NOT NULL PRIMARY KEY,
		device_id   VARCHAR(64) NOT NULL,
		store_id    VARCHAR(64) NOT NULL,
		event_type  VARCHAR(64) NOT NULL,
		received_at TIMESTAMP(6) NOT NULL,
		KEY idx_processed_received (received_at)
	)`,
}

type MySQLAdapter struct {
	db *sql.DB

	schemaMu sync.Mutex
	ensured  bool
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	m.schemaMu.Lock()
	defer m.schemaMu.Unlock()

	if m.ensured {
		return nil
	}
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	m.ensured = true
	return nil
}

func (m *MySQLAdapter) WithinTx(ctx context.Context, fn func(tx port.LedgerTx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&mysqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (m *MySQLAdapter) SnapshotQuantities(ctx context.Context, storeID string, productIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(productIDs)+1)
	args = append(args, storeID)
	for _, id := range productIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(productIDs)), ",")

	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, quantity FROM inventory_snapshots
		WHERE store_id = ? AND product_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out[id] = qty
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) ListSnapshots(ctx context.Context, storeID string) ([]domain.InventorySnapshot, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT store_id, product_id, COALESCE(barcode, ''), quantity, updated_at
		FROM inventory_snapshots WHERE store_id = ? ORDER BY product_id`, storeID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.InventorySnapshot
	for rows.Next() {
		var s domain.InventorySnapshot
		if err := rows.Scan(&s.StoreID, &s.ProductID, &s.Barcode, &s.Quantity, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) SumLedger(ctx context.Context, storeID, productID string) (int, error) {
	var sum int
	err := m.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(delta), 0) FROM ledger_entries
		WHERE store_id = ? AND product_id = ?`, storeID, productID,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}
	return sum, nil
}

func (m *MySQLAdapter) ListEntries(ctx context.Context, storeID, productID string) ([]domain.LedgerEntry, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, store_id, product_id, movement_type, delta, unit_cost_minor, unit_sell_minor,
			reference_type, reference_id, created_at
		FROM ledger_entries WHERE store_id = ? AND product_id = ? ORDER BY seq`, storeID, productID)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var movementType string
		var cost, sell sql.NullInt64
		if err := rows.Scan(&e.ID, &e.StoreID, &e.ProductID, &movementType, &e.Delta, &cost, &sell,
			&e.ReferenceType, &e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		e.MovementType = domain.MovementType(movementType)
		if cost.Valid {
			e.UnitCostMinor = domain.Int64(cost.Int64)
		}
		if sell.Valid {
			e.UnitSellMinor = domain.Int64(sell.Int64)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) LedgerDrift(ctx context.Context, storeID string) ([]port.Drift, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT s.product_id, s.quantity, COALESCE(SUM(l.delta), 0) AS ledger
		FROM inventory_snapshots s
		LEFT JOIN ledger_entries l ON l.store_id = s.store_id AND l.product_id = s.product_id
		WHERE s.store_id = ?
		GROUP BY s.product_id, s.quantity
		HAVING s.quantity <> ledger
		ORDER BY s.product_id`, storeID)
	if err != nil {
		return nil, fmt.Errorf("query drift: %w", err)
	}
	defer rows.Close()

	var out []port.Drift
	for rows.Next() {
		d := port.Drift{StoreID: storeID}
		if err := rows.Scan(&d.ProductID, &d.Snapshot, &d.Ledger); err != nil {
			return nil, fmt.Errorf("scan drift: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) ListStores(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT DISTINCT store_id FROM inventory_snapshots ORDER BY store_id`)
	if err != nil {
		return nil, fmt.Errorf("query stores: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var store string
		if err := rows.Scan(&store); err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		out = append(out, store)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	var one int
	err := m.db.QueryRowContext(ctx, `SELECT 1 FROM processed_events WHERE event_id = ?`, eventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query processed event: %w", err)
	}
	return true, nil
}

func (m *MySQLAdapter) PurgeProcessedEvents(ctx context.Context, before time.Time) (int64, error) {
	result, err := m.db.ExecContext(ctx, `DELETE FROM processed_events WHERE received_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("purge processed events: %w", err)
	}
	return result.RowsAffected()
}

type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) LockSnapshot(ctx context.Context, storeID, productID string) (int, error) {
	// The no-op upsert creates a missing row and leaves it X-locked either way.
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO inventory_snapshots (store_id, product_id, quantity)
		VALUES (?, ?, 0)
		ON DUPLICATE KEY UPDATE quantity = quantity`, storeID, productID)
	if err != nil {
		return 0, mapError(fmt.Errorf("create snapshot: %w", err))
	}

	var qty int
	err = t.tx.QueryRowContext(ctx, `
		SELECT quantity FROM inventory_snapshots
		WHERE store_id = ? AND product_id = ? FOR UPDATE`, storeID, productID,
	).Scan(&qty)
	if err != nil {
		return 0, mapError(fmt.Errorf("lock snapshot: %w", err))
	}
	return qty, nil
}

func (t *mysqlTx) SetSnapshot(ctx context.Context, storeID, productID string, quantity int) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE inventory_snapshots SET quantity = ?
		WHERE store_id = ? AND product_id = ?`, quantity, storeID, productID)
	if err != nil {
		return mapError(fmt.Errorf("update snapshot: %w", err))
	}
	return nil
}

func (t *mysqlTx) SetBarcode(ctx context.Context, storeID, productID, barcode string) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE inventory_snapshots SET barcode = ?
		WHERE store_id = ? AND product_id = ?`, barcode, storeID, productID)
	if err != nil {
		return mapError(fmt.Errorf("update barcode: %w", err))
	}
	return nil
}

func (t *mysqlTx) AppendEntry(ctx context.Context, e domain.LedgerEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, store_id, product_id, movement_type, delta,
			unit_cost_minor, unit_sell_minor, reference_type, reference_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.StoreID, e.ProductID, string(e.MovementType), e.Delta,
		nullInt64(e.UnitCostMinor), nullInt64(e.UnitSellMinor), e.ReferenceType, e.ReferenceID, e.CreatedAt,
	)
	if err != nil {
		return mapError(fmt.Errorf("insert ledger entry: %w", err))
	}
	return nil
}

func (t *mysqlTx) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM processed_events WHERE event_id = ?`, eventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapError(fmt.Errorf("query processed event: %w", err))
	}
	return true, nil
}

func (t *mysqlTx) RecordEvent(ctx context.Context, e domain.ProcessedEvent) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO processed_events (event_id, device_id, store_id, event_type, received_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.EventID, e.DeviceID, e.StoreID, e.EventType, e.ReceivedAt,
	)
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == errDuplicateKey {
		return fmt.Errorf("%w: %s", port.ErrDuplicateEvent, e.EventID)
	}
	if err != nil {
		return mapError(fmt.Errorf("insert processed event: %w", err))
	}
	return nil
}

func mapError(err error) error {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return err
	}
	switch myErr.Number {
	case errLockWaitTimeout, errDeadlock:
		return fmt.Errorf("%w: %v", port.ErrLockTimeout, err)
	}
	return err
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
