package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tuht/evsc-assistant/internal/domain"
)

// Default result caps; callers can lower them through the filters or
// disable them entirely with NoLimit, but never raise them.
const (
	maxPartRows      = 20
	maxInventoryRows = 50
	maxUsageRows     = 100
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS centers (
			center_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS spare_parts (
			spare_part_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			unit_price REAL NOT NULL DEFAULT 0,
			manufacture TEXT,
			is_active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS inventory (
			inventory_id TEXT PRIMARY KEY,
			center_id TEXT NOT NULL,
			spare_part_id TEXT,
			quantity INTEGER NOT NULL DEFAULT 0,
			minimum_stock_level INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY (spare_part_id) REFERENCES spare_parts(spare_part_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_center ON inventory(center_id)`,
		`CREATE TABLE IF NOT EXISTS usage_history (
			usage_id TEXT PRIMARY KEY,
			spare_part_id TEXT NOT NULL,
			center_id TEXT NOT NULL,
			quantity_used INTEGER NOT NULL,
			used_date DATETIME NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY (spare_part_id) REFERENCES spare_parts(spare_part_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_part ON usage_history(spare_part_id, used_date)`,
		`CREATE TABLE IF NOT EXISTS forecasts (
			forecast_id INTEGER PRIMARY KEY AUTOINCREMENT,
			spare_part_id TEXT NOT NULL,
			center_id TEXT NOT NULL,
			predicted_usage INTEGER NOT NULL,
			safety_stock INTEGER NOT NULL,
			reorder_point INTEGER NOT NULL,
			forecasted_by TEXT NOT NULL,
			confidence REAL NOT NULL,
			status TEXT NOT NULL DEFAULT 'PENDING',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS part_proposals (
			proposal_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			manufacture TEXT,
			unit_price REAL NOT NULL DEFAULT 0,
			reason TEXT,
			proposed_by TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// QueryParts returns active spare parts matching the filter.
func (s *SQLiteStore) QueryParts(ctx context.Context, f PartFilter) ([]domain.SparePart, error) {
	query := `SELECT spare_part_id, name, unit_price, COALESCE(manufacture, ''), is_active
		FROM spare_parts WHERE is_active = 1`
	args := []interface{}{}

	if f.SparePartID != "" {
		query += " AND spare_part_id = ?"
		args = append(args, f.SparePartID)
	}
	if f.NameLike != "" {
		query += " AND LOWER(name) LIKE ?"
		args = append(args, "%"+strings.ToLower(f.NameLike)+"%")
	}
	query += " ORDER BY unit_price DESC, name LIMIT ?"
	args = append(args, capLimit(f.Limit, maxPartRows))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query parts: %w", err)
	}
	defer rows.Close()

	var parts []domain.SparePart
	for rows.Next() {
		var p domain.SparePart
		if err := rows.Scan(&p.SparePartID, &p.Name, &p.UnitPrice, &p.Manufacture, &p.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan part: %w", err)
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

// QueryInventory returns active inventory records, joined to parts where
// a matching part row exists.
func (s *SQLiteStore) QueryInventory(ctx context.Context, f InventoryFilter) ([]domain.InventoryRecord, error) {
	query := `SELECT i.inventory_id, i.center_id, COALESCE(i.spare_part_id, ''),
			COALESCE(p.name, ''), i.quantity, i.minimum_stock_level, i.is_active
		FROM inventory i
		LEFT JOIN spare_parts p ON i.spare_part_id = p.spare_part_id
		WHERE i.is_active = 1`
	args := []interface{}{}

	if f.CenterID != "" {
		query += " AND i.center_id = ?"
		args = append(args, f.CenterID)
	}
	query += " ORDER BY i.quantity ASC LIMIT ?"
	args = append(args, capLimit(f.Limit, maxInventoryRows))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory: %w", err)
	}
	defer rows.Close()

	var records []domain.InventoryRecord
	for rows.Next() {
		var r domain.InventoryRecord
		if err := rows.Scan(&r.InventoryID, &r.CenterID, &r.SparePartID, &r.PartName,
			&r.Quantity, &r.MinimumStockLevel, &r.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan inventory record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// QueryUsageHistory returns active usage rows inside the months-back
// window, newest first.
func (s *SQLiteStore) QueryUsageHistory(ctx context.Context, f UsageFilter) ([]domain.UsageRecord, error) {
	months := f.MonthsBack
	if months < 1 {
		months = 1
	}
	if months > 24 {
		months = 24
	}
	since := time.Now().AddDate(0, -months, 0)

	query := `SELECT usage_id, spare_part_id, center_id, quantity_used, used_date, is_active
		FROM usage_history WHERE is_active = 1 AND used_date >= ?`
	args := []interface{}{since}

	if f.SparePartID != "" {
		query += " AND spare_part_id = ?"
		args = append(args, f.SparePartID)
	}
	if f.CenterID != "" {
		query += " AND center_id = ?"
		args = append(args, f.CenterID)
	}
	query += " ORDER BY used_date DESC LIMIT ?"
	args = append(args, capLimit(f.Limit, maxUsageRows))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage history: %w", err)
	}
	defer rows.Close()

	var records []domain.UsageRecord
	for rows.Next() {
		var r domain.UsageRecord
		if err := rows.Scan(&r.UsageID, &r.SparePartID, &r.CenterID, &r.QuantityUsed, &r.UsedDate, &r.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// FirstActiveCenterID returns an active center id, or "" when the table
// is empty.
func (s *SQLiteStore) FirstActiveCenterID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT center_id FROM centers WHERE is_active = 1 ORDER BY center_id LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query centers: %w", err)
	}
	return id, nil
}

// SaveForecast inserts one forecast row.
func (s *SQLiteStore) SaveForecast(ctx context.Context, rec *ForecastRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO forecasts (spare_part_id, center_id, predicted_usage, safety_stock,
			reorder_point, forecasted_by, confidence, status, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'PENDING', 1)`,
		rec.SparePartID, rec.CenterID, rec.PredictedUsage, rec.SafetyStock,
		rec.ReorderPoint, rec.ForecastedBy, rec.Confidence)
	if err != nil {
		return fmt.Errorf("failed to save forecast: %w", err)
	}
	return nil
}

// SavePartProposal inserts one user-suggested spare part.
func (s *SQLiteStore) SavePartProposal(ctx context.Context, p *PartProposal) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO part_proposals (proposal_id, name, manufacture, unit_price, reason, proposed_by)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ProposalID, p.Name, p.Manufacture, p.UnitPrice, p.Reason, p.ProposedBy)
	if err != nil {
		return fmt.Errorf("failed to save part proposal: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func capLimit(requested, max int) int {
	// SQLite treats a negative LIMIT as unbounded.
	if requested == NoLimit {
		return -1
	}
	if requested <= 0 || requested > max {
		return max
	}
	return requested
}
