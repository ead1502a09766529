package store

import (
	"context"
	"fmt"

	"github.com/tuht/evsc-assistant/internal/domain"
)

// Insert helpers for data loading and tests. The assistant itself only
// reads these tables; rows normally arrive through the platform's sync
// jobs outside this service.

func (s *SQLiteStore) InsertCenter(ctx context.Context, c domain.Center, active bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO centers (center_id, name, is_active) VALUES (?, ?, ?)`,
		c.ID, c.Name, boolToInt(active))
	if err != nil {
		return fmt.Errorf("failed to insert center: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertPart(ctx context.Context, p domain.SparePart) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO spare_parts (spare_part_id, name, unit_price, manufacture, is_active)
		VALUES (?, ?, ?, ?, ?)`,
		p.SparePartID, p.Name, p.UnitPrice, p.Manufacture, boolToInt(p.IsActive))
	if err != nil {
		return fmt.Errorf("failed to insert part: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertInventory(ctx context.Context, r domain.InventoryRecord) error {
	var partID interface{}
	if r.SparePartID != "" {
		partID = r.SparePartID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO inventory (inventory_id, center_id, spare_part_id, quantity, minimum_stock_level, is_active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.InventoryID, r.CenterID, partID, r.Quantity, r.MinimumStockLevel, boolToInt(r.IsActive))
	if err != nil {
		return fmt.Errorf("failed to insert inventory: %w", err)
	}
	return nil
}

func (s *SQLiteStore) InsertUsage(ctx context.Context, r domain.UsageRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO usage_history (usage_id, spare_part_id, center_id, quantity_used, used_date, is_active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.UsageID, r.SparePartID, r.CenterID, r.QuantityUsed, r.UsedDate, boolToInt(r.IsActive))
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
