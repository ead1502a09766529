// Package store provides the relational read layer for parts, inventory
// and usage history, plus forecast persistence.
package store

import (
	"context"

	"github.com/tuht/evsc-assistant/internal/domain"
)

// NoLimit disables the per-query row cap. The forecast engine uses it to
// analyze the full dataset; the chat tools keep the default caps.
const NoLimit = -1

// PartFilter narrows a spare-parts query.
type PartFilter struct {
	SparePartID string
	NameLike    string
	Limit       int
}

// InventoryFilter narrows an inventory query.
type InventoryFilter struct {
	CenterID string
	Limit    int
}

// UsageFilter narrows a usage-history query. MonthsBack is clamped to
// [1, 24] by the store.
type UsageFilter struct {
	SparePartID string
	CenterID    string
	MonthsBack  int
	Limit       int
}

// ForecastRecord is a persisted forecast row.
type ForecastRecord struct {
	SparePartID    string
	CenterID       string
	PredictedUsage int
	SafetyStock    int
	ReorderPoint   int
	ForecastedBy   string
	Confidence     float64
}

// PartProposal is a user-suggested new spare part.
type PartProposal struct {
	ProposalID  string
	Name        string
	Manufacture string
	UnitPrice   float64
	Reason      string
	ProposedBy  string
}

// Store defines the database operations the assistant depends on.
type Store interface {
	QueryParts(ctx context.Context, f PartFilter) ([]domain.SparePart, error)
	QueryInventory(ctx context.Context, f InventoryFilter) ([]domain.InventoryRecord, error)
	QueryUsageHistory(ctx context.Context, f UsageFilter) ([]domain.UsageRecord, error)

	// FirstActiveCenterID returns an active center id for forecast
	// persistence, or "" when none exists (callers soft-skip the save).
	FirstActiveCenterID(ctx context.Context) (string, error)
	SaveForecast(ctx context.Context, rec *ForecastRecord) error
	SavePartProposal(ctx context.Context, p *PartProposal) error

	Close() error
}
