package forecast

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tuht/evsc-assistant/internal/adapter/genai"
	"github.com/tuht/evsc-assistant/internal/domain"
	"github.com/tuht/evsc-assistant/internal/store"
)

func newTestEngine(t *testing.T, seed bool) (*Engine, *store.SQLiteStore, *genai.MockClient) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if seed {
		ctx := context.Background()
		if err := st.InsertCenter(ctx, domain.Center{ID: "SC001", Name: "Trung tâm Hà Nội"}, true); err != nil {
			t.Fatalf("seed center: %v", err)
		}
		parts := []domain.SparePart{
			{SparePartID: "SP001", Name: "Má phanh", UnitPrice: 250000, Manufacture: "VinFast", IsActive: true},
			{SparePartID: "SP002", Name: "Pin lithium", UnitPrice: 1500000, Manufacture: "CATL", IsActive: true},
			{SparePartID: "SP003", Name: "Lọc gió", UnitPrice: 600000, Manufacture: "Bosch", IsActive: true},
		}
		for _, p := range parts {
			if err := st.InsertPart(ctx, p); err != nil {
				t.Fatalf("seed part: %v", err)
			}
		}
		if err := st.InsertInventory(ctx, domain.InventoryRecord{
			InventoryID: "INV001", CenterID: "SC001", SparePartID: "SP001",
			Quantity: 3, MinimumStockLevel: 10, IsActive: true,
		}); err != nil {
			t.Fatalf("seed inventory: %v", err)
		}
		if err := st.InsertUsage(ctx, domain.UsageRecord{
			UsageID: "U001", SparePartID: "SP001", CenterID: "SC001",
			QuantityUsed: 48, UsedDate: time.Now().AddDate(0, -2, 0), IsActive: true,
		}); err != nil {
			t.Fatalf("seed usage: %v", err)
		}
	}

	mock := genai.NewMockClient()
	eng := NewEngine(st, mock, "test-model")
	return eng, st, mock
}

func checkInvariants(t *testing.T, items []domain.ForecastItem) {
	t.Helper()
	for _, f := range items {
		want := f.TotalForecastDemand + f.MinimumStockLevel - f.CurrentStock
		if want < 0 {
			want = 0
		}
		if f.SuggestedOrderQuantity != want {
			t.Errorf("%s: suggested=%d, want %d", f.SparePartID, f.SuggestedOrderQuantity, want)
		}
		wantRepl := f.CurrentStock < f.TotalForecastDemand+f.MinimumStockLevel
		if f.ReplenishmentNeeded != wantRepl {
			t.Errorf("%s: replenishment=%v, want %v", f.SparePartID, f.ReplenishmentNeeded, wantRepl)
		}
		switch f.UrgencyLevel {
		case domain.UrgencyHigh, domain.UrgencyMedium, domain.UrgencyLow:
		default:
			t.Errorf("%s: bad urgency %q", f.SparePartID, f.UrgencyLevel)
		}
		if len(f.MonthlyForecasts) == 0 {
			t.Errorf("%s: missing monthly forecasts", f.SparePartID)
		}
	}
}

func TestGenerateDeterministicFallback(t *testing.T) {
	// The unqueued mock returns a non-JSON canned reply, so both
	// generative tiers fall through.
	eng, _, mock := newTestEngine(t, true)

	res := eng.Generate(context.Background(), Request{Months: 6})
	if !res.Success {
		t.Fatalf("success=false: %s", res.Error)
	}
	if res.DataSource != SourceDataDriven {
		t.Fatalf("data source = %q, want %q", res.DataSource, SourceDataDriven)
	}
	if res.ForecastPeriodMonths != 6 {
		t.Errorf("period = %d, want 6", res.ForecastPeriodMonths)
	}
	if len(res.Forecasts) == 0 {
		t.Fatal("expected at least one forecast item")
	}
	checkInvariants(t, res.Forecasts)

	// SP001 has history: 48 units / 24 months = 2/month, ×6×1.2 ≈ 14.
	var sp1 *domain.ForecastItem
	for i := range res.Forecasts {
		if res.Forecasts[i].SparePartID == "SP001" {
			sp1 = &res.Forecasts[i]
		}
	}
	if sp1 == nil {
		t.Fatal("SP001 missing from forecasts")
	}
	if sp1.TotalForecastDemand != 14 {
		t.Errorf("SP001 demand = %d, want 14", sp1.TotalForecastDemand)
	}
	if sp1.UrgencyLevel != domain.UrgencyMedium {
		t.Errorf("SP001 urgency = %q, want medium", sp1.UrgencyLevel)
	}

	if res.Summary.TotalPartsAnalyzed != len(res.Forecasts) {
		t.Errorf("summary count mismatch")
	}
	if len(res.Summary.Recommendations) == 0 {
		t.Error("expected recommendations")
	}
	if res.Summary.SavedForecasts != len(res.Forecasts) {
		t.Errorf("saved = %d, want %d", res.Summary.SavedForecasts, len(res.Forecasts))
	}
	// Two tier attempts plus one recommendation call.
	if len(mock.Requests) != 3 {
		t.Errorf("model calls = %d, want 3", len(mock.Requests))
	}
}

func TestGeneratePrimaryTier(t *testing.T) {
	eng, _, mock := newTestEngine(t, true)
	mock.Enqueue(genai.TextResponse("test-model", `{
		"spare_parts_forecasts": [
			{
				"spare_part_id": "SP001",
				"part_name": "Má phanh",
				"current_stock": 3,
				"minimum_stock_level": 10,
				"total_forecast_demand": 20,
				"unit_price": 250000,
				"urgency_level": "high"
			}
		],
		"summary": {
			"message": "Cần bổ sung má phanh gấp.",
			"recommendations": ["Đặt hàng ngay trong tuần"]
		}
	}`))

	res := eng.Generate(context.Background(), Request{Months: 6})
	if res.DataSource != SourceAIAnalysis {
		t.Fatalf("data source = %q, want %q", res.DataSource, SourceAIAnalysis)
	}
	checkInvariants(t, res.Forecasts)

	f := res.Forecasts[0]
	if f.SuggestedOrderQuantity != 27 {
		t.Errorf("suggested = %d, want 27", f.SuggestedOrderQuantity)
	}
	if !f.ReplenishmentNeeded {
		t.Error("expected replenishment needed")
	}
	if f.EstimatedCost != 27*250000 {
		t.Errorf("estimated cost = %f", f.EstimatedCost)
	}
	if res.Summary.Message != "Cần bổ sung má phanh gấp." {
		t.Errorf("summary message = %q", res.Summary.Message)
	}
	if len(res.Summary.Recommendations) != 1 {
		t.Errorf("recommendations = %v", res.Summary.Recommendations)
	}
	// One tier call only; summary came from the payload.
	if len(mock.Requests) != 1 {
		t.Errorf("model calls = %d, want 1", len(mock.Requests))
	}
}

func TestGenerateSimpleTierAfterInvalidPrimary(t *testing.T) {
	eng, _, mock := newTestEngine(t, true)
	mock.Enqueue(genai.TextResponse("test-model", "không phải JSON"))
	mock.Enqueue(genai.TextResponse("test-model", "```json\n"+`{
		"spare_parts_forecasts": [
			{
				"spare_part_id": "SP002",
				"part_name": "Pin lithium",
				"current_stock": 0,
				"minimum_stock_level": 10,
				"total_forecast_demand": 12,
				"urgency_level": "bogus"
			}
		]
	}`+"\n```"))

	res := eng.Generate(context.Background(), Request{Months: 6})
	if res.DataSource != SourceAISimple {
		t.Fatalf("data source = %q, want %q", res.DataSource, SourceAISimple)
	}
	checkInvariants(t, res.Forecasts)
	if res.Forecasts[0].UrgencyLevel != domain.UrgencyMedium {
		t.Errorf("unknown urgency should default to medium, got %q", res.Forecasts[0].UrgencyLevel)
	}
}

func TestGenerateBlockedFallsThrough(t *testing.T) {
	eng, _, mock := newTestEngine(t, true)
	mock.Enqueue(genai.BlockedResponse("test-model"))
	mock.Enqueue(genai.BlockedResponse("test-model"))

	res := eng.Generate(context.Background(), Request{Months: 3})
	if res.DataSource != SourceDataDriven {
		t.Fatalf("data source = %q, want %q", res.DataSource, SourceDataDriven)
	}
}

func TestGenerateNoData(t *testing.T) {
	eng, _, _ := newTestEngine(t, false)

	res := eng.Generate(context.Background(), Request{Months: 6})
	if !res.Success {
		t.Fatal("no-data result should still be successful")
	}
	if res.DataSource != SourceNoData {
		t.Fatalf("data source = %q, want %q", res.DataSource, SourceNoData)
	}
	if len(res.Forecasts) != 0 {
		t.Errorf("expected no forecasts, got %d", len(res.Forecasts))
	}
	if res.Summary.Message == "" {
		t.Error("expected explanatory message")
	}
}

func TestGenerateCoversAllActiveParts(t *testing.T) {
	// The analysis dataset must not be capped like the chat tool queries.
	eng, st, _ := newTestEngine(t, false)
	ctx := context.Background()
	if err := st.InsertCenter(ctx, domain.Center{ID: "SC001", Name: "Trung tâm Hà Nội"}, true); err != nil {
		t.Fatalf("seed center: %v", err)
	}
	const partCount = 25
	for i := 0; i < partCount; i++ {
		if err := st.InsertPart(ctx, domain.SparePart{
			SparePartID: fmt.Sprintf("SP%03d", i),
			Name:        fmt.Sprintf("Phụ tùng %03d", i),
			UnitPrice:   150000,
			IsActive:    true,
		}); err != nil {
			t.Fatalf("seed part: %v", err)
		}
	}

	res := eng.Generate(ctx, Request{Months: 6})
	if !res.Success {
		t.Fatalf("success=false: %s", res.Error)
	}
	if res.DataSource != SourceDataDriven {
		t.Fatalf("data source = %q, want %q", res.DataSource, SourceDataDriven)
	}
	if len(res.Forecasts) != partCount {
		t.Fatalf("forecasts = %d, want %d", len(res.Forecasts), partCount)
	}
	if res.Summary.SavedForecasts != partCount {
		t.Errorf("saved = %d, want %d", res.Summary.SavedForecasts, partCount)
	}
	checkInvariants(t, res.Forecasts)
}

func TestGenerateMonthsClamp(t *testing.T) {
	for _, tc := range []struct{ in, want int }{
		{0, 6}, {-3, 6}, {4, 4}, {12, 12}, {50, 12},
	} {
		eng, _, _ := newTestEngine(t, false)
		res := eng.Generate(context.Background(), Request{Months: tc.in})
		if res.ForecastPeriodMonths != tc.want {
			t.Errorf("months %d: period = %d, want %d", tc.in, res.ForecastPeriodMonths, tc.want)
		}
	}
}

func TestGenerateDeterministicIdempotent(t *testing.T) {
	eng, _, _ := newTestEngine(t, true)

	first := eng.Generate(context.Background(), Request{Months: 6})
	second := eng.Generate(context.Background(), Request{Months: 6})
	if len(first.Forecasts) != len(second.Forecasts) {
		t.Fatalf("item counts differ: %d vs %d", len(first.Forecasts), len(second.Forecasts))
	}
	for i := range first.Forecasts {
		a, b := first.Forecasts[i], second.Forecasts[i]
		if a.SparePartID != b.SparePartID || a.TotalForecastDemand != b.TotalForecastDemand {
			t.Errorf("item %d differs: %+v vs %+v", i, a, b)
		}
	}
}

// captureStore records SaveForecast calls passing through to the real
// store.
type captureStore struct {
	store.Store
	saved []*store.ForecastRecord
}

func (c *captureStore) SaveForecast(ctx context.Context, rec *store.ForecastRecord) error {
	c.saved = append(c.saved, rec)
	return c.Store.SaveForecast(ctx, rec)
}

func TestPersistCarriesItemConfidence(t *testing.T) {
	// SP001 has usage history (confidence 0.8); SP002 is forecast from
	// price-tier defaults (0.6). The saved rows must reflect that split.
	_, st, _ := newTestEngine(t, true)
	capture := &captureStore{Store: st}
	eng := NewEngine(capture, genai.NewMockClient(), "test-model")

	res := eng.Generate(context.Background(), Request{Months: 6})
	if res.DataSource != SourceDataDriven {
		t.Fatalf("data source = %q, want %q", res.DataSource, SourceDataDriven)
	}
	if len(capture.saved) != len(res.Forecasts) {
		t.Fatalf("saved %d rows, want %d", len(capture.saved), len(res.Forecasts))
	}

	byPart := make(map[string]float64)
	for _, rec := range capture.saved {
		byPart[rec.SparePartID] = rec.Confidence
	}
	if got := byPart["SP001"]; got != 0.8 {
		t.Errorf("SP001 confidence = %v, want 0.8", got)
	}
	if got := byPart["SP002"]; got != 0.6 {
		t.Errorf("SP002 confidence = %v, want 0.6", got)
	}
}

func TestPersistSoftSkipWithoutCenter(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()
	if err := st.InsertPart(ctx, domain.SparePart{SparePartID: "SP009", Name: "Gạt mưa", UnitPrice: 90000, IsActive: true}); err != nil {
		t.Fatalf("seed part: %v", err)
	}

	eng := NewEngine(st, genai.NewMockClient(), "test-model")
	res := eng.Generate(ctx, Request{Months: 6})
	if res.Summary.SavedForecasts != 0 {
		t.Errorf("saved = %d, want 0", res.Summary.SavedForecasts)
	}
	if res.Summary.SkippedSaves != len(res.Forecasts) {
		t.Errorf("skipped = %d, want %d", res.Summary.SkippedSaves, len(res.Forecasts))
	}
}
