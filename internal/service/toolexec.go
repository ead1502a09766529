package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tuht/evsc-assistant/internal/domain"
	"github.com/tuht/evsc-assistant/internal/forecast"
	"github.com/tuht/evsc-assistant/internal/store"
)

// executeTool runs one policy-approved tool call. The first return value
// is what goes back to the model; data carries the structured payload for
// the response envelope.
func (s *Service) executeTool(ctx context.Context, req *domain.ChatRequest, name string, args map[string]interface{}) (interface{}, map[string]interface{}, error) {
	switch name {
	case "search_spare_parts":
		parts, err := s.store.QueryParts(ctx, store.PartFilter{
			NameLike: argString(args, "name"),
			Limit:    argInt(args, "limit", 10),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("search_spare_parts: %w", err)
		}
		if m := argString(args, "manufacture"); m != "" {
			parts = filterByManufacture(parts, m)
		}
		return map[string]interface{}{"count": len(parts), "spare_parts": parts},
			map[string]interface{}{"spare_parts": parts}, nil

	case "get_inventory":
		records, err := s.store.QueryInventory(ctx, store.InventoryFilter{
			CenterID: argString(args, "center_id"),
			Limit:    argInt(args, "limit", 20),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("get_inventory: %w", err)
		}
		if id := argString(args, "spare_part_id"); id != "" {
			records = filterByPartID(records, id)
		}
		return map[string]interface{}{"count": len(records), "inventory": records},
			map[string]interface{}{"inventory": records}, nil

	case "get_usage_history":
		records, err := s.store.QueryUsageHistory(ctx, store.UsageFilter{
			SparePartID: argString(args, "spare_part_id"),
			CenterID:    argString(args, "center_id"),
			MonthsBack:  argInt(args, "months", 6),
			Limit:       argInt(args, "limit", 50),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("get_usage_history: %w", err)
		}
		total := 0
		for _, r := range records {
			total += r.QuantityUsed
		}
		return map[string]interface{}{"count": len(records), "total_quantity_used": total, "usage_history": records},
			map[string]interface{}{"usage_history": records}, nil

	case "forecast_demand":
		result := s.forecaster.Generate(ctx, forecast.Request{
			SparePartID: argString(args, "spare_part_id"),
			CenterID:    argString(args, "center_id"),
			Months:      argInt(args, "months", 6),
		})
		if !result.Success {
			return nil, nil, fmt.Errorf("forecast_demand: %s", result.Error)
		}
		return result, map[string]interface{}{"forecast": result}, nil

	case "propose_new_part":
		partName := argString(args, "name")
		if partName == "" {
			return nil, nil, fmt.Errorf("propose_new_part: name is required")
		}
		proposal := &store.PartProposal{
			ProposalID:  "pp_" + uuid.New().String()[:8],
			Name:        partName,
			Manufacture: argString(args, "manufacture"),
			UnitPrice:   argFloat(args, "unit_price"),
			Reason:      argString(args, "reason"),
			ProposedBy:  req.UserID,
		}
		if err := s.store.SavePartProposal(ctx, proposal); err != nil {
			return nil, nil, fmt.Errorf("propose_new_part: %w", err)
		}
		return map[string]interface{}{"proposal_id": proposal.ProposalID, "status": "recorded"},
			map[string]interface{}{"proposal": proposal}, nil
	}

	return nil, nil, fmt.Errorf("unknown tool %q", name)
}

func filterByManufacture(parts []domain.SparePart, manufacture string) []domain.SparePart {
	needle := strings.ToLower(manufacture)
	out := parts[:0]
	for _, p := range parts {
		if strings.Contains(strings.ToLower(p.Manufacture), needle) {
			out = append(out, p)
		}
	}
	return out
}

func filterByPartID(records []domain.InventoryRecord, sparePartID string) []domain.InventoryRecord {
	out := records[:0]
	for _, r := range records {
		if r.SparePartID == sparePartID {
			out = append(out, r)
		}
	}
	return out
}

// formatForecastReply renders a forecast result as the assistant's answer.
func formatForecastReply(payload interface{}) string {
	result, ok := payload.(*forecast.Result)
	if !ok {
		return "Đã hoàn tất dự báo. Vui lòng xem chi tiết trong phần dữ liệu đính kèm."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Dự báo nhu cầu phụ tùng %d tháng tới (ngày phân tích %s):\n\n",
		result.ForecastPeriodMonths, result.AnalysisDate)

	if len(result.Forecasts) == 0 {
		b.WriteString(result.Summary.Message)
		return b.String()
	}

	shown := result.Forecasts
	if len(shown) > 5 {
		shown = shown[:5]
	}
	for _, f := range shown {
		marker := "•"
		if f.UrgencyLevel == domain.UrgencyHigh {
			marker = "⚠️"
		}
		fmt.Fprintf(&b, "%s %s (%s): nhu cầu %d, tồn kho %d, đề nghị đặt %d\n",
			marker, f.PartName, f.SparePartID, f.TotalForecastDemand, f.CurrentStock, f.SuggestedOrderQuantity)
	}
	if len(result.Forecasts) > len(shown) {
		fmt.Fprintf(&b, "... và %d phụ tùng khác\n", len(result.Forecasts)-len(shown))
	}

	fmt.Fprintf(&b, "\nTổng: %d phụ tùng, %d cần bổ sung, %d ưu tiên cao. Chi phí dự kiến %.0f VND.\n",
		result.Summary.TotalPartsAnalyzed, result.Summary.PartsNeedingReplenishment,
		result.Summary.HighPriorityParts, result.Summary.TotalEstimatedCost)

	if len(result.Summary.Recommendations) > 0 {
		b.WriteString("\nKhuyến nghị:\n")
		for _, rec := range result.Summary.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
