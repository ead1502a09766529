package forecast

import (
	"encoding/json"
	"fmt"

	"github.com/tuht/evsc-assistant/internal/domain"
)

// Row-sample sizes embedded into the generative prompts. Bounds the
// payload; the model only needs representative rows, the deterministic
// tier sees everything.
const (
	primarySampleSize = 5
	simpleSampleSize  = 3
)

// promptData is the sampled dataset serialized into a prompt.
type promptData struct {
	Parts     string
	Inventory string
	Usage     string
}

func samplePromptData(parts []domain.SparePart, inventory []domain.InventoryRecord, usage []domain.UsageRecord, n int) promptData {
	return promptData{
		Parts:     marshalSample(parts, n),
		Inventory: marshalSample(inventory, n),
		Usage:     marshalSample(usage, n),
	}
}

func marshalSample[T any](rows []T, n int) string {
	if len(rows) > n {
		rows = rows[:n]
	}
	if rows == nil {
		rows = []T{}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// buildPrimaryPrompt is the full analysis prompt. The schema instructions
// mirror the ForecastItem fields exactly; the response must be bare JSON.
func buildPrimaryPrompt(data promptData, months int, analysisDate string) string {
	return fmt.Sprintf(`Bạn là chuyên gia AI dự báo phụ tùng thông minh cho trung tâm xe điện.
Phân tích dữ liệu sau và CHỈ TRẢ VỀ phụ tùng cần bổ sung hoặc sắp cần bổ sung:

PHỤ TÙNG: %s
TỒN KHO: %s
LỊCH SỬ: %s

YÊU CẦU PHÂN TÍCH:
1. Phân tích xu hướng sử dụng theo tháng từ lịch sử
2. Dự báo nhu cầu dựa trên pattern thực tế và giá trị phụ tùng
3. Xác định độ ưu tiên bổ sung (tồn kho thấp hoặc phụ tùng đắt tiền = ưu tiên cao)
4. Tính toán chi phí dự kiến

Trả về CHÍNH XÁC định dạng JSON sau (không thêm text khác, mọi giá trị số là number):
{
  "spare_parts_forecasts": [
    {
      "spare_part_id": "spare_part_id từ dữ liệu",
      "part_name": "name từ dữ liệu",
      "current_stock": 0,
      "minimum_stock_level": 0,
      "total_forecast_demand": 0,
      "suggested_order_quantity": 0,
      "monthly_forecasts": [{"month": 1, "predicted_demand": 0, "confidence": 0.8}],
      "replenishment_needed": true,
      "estimated_cost": 0,
      "urgency_level": "high/medium/low"
    }
  ],
  "summary": {
    "message": "thông điệp tóm tắt bằng tiếng Việt cho dự báo %d tháng (ngày phân tích %s)",
    "recommendations": ["danh sách khuyến nghị"]
  }
}`, data.Parts, data.Inventory, data.Usage, months, analysisDate)
}

// buildSimplePrompt is the reduced fallback prompt: smaller sample, same
// target schema.
func buildSimplePrompt(data promptData, months int) string {
	return fmt.Sprintf(`Phân tích dữ liệu phụ tùng xe điện và CHỈ TRẢ VỀ phụ tùng cần bổ sung dưới dạng JSON:

PHỤ TÙNG: %s
TỒN KHO: %s
LỊCH SỬ: %s

Trả về JSON chính xác (mọi giá trị số là number):
{
  "spare_parts_forecasts": [
    {
      "spare_part_id": "...",
      "part_name": "...",
      "current_stock": 0,
      "minimum_stock_level": 0,
      "total_forecast_demand": 0,
      "suggested_order_quantity": 0,
      "replenishment_needed": true,
      "estimated_cost": 0,
      "urgency_level": "high/medium/low",
      "monthly_forecasts": [{"month": 1, "predicted_demand": 5, "confidence": 0.8}]
    }
  ],
  "summary": {"message": "tóm tắt %d tháng", "recommendations": ["gợi ý"]}
}`, data.Parts, data.Inventory, data.Usage, months)
}

// buildRecommendationPrompt asks for a short recommendation list. This is
// a non-critical enhancement; callers fall back to static text on any
// failure.
func buildRecommendationPrompt(partCount, usageCount int, totalCost float64) string {
	return fmt.Sprintf(`Dựa trên phân tích %d phụ tùng xe điện với tổng chi phí %.0f VND và %d bản ghi lịch sử sử dụng,
đưa ra 5 khuyến nghị ngắn gọn cho quản lý tồn kho. CHỈ TRẢ VỀ một mảng JSON:
["khuyến nghị 1", "khuyến nghị 2", "khuyến nghị 3", "khuyến nghị 4", "khuyến nghị 5"]`,
		partCount, totalCost, usageCount)
}
