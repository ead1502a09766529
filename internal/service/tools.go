package service

import (
	"github.com/tuht/evsc-assistant/internal/adapter/genai"
)

const systemPrompt = `Bạn là trợ lý AI cho trung tâm dịch vụ xe điện, chuyên về quản lý phụ tùng.
Nhiệm vụ của bạn: tra cứu phụ tùng, kiểm tra tồn kho, xem lịch sử sử dụng, dự báo nhu cầu và tiếp nhận đề xuất phụ tùng mới.
Luôn trả lời bằng tiếng Việt, ngắn gọn và chính xác.
Chỉ gọi tối đa MỘT công cụ cho mỗi câu hỏi. Nếu không cần dữ liệu, trả lời trực tiếp.
Khi trình bày số liệu, dùng đơn vị VND cho giá và ghi rõ mã phụ tùng.`

// toolDeclarations lists the functions exposed to the model. Names here
// must match the known_tools set in the policy.
var toolDeclarations = []genai.Tool{
	{
		Type: "function",
		Function: genai.ToolFunction{
			Name:        "search_spare_parts",
			Description: "Tìm kiếm phụ tùng xe điện theo tên hoặc nhà sản xuất",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Tên phụ tùng cần tìm (có thể là một phần tên)",
					},
					"manufacture": map[string]interface{}{
						"type":        "string",
						"description": "Nhà sản xuất",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Số kết quả tối đa (mặc định 10)",
					},
				},
			},
		},
	},
	{
		Type: "function",
		Function: genai.ToolFunction{
			Name:        "get_inventory",
			Description: "Xem tồn kho phụ tùng tại các trung tâm dịch vụ",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"center_id": map[string]interface{}{
						"type":        "string",
						"description": "Mã trung tâm dịch vụ",
					},
					"spare_part_id": map[string]interface{}{
						"type":        "string",
						"description": "Mã phụ tùng",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Số kết quả tối đa (mặc định 20)",
					},
				},
			},
		},
	},
	{
		Type: "function",
		Function: genai.ToolFunction{
			Name:        "get_usage_history",
			Description: "Xem lịch sử sử dụng phụ tùng trong những tháng gần đây",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"spare_part_id": map[string]interface{}{
						"type":        "string",
						"description": "Mã phụ tùng",
					},
					"center_id": map[string]interface{}{
						"type":        "string",
						"description": "Mã trung tâm dịch vụ",
					},
					"months": map[string]interface{}{
						"type":        "integer",
						"description": "Số tháng cần xem, tối đa 24 (mặc định 6)",
					},
					"limit": map[string]interface{}{
						"type":        "integer",
						"description": "Số bản ghi tối đa (mặc định 50)",
					},
				},
			},
		},
	},
	{
		Type: "function",
		Function: genai.ToolFunction{
			Name:        "forecast_demand",
			Description: "Dự báo nhu cầu phụ tùng trong những tháng tới dựa trên dữ liệu lịch sử",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"spare_part_id": map[string]interface{}{
						"type":        "string",
						"description": "Mã phụ tùng cần dự báo (bỏ trống để dự báo toàn bộ)",
					},
					"center_id": map[string]interface{}{
						"type":        "string",
						"description": "Mã trung tâm dịch vụ",
					},
					"months": map[string]interface{}{
						"type":        "integer",
						"description": "Số tháng dự báo, tối đa 12 (mặc định 6)",
					},
				},
			},
		},
	},
	{
		Type: "function",
		Function: genai.ToolFunction{
			Name:        "propose_new_part",
			Description: "Ghi nhận đề xuất thêm phụ tùng mới vào danh mục",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{
						"type":        "string",
						"description": "Tên phụ tùng đề xuất",
					},
					"manufacture": map[string]interface{}{
						"type":        "string",
						"description": "Nhà sản xuất",
					},
					"unit_price": map[string]interface{}{
						"type":        "number",
						"description": "Giá dự kiến (VND)",
					},
					"reason": map[string]interface{}{
						"type":        "string",
						"description": "Lý do đề xuất",
					},
				},
				"required": []string{"name"},
			},
		},
	},
}
