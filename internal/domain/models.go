// Package domain defines the core domain models for the assistant.
package domain

import (
	"time"
)

// Role identifies who produced a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

// Message is a single entry in a conversation. Immutable once appended.
type Message struct {
	Role          Role      `json:"role"`
	Content       string    `json:"content"`
	Timestamp     time.Time `json:"timestamp"`
	FunctionCalls []string  `json:"function_calls,omitempty"`
}

// Shift is a technician work shift.
type Shift string

const (
	ShiftMorning Shift = "MORNING"
	ShiftEvening Shift = "EVENING"
	ShiftNight   Shift = "NIGHT"
)

// SparePart is a row from the spare-parts table. Read-only here.
type SparePart struct {
	SparePartID string  `json:"spare_part_id"`
	Name        string  `json:"name"`
	UnitPrice   float64 `json:"unit_price"`
	Manufacture string  `json:"manufacture"`
	IsActive    bool    `json:"is_active"`
}

// InventoryRecord is a stock row, joined to a part where possible.
type InventoryRecord struct {
	InventoryID       string `json:"inventory_id"`
	CenterID          string `json:"center_id"`
	SparePartID       string `json:"spare_part_id,omitempty"`
	PartName          string `json:"part_name,omitempty"`
	Quantity          int    `json:"quantity"`
	MinimumStockLevel int    `json:"minimum_stock_level"`
	IsActive          bool   `json:"is_active"`
}

// UsageRecord is one historical consumption row. Only used in aggregate.
type UsageRecord struct {
	UsageID      string    `json:"usage_id"`
	SparePartID  string    `json:"spare_part_id"`
	CenterID     string    `json:"center_id"`
	QuantityUsed int       `json:"quantity_used"`
	UsedDate     time.Time `json:"used_date"`
	IsActive     bool      `json:"is_active"`
}

// Center is an entry from the service-center directory.
type Center struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MonthlyForecast is a single month of predicted demand.
type MonthlyForecast struct {
	Month           int     `json:"month"`
	PredictedDemand int     `json:"predicted_demand"`
	Confidence      float64 `json:"confidence"`
}

// ForecastItem is the per-part output of the forecast engine.
//
// Invariants (enforced by Normalize):
//
//	SuggestedOrderQuantity = max(0, TotalForecastDemand + MinimumStockLevel - CurrentStock)
//	ReplenishmentNeeded    = CurrentStock < TotalForecastDemand + MinimumStockLevel
type ForecastItem struct {
	SparePartID            string            `json:"spare_part_id"`
	PartName               string            `json:"part_name"`
	Manufacture            string            `json:"manufacture,omitempty"`
	UnitPrice              float64           `json:"unit_price,omitempty"`
	CurrentStock           int               `json:"current_stock"`
	MinimumStockLevel      int               `json:"minimum_stock_level"`
	TotalForecastDemand    int               `json:"total_forecast_demand"`
	SuggestedOrderQuantity int               `json:"suggested_order_quantity"`
	ReplenishmentNeeded    bool              `json:"replenishment_needed"`
	EstimatedCost          float64           `json:"estimated_cost"`
	UrgencyLevel           string            `json:"urgency_level"`
	MonthlyForecasts       []MonthlyForecast `json:"monthly_forecasts"`
	Reasoning              string            `json:"reasoning,omitempty"`
}

// Urgency levels for a ForecastItem.
const (
	UrgencyHigh   = "high"
	UrgencyMedium = "medium"
	UrgencyLow    = "low"
)

// Normalize recomputes the derived fields so the ForecastItem invariants
// hold no matter which forecast tier produced the raw numbers.
func (f *ForecastItem) Normalize() {
	suggested := f.TotalForecastDemand + f.MinimumStockLevel - f.CurrentStock
	if suggested < 0 {
		suggested = 0
	}
	f.SuggestedOrderQuantity = suggested
	f.ReplenishmentNeeded = f.CurrentStock < f.TotalForecastDemand+f.MinimumStockLevel
	if f.UnitPrice > 0 {
		f.EstimatedCost = float64(f.SuggestedOrderQuantity) * f.UnitPrice
	}
}

// ScheduleAttempt is the outcome of one auto-assign call.
type ScheduleAttempt struct {
	Date    time.Time `json:"date"`
	Shift   Shift     `json:"shift"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
}

// MaxFailureDetails caps the per-failure detail list in a batch result.
const MaxFailureDetails = 5

// ScheduleBatchResult aggregates a batch of auto-assign calls.
type ScheduleBatchResult struct {
	Successful     int               `json:"successful"`
	Failed         int               `json:"failed"`
	Attempts       []ScheduleAttempt `json:"attempts"`
	FailureDetails []string          `json:"failure_details,omitempty"`
}

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	Message        string            `json:"message"`
	ConversationID string            `json:"conversation_id,omitempty"`
	UserID         string            `json:"user_id,omitempty"`
	Context        map[string]string `json:"context,omitempty"`
}

// ChatResponse is the uniform response envelope for both workflows.
type ChatResponse struct {
	Response          string                 `json:"response"`
	Success           bool                   `json:"success"`
	Error             string                 `json:"error,omitempty"`
	FunctionCalls     []string               `json:"function_calls"`
	FunctionCallCount int                    `json:"function_call_count"`
	Data              map[string]interface{} `json:"data,omitempty"`
	ConversationID    string                 `json:"conversation_id"`
	UserID            string                 `json:"user_id,omitempty"`
	Timestamp         time.Time              `json:"timestamp"`
}
