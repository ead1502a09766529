package policy

import (
	"context"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(context.Background(), DefaultPolicy)
	if err != nil {
		t.Fatalf("prepare policy: %v", err)
	}
	return eng
}

func TestEvaluateDefaultPolicy(t *testing.T) {
	eng := newTestEngine(t)

	cases := []struct {
		name  string
		input Input
		want  string
	}{
		{
			name:  "known tool allowed",
			input: Input{ToolName: "search_spare_parts", Args: map[string]interface{}{"name": "má phanh"}},
			want:  DecisionAllow,
		},
		{
			name:  "unknown tool blocked",
			input: Input{ToolName: "delete_all_inventory"},
			want:  DecisionBlock,
		},
		{
			name:  "usage history within window",
			input: Input{ToolName: "get_usage_history", Args: map[string]interface{}{"months": 24}},
			want:  DecisionAllow,
		},
		{
			name:  "usage history beyond window blocked",
			input: Input{ToolName: "get_usage_history", Args: map[string]interface{}{"months": 36}},
			want:  DecisionBlock,
		},
		{
			name:  "forecast within bound",
			input: Input{ToolName: "forecast_demand", Args: map[string]interface{}{"months": 12}},
			want:  DecisionAllow,
		},
		{
			name:  "forecast beyond bound blocked",
			input: Input{ToolName: "forecast_demand", Args: map[string]interface{}{"months": 13}},
			want:  DecisionBlock,
		},
		{
			name:  "tool without args allowed",
			input: Input{ToolName: "get_inventory"},
			want:  DecisionAllow,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision, reason, err := eng.Evaluate(context.Background(), tc.input)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if decision != tc.want {
				t.Errorf("decision = %q (reason %q), want %q", decision, reason, tc.want)
			}
			if decision == DecisionBlock && reason == "" {
				t.Error("blocked decision should carry a reason")
			}
		})
	}
}

func TestNewEngineRejectsBadPolicy(t *testing.T) {
	if _, err := NewEngine(context.Background(), "package tool_policy\n\nresult := {"); err == nil {
		t.Fatal("expected compile error")
	}
}
