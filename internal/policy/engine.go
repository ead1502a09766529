// Package policy gates tool execution through an OPA rego policy. Every
// tool call requested by the model is evaluated before it runs.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decision outcomes.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine compiles the given policy content and prepares it for
// evaluation.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_policy.result"),
		rego.Module("tool_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Input describes one requested tool call.
type Input struct {
	ToolName string                 `json:"tool_name"`
	Args     map[string]interface{} `json:"args"`
	UserID   string                 `json:"user_id,omitempty"`
}

// Evaluate checks one tool call against the policy. It returns the
// decision and, for blocks, the policy's reason.
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy defines a default, so an empty result set means the
		// query itself is wrong.
		return "", "", fmt.Errorf("policy returned no result")
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return "", "", fmt.Errorf("policy returned unexpected type %T", results[0].Expressions[0].Value)
	}

	decision, _ := obj["decision"].(string)
	reason, _ := obj["reason"].(string)
	if decision == "" {
		return "", "", fmt.Errorf("policy result missing decision")
	}
	return decision, reason, nil
}

// DefaultPolicy allows the five assistant tools within their argument
// bounds and blocks everything else.
const DefaultPolicy = `
package tool_policy

import rego.v1

known_tools := {
	"search_spare_parts",
	"get_inventory",
	"get_usage_history",
	"forecast_demand",
	"propose_new_part",
}

default result := {"decision": "allow", "reason": ""}

result := {"decision": "block", "reason": "unknown tool"} if {
	not input.tool_name in known_tools
}

result := {"decision": "block", "reason": "usage history limited to 24 months"} if {
	input.tool_name == "get_usage_history"
	input.args.months > 24
}

result := {"decision": "block", "reason": "forecast limited to 12 months"} if {
	input.tool_name == "forecast_demand"
	input.args.months > 12
}
`
