package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/tuht/evsc-assistant/internal/adapter/genai"
	"github.com/tuht/evsc-assistant/internal/domain"
	"github.com/tuht/evsc-assistant/internal/extract"
	"github.com/tuht/evsc-assistant/internal/policy"
)

// maxToolCalls caps tool execution per user turn. The model may request
// several calls; only the first is honored.
const maxToolCalls = 1

const apologyMessage = "Xin lỗi, tôi không thể xử lý yêu cầu này lúc này. Vui lòng thử lại sau."

// Chat handles one user turn: scheduling requests go to the dispatch
// workflow, everything else through the model with gated tool access.
func (s *Service) Chat(ctx context.Context, req *domain.ChatRequest) *domain.ChatResponse {
	if strings.TrimSpace(req.Message) == "" {
		return &domain.ChatResponse{
			Response:       "Vui lòng nhập nội dung tin nhắn.",
			Success:        false,
			Error:          "message is required",
			FunctionCalls:  []string{},
			ConversationID: req.ConversationID,
			UserID:         req.UserID,
			Timestamp:      s.now(),
		}
	}
	if req.ConversationID == "" {
		req.ConversationID = "conv_" + uuid.New().String()[:8]
	}

	var resp *domain.ChatResponse
	if extract.IsScheduleRequest(req.Message) {
		resp = s.handleSchedule(ctx, req)
	} else {
		resp = s.handleChat(ctx, req)
	}

	resp.ConversationID = req.ConversationID
	resp.UserID = req.UserID
	resp.Timestamp = s.now()
	return resp
}

func (s *Service) handleChat(ctx context.Context, req *domain.ChatRequest) *domain.ChatResponse {
	// The hint must reflect the previous turn, so read it before
	// recording this one.
	hint := s.conversations.ContextHint(req.ConversationID)
	s.conversations.Append(req.ConversationID, domain.RoleUser, req.Message, nil)

	system := systemPrompt
	if hint != "" {
		system += "\n\nNgữ cảnh hội thoại: " + hint
	}
	messages := []genai.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: req.Message},
	}

	resp, err := s.genaiClient.CreateChatCompletion(ctx, &genai.ChatCompletionRequest{
		Model:    s.config.GenAIModel,
		Messages: messages,
		Tools:    toolDeclarations,
	})
	if err != nil {
		log.Printf("WARN: chat completion failed: %v", err)
		return s.failure(req.ConversationID, apologyMessage, err.Error())
	}
	if genai.Blocked(resp) || (genai.Text(resp) == "" && len(genai.ToolCalls(resp)) == 0) {
		return s.retryWithoutTools(ctx, req.ConversationID, messages)
	}

	calls := genai.ToolCalls(resp)
	if len(calls) == 0 {
		return s.textReply(req.ConversationID, genai.Text(resp), nil, nil)
	}
	if len(calls) > maxToolCalls {
		log.Printf("WARN: model requested %d tool calls, executing first only", len(calls))
		calls = calls[:maxToolCalls]
	}
	return s.runToolCall(ctx, req, messages, calls[0])
}

// runToolCall gates one tool call through the policy, executes it, and
// produces the final answer.
func (s *Service) runToolCall(ctx context.Context, req *domain.ChatRequest, messages []genai.ChatMessage, call genai.ToolCall) *domain.ChatResponse {
	name := call.Function.Name
	args := map[string]interface{}{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			log.Printf("WARN: tool %s arguments not valid JSON: %v", name, err)
			args = map[string]interface{}{}
		}
	}

	decision, reason, err := s.policyEngine.Evaluate(ctx, policy.Input{
		ToolName: name,
		Args:     args,
		UserID:   req.UserID,
	})
	if err != nil {
		log.Printf("WARN: policy evaluation failed for %s: %v", name, err)
		return s.failure(req.ConversationID, apologyMessage, err.Error())
	}
	var (
		result        interface{}
		data          map[string]interface{}
		functionCalls []string
	)
	if decision == policy.DecisionBlock {
		// The rejection becomes the tool result; the model turns it into
		// a polite refusal. The tool itself never runs.
		log.Printf("WARN: tool %s blocked by policy: %s", name, reason)
		result = map[string]interface{}{"error": fmt.Sprintf("blocked by policy: %s", reason)}
		data = map[string]interface{}{
			"blocked_tool": name,
			"block_reason": reason,
		}
	} else {
		var err error
		result, data, err = s.executeTool(ctx, req, name, args)
		if err != nil {
			log.Printf("WARN: tool %s failed: %v", name, err)
			result = map[string]interface{}{"error": err.Error()}
		}
		functionCalls = []string{name}

		// The forecast tool answers through a fixed template: its payload
		// is too large for a useful second round trip.
		if name == "forecast_demand" {
			if fr, ok := data["forecast"]; ok {
				return s.textReply(req.ConversationID, formatForecastReply(fr), functionCalls, data)
			}
			return s.failure(req.ConversationID, apologyMessage, fmt.Sprintf("%v", result))
		}
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		resultJSON = []byte(`{"error":"failed to serialize tool result"}`)
	}
	messages = append(messages,
		genai.ChatMessage{Role: "assistant", ToolCalls: []genai.ToolCall{call}},
		genai.ChatMessage{Role: "tool", Content: string(resultJSON), ToolCallID: call.ID, Name: name},
	)

	resp, err := s.genaiClient.CreateChatCompletion(ctx, &genai.ChatCompletionRequest{
		Model:    s.config.GenAIModel,
		Messages: messages,
	})
	if err != nil {
		log.Printf("WARN: follow-up completion failed: %v", err)
		return s.failure(req.ConversationID, apologyMessage, err.Error())
	}
	text := genai.Text(resp)
	if genai.Blocked(resp) || text == "" {
		text = "Tôi đã tra cứu dữ liệu nhưng không thể tóm tắt kết quả. Bạn có thể xem chi tiết trong phần dữ liệu đính kèm."
	}
	return s.textReply(req.ConversationID, text, functionCalls, data)
}

// retryWithoutTools is the fallback when the tool-bearing request was
// filtered: the same turn is retried as plain text.
func (s *Service) retryWithoutTools(ctx context.Context, conversationID string, messages []genai.ChatMessage) *domain.ChatResponse {
	resp, err := s.genaiClient.CreateChatCompletion(ctx, &genai.ChatCompletionRequest{
		Model:    s.config.GenAIModel,
		Messages: messages,
	})
	if err != nil {
		return s.failure(conversationID, apologyMessage, err.Error())
	}
	if genai.Blocked(resp) || genai.Text(resp) == "" {
		return s.failure(conversationID, apologyMessage, "response blocked by content filter")
	}
	return s.textReply(conversationID, genai.Text(resp), nil, nil)
}

func (s *Service) textReply(conversationID, text string, functionCalls []string, data map[string]interface{}) *domain.ChatResponse {
	s.conversations.Append(conversationID, domain.RoleAssistant, text, functionCalls)
	if functionCalls == nil {
		functionCalls = []string{}
	}
	return &domain.ChatResponse{
		Response:          text,
		Success:           true,
		FunctionCalls:     functionCalls,
		FunctionCallCount: len(functionCalls),
		Data:              data,
	}
}

func (s *Service) failure(conversationID, text, errMsg string) *domain.ChatResponse {
	s.conversations.Append(conversationID, domain.RoleError, text, nil)
	return &domain.ChatResponse{
		Response:      text,
		Success:       false,
		Error:         errMsg,
		FunctionCalls: []string{},
	}
}

// History returns the recorded messages of a conversation.
func (s *Service) History(conversationID string) []domain.Message {
	return s.conversations.History(conversationID)
}

func argString(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func argInt(args map[string]interface{}, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}

func argFloat(args map[string]interface{}, key string) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return 0
}
