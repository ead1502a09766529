package genai

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockClient is a scriptable implementation of Client for tests and for
// running the service without a model backend. Queued responses are
// returned in order; once the queue drains it falls back to a canned
// conversational reply.
type MockClient struct {
	mu        sync.Mutex
	responses []*ChatCompletionResponse
	errs      []error
	Requests  []*ChatCompletionRequest
}

// NewMockClient creates a new mock client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements Client interface.
var _ Client = (*MockClient)(nil)

// Enqueue queues a response to return for an upcoming call.
func (m *MockClient) Enqueue(resp *ChatCompletionResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
	m.errs = append(m.errs, nil)
}

// EnqueueError queues an error to return for an upcoming call.
func (m *MockClient) EnqueueError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, nil)
	m.errs = append(m.errs, err)
}

// CreateChatCompletion returns the next queued response, or a canned reply.
func (m *MockClient) CreateChatCompletion(_ context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)

	if len(m.responses) > 0 {
		resp, err := m.responses[0], m.errs[0]
		m.responses = m.responses[1:]
		m.errs = m.errs[1:]
		return resp, err
	}

	return TextResponse(req.Model, "Xin chào! Tôi là trợ lý phụ tùng xe điện."), nil
}

// TextResponse builds a plain-text completion response.
func TextResponse(model, content string) *ChatCompletionResponse {
	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []Choice{
			{
				Index:        0,
				Message:      &ChatMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
	}
}

// ToolCallResponse builds a completion response carrying tool calls.
func ToolCallResponse(model string, calls ...ToolCall) *ChatCompletionResponse {
	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []Choice{
			{
				Index:        0,
				Message:      &ChatMessage{Role: "assistant", ToolCalls: calls},
				FinishReason: "tool_calls",
			},
		},
	}
}

// BlockedResponse builds a content-filtered completion response.
func BlockedResponse(model string) *ChatCompletionResponse {
	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []Choice{
			{
				Index:        0,
				Message:      &ChatMessage{Role: "assistant", Content: ""},
				FinishReason: "content_filter",
			},
		},
	}
}
