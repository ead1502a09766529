package genai

import "context"

// Client defines the interface for chat-completion operations.
type Client interface {
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// Ensure HTTPClient implements Client interface.
var _ Client = (*HTTPClient)(nil)

// Text returns the assistant text of the first choice, or "".
func Text(resp *ChatCompletionResponse) string {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return ""
	}
	return resp.Choices[0].Message.Content
}

// ToolCalls returns the tool calls of the first choice. The model may emit
// several in one turn; callers enforce their own execution cap.
func ToolCalls(resp *ChatCompletionResponse) []ToolCall {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return nil
	}
	return resp.Choices[0].Message.ToolCalls
}

// Blocked reports whether the response was stopped by the provider's
// content filter. Distinct from merely empty text.
func Blocked(resp *ChatCompletionResponse) bool {
	if resp == nil || len(resp.Choices) == 0 {
		return false
	}
	return resp.Choices[0].FinishReason == "content_filter"
}
