package genai

import (
	"log"
	"os"
	"time"
)

const (
	// EnvAssistantMode is the environment variable name for mode selection.
	EnvAssistantMode = "ASSISTANT_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewClient creates a model client based on the ASSISTANT_MODE environment
// variable. If ASSISTANT_MODE=MOCK, returns a MockClient; otherwise
// returns a real HTTPClient.
func NewClient(baseURL, apiKey string, timeout time.Duration) Client {
	if os.Getenv(EnvAssistantMode) == ModeMock {
		log.Println("ASSISTANT_MODE=MOCK detected, using mock model client")
		return NewMockClient()
	}
	return NewHTTPClient(baseURL, apiKey, timeout)
}
