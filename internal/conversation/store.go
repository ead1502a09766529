// Package conversation keeps per-conversation message logs in process
// memory. History is lost on restart; the log only feeds a short context
// hint for the next turn, never a full replay.
package conversation

import (
	"sync"
	"time"

	"github.com/tuht/evsc-assistant/internal/domain"
)

// contextHintLen bounds the context hint taken from the previous user
// message.
const contextHintLen = 50

// Store holds conversation logs keyed by conversation id. Appends within
// one conversation are serialized; different conversations never block
// each other.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*log
}

type log struct {
	mu       sync.Mutex
	messages []domain.Message
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*log),
	}
}

func (s *Store) get(conversationID string) *log {
	s.mu.RLock()
	l, ok := s.conversations[conversationID]
	s.mu.RUnlock()
	if ok {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.conversations[conversationID]; ok {
		return l
	}
	l = &log{}
	s.conversations[conversationID] = l
	return l
}

// Append adds a message to a conversation, creating it on first use.
func (s *Store) Append(conversationID string, role domain.Role, content string, functionCalls []string) {
	l := s.get(conversationID)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, domain.Message{
		Role:          role,
		Content:       content,
		Timestamp:     time.Now(),
		FunctionCalls: functionCalls,
	})
}

// History returns a copy of the conversation's messages, oldest first.
func (s *Store) History(conversationID string) []domain.Message {
	s.mu.RLock()
	l, ok := s.conversations[conversationID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// ContextHint returns a short hint derived from the most recent user
// message, or "" for a fresh conversation. Kept minimal on purpose to
// bound prompt size.
func (s *Store) ContextHint(conversationID string) string {
	messages := s.History(conversationID)
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			content := []rune(messages[i].Content)
			if len(content) > contextHintLen {
				content = content[:contextHintLen]
			}
			return "Last: " + string(content)
		}
	}
	return ""
}

// Clear removes every conversation. Explicit lifecycle operation; the
// store is never reset implicitly.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = make(map[string]*log)
}
