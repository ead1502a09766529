package conversation

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/tuht/evsc-assistant/internal/domain"
)

func TestAppendAndHistory(t *testing.T) {
	s := NewStore()

	s.Append("conv1", domain.RoleUser, "tồn kho pin?", nil)
	s.Append("conv1", domain.RoleAssistant, "Còn 4 bộ pin.", []string{"get_inventory"})
	s.Append("conv2", domain.RoleUser, "xin chào", nil)

	history := s.History("conv1")
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Role != domain.RoleUser || history[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected roles: %+v", history)
	}
	if len(history[1].FunctionCalls) != 1 || history[1].FunctionCalls[0] != "get_inventory" {
		t.Fatalf("unexpected function calls: %+v", history[1].FunctionCalls)
	}

	if got := s.History("missing"); got != nil {
		t.Fatalf("expected nil history for unknown id, got %+v", got)
	}
}

func TestContextHint(t *testing.T) {
	s := NewStore()

	if hint := s.ContextHint("conv1"); hint != "" {
		t.Fatalf("expected empty hint for fresh conversation, got %q", hint)
	}

	s.Append("conv1", domain.RoleUser, "câu hỏi đầu tiên", nil)
	s.Append("conv1", domain.RoleAssistant, "trả lời", nil)

	if hint := s.ContextHint("conv1"); hint != "Last: câu hỏi đầu tiên" {
		t.Fatalf("unexpected hint: %q", hint)
	}

	long := strings.Repeat("dự báo ", 30)
	s.Append("conv1", domain.RoleUser, long, nil)
	hint := s.ContextHint("conv1")
	if got := len([]rune(strings.TrimPrefix(hint, "Last: "))); got != 50 {
		t.Fatalf("expected 50-rune hint, got %d", got)
	}
}

func TestConcurrentAppends(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("conv%d", n%3)
			for j := 0; j < 50; j++ {
				s.Append(id, domain.RoleUser, "msg", nil)
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, id := range []string{"conv0", "conv1", "conv2"} {
		total += len(s.History(id))
	}
	if total != 500 {
		t.Fatalf("expected 500 messages total, got %d", total)
	}
}

func TestClear(t *testing.T) {
	s := NewStore()
	s.Append("conv1", domain.RoleUser, "hi", nil)
	s.Clear()
	if got := s.History("conv1"); got != nil {
		t.Fatalf("expected empty store after Clear, got %+v", got)
	}
}
