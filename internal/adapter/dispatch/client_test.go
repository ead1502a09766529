package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/tuht/evsc-assistant/internal/domain"
)

func newCenterServer(t *testing.T, centers []domain.Center) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/centers" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(centers)
	}))
}

func TestFindCenterByNameCascade(t *testing.T) {
	centers := []domain.Center{
		{ID: "c1", Name: "Trung tâm dịch vụ Hà Nội"},
		{ID: "c2", Name: "Trung tâm dịch vụ Đà Nẵng"},
		{ID: "c3", Name: "EV Center Quận 7"},
	}
	server := newCenterServer(t, centers)
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	ctx := context.Background()

	t.Run("exact", func(t *testing.T) {
		id, err := client.FindCenterByName(ctx, "trung tâm dịch vụ hà nội")
		if err != nil || id != "c1" {
			t.Fatalf("got %q, %v", id, err)
		}
	})

	t.Run("keyword overlap", func(t *testing.T) {
		id, err := client.FindCenterByName(ctx, "dịch vụ Đà Nẵng")
		if err != nil || id != "c2" {
			t.Fatalf("got %q, %v", id, err)
		}
	})

	t.Run("substring", func(t *testing.T) {
		id, err := client.FindCenterByName(ctx, "quận 7")
		if err != nil || id != "c3" {
			t.Fatalf("got %q, %v", id, err)
		}
	})

	t.Run("fallback to arbitrary center", func(t *testing.T) {
		id, err := client.FindCenterByName(ctx, "chi nhánh không tồn tại xyz")
		if err != nil || id != "c1" {
			t.Fatalf("got %q, %v", id, err)
		}
	})

	t.Run("empty name falls back too", func(t *testing.T) {
		id, err := client.FindCenterByName(ctx, "")
		if err != nil || id != "c1" {
			t.Fatalf("got %q, %v", id, err)
		}
	})
}

func TestFindCenterByNameEmptyDirectory(t *testing.T) {
	server := newCenterServer(t, []domain.Center{})
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.FindCenterByName(context.Background(), "Hà Nội")
	if !errors.Is(err, ErrCenterNotFound) {
		t.Fatalf("expected ErrCenterNotFound, got %v", err)
	}
}

func TestAutoAssignSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assign" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req assignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if req.CenterID != "c1" || req.Shift != "MORNING" || req.WorkDate != "2024-01-02" {
			t.Fatalf("unexpected body: %+v", req)
		}
		if req.RequiredTechnicianCount != 2 {
			t.Fatalf("unexpected technician count: %d", req.RequiredTechnicianCount)
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"assigned":2}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	date := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if err := client.AutoAssign(context.Background(), "c1", domain.ShiftMorning, date, 2); err != nil {
		t.Fatalf("AutoAssign failed: %v", err)
	}
}

func TestAutoAssignRejectionClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"message":"Technician already assigned for this shift"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	err := client.AutoAssign(context.Background(), "c1", domain.ShiftEvening, time.Now(), 1)

	var assignErr *AssignError
	if !errors.As(err, &assignErr) {
		t.Fatalf("expected *AssignError, got %v", err)
	}
	if assignErr.Kind != KindRejected || assignErr.Category != CategoryDoubleBooking {
		t.Fatalf("unexpected classification: %+v", assignErr)
	}
}

func TestAutoAssignConnectionError(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	err := client.AutoAssign(context.Background(), "c1", domain.ShiftMorning, time.Now(), 1)

	var assignErr *AssignError
	if !errors.As(err, &assignErr) {
		t.Fatalf("expected *AssignError, got %v", err)
	}
	if assignErr.Kind != KindConnection && assignErr.Kind != KindTimeout {
		t.Fatalf("unexpected kind: %s", assignErr.Kind)
	}
}

func TestClassifyRejection(t *testing.T) {
	cases := []struct {
		status int
		raw    string
		want   Category
	}{
		{400, "No technician available for MORNING", CategoryNoTechnicians},
		{409, "schedule CONFLICT detected", CategoryDoubleBooking},
		{400, "Invalid shift value", CategoryInvalidShift},
		{400, "center not found", CategoryInvalidCenter},
		{400, "workDate must not be a past date", CategoryInvalidDate},
		{422, "validation failed for field x", CategoryValidation},
		{404, "gone", CategoryNotFound},
		{418, "something odd", CategoryClientError},
		{503, "upstream blew up", CategoryServerError},
	}
	for _, c := range cases {
		got, msg := classifyRejection(c.status, c.raw)
		if got != c.want {
			t.Errorf("classifyRejection(%d, %q) = %s, want %s", c.status, c.raw, got, c.want)
		}
		if msg == "" {
			t.Errorf("classifyRejection(%d, %q) returned empty message", c.status, c.raw)
		}
	}
}

func TestTruncateDetail(t *testing.T) {
	long := make([]byte, maxDetailLen*2)
	for i := range long {
		long[i] = 'x'
	}
	if got := truncateDetail(string(long)); len(got) != maxDetailLen {
		t.Fatalf("expected %d bytes, got %d", maxDetailLen, len(got))
	}

	short := "không có kỹ thuật viên"
	if got := truncateDetail(short); got != short {
		t.Errorf("short detail must pass through unchanged, got %q", got)
	}
}

func TestTruncateDetailRuneBoundary(t *testing.T) {
	// Multibyte Vietnamese text must never be cut mid-character.
	long := strings.Repeat("kỹ thuật viên đã được phân công ", 20)
	got := truncateDetail(long)
	if len(got) > maxDetailLen {
		t.Fatalf("expected at most %d bytes, got %d", maxDetailLen, len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncated detail is not valid UTF-8: %q", got)
	}
	if !strings.HasPrefix(long, got) {
		t.Error("truncated detail must be a prefix of the input")
	}
}
