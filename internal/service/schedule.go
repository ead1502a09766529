package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tuht/evsc-assistant/internal/adapter/dispatch"
	"github.com/tuht/evsc-assistant/internal/domain"
	"github.com/tuht/evsc-assistant/internal/extract"
)

const (
	scheduleWorkers = 4
	// Guard against absurd ranges producing hundreds of dispatch calls.
	maxScheduleDays = 31
)

// handleSchedule runs the technician auto-assign workflow: extract the
// date range, shifts and center from the message, then fan the per-day
// per-shift assign calls out over a bounded worker pool.
func (s *Service) handleSchedule(ctx context.Context, req *domain.ChatRequest) *domain.ChatResponse {
	s.conversations.Append(req.ConversationID, domain.RoleUser, req.Message, nil)

	start, end, ok := extract.DateRange(req.Message, s.now())
	if !ok {
		return s.failure(req.ConversationID,
			"Không xác định được khoảng thời gian cần xếp lịch. Vui lòng ghi rõ, ví dụ: \"xếp lịch từ ngày 2026-09-07 tới ngày 2026-09-11\" hoặc \"xếp lịch tuần tới\".",
			"cannot determine time range")
	}
	if end.Sub(start) > maxScheduleDays*24*time.Hour {
		end = start.AddDate(0, 0, maxScheduleDays)
	}
	shifts := extract.Shifts(req.Message)

	centerID := req.Context["center_id"]
	if centerID == "" {
		name := extract.CenterName(req.Message)
		id, err := s.dispatch.FindCenterByName(ctx, name)
		if err != nil {
			log.Printf("WARN: center resolution failed: %v", err)
			if errors.Is(err, dispatch.ErrCenterNotFound) {
				return s.failure(req.ConversationID,
					"Không tìm thấy trung tâm dịch vụ nào trong hệ thống. Vui lòng kiểm tra lại cấu hình.",
					err.Error())
			}
			return s.failure(req.ConversationID,
				"Không thể kết nối tới hệ thống điều phối để tra cứu trung tâm. Vui lòng thử lại sau.",
				err.Error())
		}
		centerID = id
	}

	batch := s.runAssignBatch(ctx, centerID, start, end, shifts)
	message := buildScheduleMessage(batch, centerID)

	// The batch counts as successful when at least one shift was
	// assigned; an all-failed batch is a failure with the full breakdown.
	resp := &domain.ChatResponse{
		Response:          message,
		Success:           batch.Successful > 0,
		FunctionCalls:     []string{"auto_assign"},
		FunctionCallCount: 1,
		Data:              map[string]interface{}{"schedule": batch},
	}
	role := domain.RoleAssistant
	if !resp.Success {
		resp.Error = "all assignment attempts failed"
		role = domain.RoleError
	}
	s.conversations.Append(req.ConversationID, role, message, []string{"auto_assign"})
	return resp
}

// runAssignBatch executes one auto-assign call per day and shift. Each
// call has its own timeout; there is no batch-level deadline.
func (s *Service) runAssignBatch(ctx context.Context, centerID string, start, end time.Time, shifts []domain.Shift) *domain.ScheduleBatchResult {
	type job struct {
		date  time.Time
		shift domain.Shift
	}

	var jobs []job
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for _, shift := range shifts {
			jobs = append(jobs, job{date: d, shift: shift})
		}
	}

	attempts := make([]domain.ScheduleAttempt, len(jobs))
	jobCh := make(chan int)
	var wg sync.WaitGroup

	workers := scheduleWorkers
	if workers > len(jobs) {
		workers = len(jobs)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobCh {
				j := jobs[i]
				callCtx, cancel := context.WithTimeout(ctx, s.config.AssignTimeout)
				err := s.dispatch.AutoAssign(callCtx, centerID, j.shift, j.date, s.config.RequiredTechnicians)
				cancel()

				attempt := domain.ScheduleAttempt{Date: j.date, Shift: j.shift, Success: err == nil}
				if err != nil {
					attempt.Error = userFacingAssignError(err)
				}
				attempts[i] = attempt
			}
		}()
	}
	for i := range jobs {
		jobCh <- i
	}
	close(jobCh)
	wg.Wait()

	sort.SliceStable(attempts, func(i, j int) bool {
		if !attempts[i].Date.Equal(attempts[j].Date) {
			return attempts[i].Date.Before(attempts[j].Date)
		}
		return attempts[i].Shift < attempts[j].Shift
	})

	batch := &domain.ScheduleBatchResult{Attempts: attempts}
	for _, a := range attempts {
		if a.Success {
			batch.Successful++
			continue
		}
		batch.Failed++
		if len(batch.FailureDetails) < domain.MaxFailureDetails {
			batch.FailureDetails = append(batch.FailureDetails,
				fmt.Sprintf("%s %s: %s", a.Date.Format("2006-01-02"), a.Shift, a.Error))
		}
	}
	return batch
}

func userFacingAssignError(err error) string {
	var assignErr *dispatch.AssignError
	if errors.As(err, &assignErr) {
		return assignErr.Message
	}
	return "Lỗi không xác định khi gọi hệ thống điều phối"
}

var shiftLabels = map[domain.Shift]string{
	domain.ShiftMorning: "ca sáng",
	domain.ShiftEvening: "ca chiều",
	domain.ShiftNight:   "ca đêm",
}

func buildScheduleMessage(batch *domain.ScheduleBatchResult, centerID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Kết quả xếp lịch tại trung tâm %s: %d ca thành công, %d ca thất bại.\n",
		centerID, batch.Successful, batch.Failed)

	if batch.Successful > 0 {
		b.WriteString("\nCác ca đã phân công:\n")
		listed := 0
		for _, a := range batch.Attempts {
			if !a.Success {
				continue
			}
			fmt.Fprintf(&b, "- %s %s\n", a.Date.Format("2006-01-02"), shiftLabel(a.Shift))
			listed++
			if listed == 5 {
				break
			}
		}
		if batch.Successful > listed {
			fmt.Fprintf(&b, "... và %d ca khác\n", batch.Successful-listed)
		}
	}

	if batch.Failed > 0 {
		b.WriteString("\nCác ca không phân công được:\n")
		for _, group := range groupFailures(batch.Attempts) {
			fmt.Fprintf(&b, "- %s (%d ca)\n", group.reason, group.count)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func shiftLabel(s domain.Shift) string {
	if label, ok := shiftLabels[s]; ok {
		return label
	}
	return string(s)
}

type failureGroup struct {
	reason string
	count  int
}

// groupFailures collapses failed attempts by reason, most frequent first,
// keeping at most three groups.
func groupFailures(attempts []domain.ScheduleAttempt) []failureGroup {
	counts := make(map[string]int)
	for _, a := range attempts {
		if !a.Success && a.Error != "" {
			counts[a.Error]++
		}
	}

	groups := make([]failureGroup, 0, len(counts))
	for reason, count := range counts {
		groups = append(groups, failureGroup{reason: reason, count: count})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].reason < groups[j].reason
	})
	if len(groups) > 3 {
		groups = groups[:3]
	}
	return groups
}
