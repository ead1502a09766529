// Package extract provides deterministic slot extraction from free-form
// chat messages. All functions are pure and side-effect free; they make a
// best-effort guess and callers must treat a miss as "ask the user".
package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/tuht/evsc-assistant/internal/domain"
)

// scheduleKeywords flag a message as a technician-scheduling request.
var scheduleKeywords = []string{
	"xếp lịch",
	"xep lich",
	"phân công",
	"phan cong",
	"phân ca",
	"phan ca",
	"auto-assign",
	"auto assign",
	"schedule",
}

// IsScheduleRequest reports whether the message asks for technician
// scheduling. Case-insensitive substring match against a fixed keyword set.
func IsScheduleRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range scheduleKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var (
	// "từ ngày 2024-01-01 tới ngày 2024-01-05" (also "đến", and the
	// accent-stripped spellings users actually type).
	explicitRangeRe = regexp.MustCompile(
		`(?:từ|tu)\s+(?:ngày|ngay)\s+(\d{4}-\d{2}-\d{2})\s*(?:tới|đến|toi|den)\s+(?:ngày|ngay)\s+(\d{4}-\d{2}-\d{2})`)

	nextWeekPhrases = []string{
		"tuần tới",
		"tuần sau",
		"tuan toi",
		"tuan sau",
		"next week",
	}
)

// DateRange extracts a scheduling window from the message. Two patterns are
// recognized: a relative "through next week" phrase (today 00:00 through
// today+7 00:00) and an explicit ISO from/to pair. ok is false when neither
// matches; callers must not schedule in that case.
func DateRange(text string, now time.Time) (start, end time.Time, ok bool) {
	lower := strings.ToLower(text)

	if m := explicitRangeRe.FindStringSubmatch(lower); m != nil {
		s, err1 := time.Parse("2006-01-02", m[1])
		e, err2 := time.Parse("2006-01-02", m[2])
		if err1 == nil && err2 == nil && !e.Before(s) {
			return s, e, true
		}
	}

	for _, phrase := range nextWeekPhrases {
		if strings.Contains(lower, phrase) {
			today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			return today, today.AddDate(0, 0, 7), true
		}
	}

	return time.Time{}, time.Time{}, false
}

// shiftRule maps a phrase set onto a shift list. Rules are checked in
// order and the first match wins; this ordering is the documented
// tie-break ("both" must be tested before the single-shift phrases).
type shiftRule struct {
	phrases []string
	shifts  []domain.Shift
}

var shiftRules = []shiftRule{
	{
		phrases: []string{"cả hai ca", "ca hai ca", "cả 2 ca", "hai ca", "2 ca", "both shifts"},
		shifts:  []domain.Shift{domain.ShiftMorning, domain.ShiftEvening},
	},
	{
		phrases: []string{"ca sáng", "ca sang", "buổi sáng", "morning"},
		shifts:  []domain.Shift{domain.ShiftMorning},
	},
	{
		phrases: []string{"ca chiều", "ca chieu", "buổi chiều", "ca tối", "ca toi", "afternoon", "evening"},
		shifts:  []domain.Shift{domain.ShiftEvening},
	},
	{
		phrases: []string{"ca đêm", "ca dem", "night"},
		shifts:  []domain.Shift{domain.ShiftNight},
	},
}

// Shifts extracts the requested shift set. The result is never empty; a
// message with no shift phrase defaults to the morning shift.
func Shifts(text string) []domain.Shift {
	lower := strings.ToLower(text)
	for _, rule := range shiftRules {
		for _, phrase := range rule.phrases {
			if strings.Contains(lower, phrase) {
				return rule.shifts
			}
		}
	}
	return []domain.Shift{domain.ShiftMorning}
}

// centerMarkerRe matches a locative marker; the trailing phrase after the
// last marker is taken as the center name. This is the single canonical
// extraction policy: no default center is substituted here — an empty
// result means the caller decides (the gateway cascade has its own
// always-resolve fallback).
var centerMarkerRe = regexp.MustCompile(`(?:tại|tai|ở|cho)\s+(?:trung tâm|trung tam|center)?\s*|(?:trung tâm|trung tam|center)\s+`)

// centerStopPhrases terminate a center name when the sentence continues
// with dates or shifts ("... tại Hà Nội từ ngày 2024-01-01 ca sáng").
var centerStopPhrases = []string{
	"từ ngày", "tu ngay", "từ ", "tu ",
	"vào ", "vao ",
	"ca sáng", "ca sang", "ca chiều", "ca chieu", "ca đêm", "ca dem",
	"tuần", "tuan", "next week",
}

// CenterName extracts the center name following the last locative marker.
// Returns "" when no marker is present.
func CenterName(text string) string {
	lower := strings.ToLower(text)
	locs := centerMarkerRe.FindAllStringIndex(lower, -1)
	if locs == nil {
		return ""
	}
	last := locs[len(locs)-1]
	name := text[last[1]:]

	cut := len(name)
	nameLower := strings.ToLower(name)
	for _, stop := range centerStopPhrases {
		if idx := strings.Index(nameLower, stop); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	name = strings.TrimRight(strings.TrimSpace(name[:cut]), ".,!?")
	return name
}
