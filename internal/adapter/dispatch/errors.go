package dispatch

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrorKind separates transport failures from application rejections.
type ErrorKind string

const (
	KindTimeout    ErrorKind = "timeout"
	KindConnection ErrorKind = "connection"
	KindRejected   ErrorKind = "rejected"
)

// Category is the user-facing classification of a rejection.
type Category string

const (
	CategoryNoTechnicians Category = "no_technicians"
	CategoryDoubleBooking Category = "double_booking"
	CategoryInvalidShift  Category = "invalid_shift"
	CategoryInvalidCenter Category = "invalid_center"
	CategoryInvalidDate   Category = "invalid_date"
	CategoryValidation    Category = "validation"
	CategoryNotFound      Category = "not_found"
	CategoryClientError   Category = "client_error"
	CategoryServerError   Category = "server_error"
)

// maxDetailLen bounds the raw upstream detail kept for diagnostics.
const maxDetailLen = 256

// AssignError is a classified auto-assign failure.
type AssignError struct {
	Kind       ErrorKind
	Category   Category
	StatusCode int
	Message    string // user-facing, Vietnamese
	Detail     string // truncated raw upstream detail
}

func (e *AssignError) Error() string {
	return e.Message
}

// rejectionRule maps upstream wording onto a category. Rules are checked
// in order, first match wins. The table depends on upstream phrasing and
// is not exhaustive; unmatched messages fall through to a status-code
// category.
type rejectionRule struct {
	substrings []string
	category   Category
	message    string
}

var rejectionRules = []rejectionRule{
	{
		substrings: []string{"no technician", "no available technician", "không có kỹ thuật viên"},
		category:   CategoryNoTechnicians,
		message:    "Không có kỹ thuật viên khả dụng cho ca này",
	},
	{
		substrings: []string{"already assigned", "double", "conflict", "đã được phân công"},
		category:   CategoryDoubleBooking,
		message:    "Kỹ thuật viên đã được phân công trùng ca",
	},
	{
		substrings: []string{"invalid shift", "shift not", "ca làm việc không hợp lệ"},
		category:   CategoryInvalidShift,
		message:    "Ca làm việc không hợp lệ",
	},
	{
		substrings: []string{"center not found", "invalid center", "trung tâm không"},
		category:   CategoryInvalidCenter,
		message:    "Trung tâm không hợp lệ",
	},
	{
		substrings: []string{"invalid date", "past date", "work date", "ngày không hợp lệ"},
		category:   CategoryInvalidDate,
		message:    "Ngày làm việc không hợp lệ",
	},
	{
		substrings: []string{"validation"},
		category:   CategoryValidation,
		message:    "Dữ liệu yêu cầu không hợp lệ",
	},
}

// classifyRejection translates an upstream rejection into a category and a
// user-facing message.
func classifyRejection(statusCode int, raw string) (Category, string) {
	lower := strings.ToLower(raw)
	for _, rule := range rejectionRules {
		for _, sub := range rule.substrings {
			if strings.Contains(lower, sub) {
				return rule.category, rule.message
			}
		}
	}

	switch {
	case statusCode == 404:
		return CategoryNotFound, "Không tìm thấy tài nguyên yêu cầu"
	case statusCode >= 400 && statusCode < 500:
		return CategoryClientError, fmt.Sprintf("Yêu cầu bị từ chối (mã %d)", statusCode)
	default:
		return CategoryServerError, fmt.Sprintf("Hệ thống phân công gặp lỗi (mã %d)", statusCode)
	}
}

func truncateDetail(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	// Never cut inside a multibyte character.
	cut := maxDetailLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
