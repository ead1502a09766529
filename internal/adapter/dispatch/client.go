// Package dispatch provides the HTTP gateway to the technician dispatch
// backend: the service-center directory and the auto-assign endpoint.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tuht/evsc-assistant/internal/domain"
)

// ErrCenterNotFound is returned when the directory has no center at all;
// the name-resolution cascade otherwise always resolves to some center.
var ErrCenterNotFound = errors.New("no active center available")

// Client calls the dispatch backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new dispatch client. The timeout applies per call.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListCenters retrieves the service-center directory.
func (c *Client) ListCenters(ctx context.Context) ([]domain.Center, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/centers", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to list centers: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("centers API error [%d]: %s", resp.StatusCode, truncateDetail(string(respBody)))
	}

	var centers []domain.Center
	if err := json.Unmarshal(respBody, &centers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal centers: %w", err)
	}
	return centers, nil
}

// FindCenterByName resolves a free-text center name to a center id through
// an ordered cascade: exact case-insensitive match, weighted keyword
// overlap (at least half of the query keywords must match), substring
// match, and finally an arbitrary active center. Each stage runs only when
// the previous one yields nothing, so a query always resolves to some
// center as long as the directory is non-empty.
func (c *Client) FindCenterByName(ctx context.Context, name string) (string, error) {
	centers, err := c.ListCenters(ctx)
	if err != nil {
		return "", err
	}
	if len(centers) == 0 {
		return "", ErrCenterNotFound
	}

	query := strings.ToLower(strings.TrimSpace(name))

	if query != "" {
		// Stage 1: exact match.
		for _, center := range centers {
			if strings.ToLower(center.Name) == query {
				return center.ID, nil
			}
		}

		// Stage 2: keyword overlap, >= 50% of query keywords required.
		keywords := strings.Fields(query)
		bestID, bestScore := "", 0
		for _, center := range centers {
			centerName := strings.ToLower(center.Name)
			score := 0
			for _, kw := range keywords {
				if strings.Contains(centerName, kw) {
					score++
				}
			}
			if score*2 >= len(keywords) && score > bestScore {
				bestID, bestScore = center.ID, score
			}
		}
		if bestID != "" {
			return bestID, nil
		}

		// Stage 3: substring match either direction.
		for _, center := range centers {
			centerName := strings.ToLower(center.Name)
			if strings.Contains(centerName, query) || strings.Contains(query, centerName) {
				return center.ID, nil
			}
		}
	}

	// Stage 4: arbitrary active center.
	return centers[0].ID, nil
}

// assignRequest is the auto-assign request body.
type assignRequest struct {
	CenterID                string      `json:"centerId"`
	Shift                   string      `json:"shift"`
	WorkDate                string      `json:"workDate"`
	RequiredTechnicianCount int         `json:"requiredTechnicianCount"`
	RequiredSkills          interface{} `json:"requiredSkills"`
}

// assignErrorBody covers the error field spellings the backend uses.
type assignErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Title   string `json:"title"`
	Detail  string `json:"detail"`
}

func (b *assignErrorBody) text() string {
	for _, s := range []string{b.Message, b.Error, b.Detail, b.Title} {
		if s != "" {
			return s
		}
	}
	return ""
}

// AutoAssign schedules technicians for one center/shift/date. A nil return
// means the assignment was accepted; failures come back as *AssignError
// with a classified kind and category.
func (c *Client) AutoAssign(ctx context.Context, centerID string, shift domain.Shift, date time.Time, technicianCount int) error {
	body, err := json.Marshal(assignRequest{
		CenterID:                centerID,
		Shift:                   string(shift),
		WorkDate:                date.Format("2006-01-02"),
		RequiredTechnicianCount: technicianCount,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal assign request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/assign", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		kind := KindConnection
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return &AssignError{
			Kind:    kind,
			Message: "Không thể kết nối tới hệ thống phân công",
			Detail:  truncateDetail(err.Error()),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(resp.Body)
	raw := string(respBody)
	var errBody assignErrorBody
	if err := json.Unmarshal(respBody, &errBody); err == nil {
		if text := errBody.text(); text != "" {
			raw = text
		}
	}

	category, message := classifyRejection(resp.StatusCode, raw)
	return &AssignError{
		Kind:       KindRejected,
		Category:   category,
		StatusCode: resp.StatusCode,
		Message:    message,
		Detail:     truncateDetail(raw),
	}
}
