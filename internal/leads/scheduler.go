package leads

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"leadqualify/pkg"
)

const (
	defaultTimezone = "America/Chicago"
	// callWindow is how long after the requested time the telephony provider
	// may still place the call.
	callWindow = 5 * time.Minute
)

// schedulePlan is the provider's call window, both bounds UTC ISO-8601.
type schedulePlan struct {
	EarliestAt string `json:"earliestAt"`
	LatestAt   string `json:"latestAt"`
}

// CallScheduler schedules outbound prospect calls with a telephony provider
// over its REST API.
type CallScheduler struct {
	client        *http.Client
	baseURL       string
	apiKey        string
	assistantID   string
	phoneNumberID string
	now           func() time.Time
}

// SchedulerConfig holds the telephony provider settings.
type SchedulerConfig struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"-"`
	AssistantID   string `yaml:"assistant_id"`
	PhoneNumberID string `yaml:"phone_number_id"`
}

// NewCallScheduler creates a scheduler client.
func NewCallScheduler(config SchedulerConfig) *CallScheduler {
	return &CallScheduler{
		client:        &http.Client{Timeout: webhookTimeout},
		baseURL:       config.BaseURL,
		apiKey:        config.APIKey,
		assistantID:   config.AssistantID,
		phoneNumberID: config.PhoneNumberID,
		now:           time.Now,
	}
}

// Schedule books the call described by the form and returns the provider's
// call ID. Past times are rejected before any network traffic.
func (s *CallScheduler) Schedule(ctx context.Context, form pkg.CallForm) (string, error) {
	if s.baseURL == "" || s.apiKey == "" {
		return "", fmt.Errorf("call scheduler not configured")
	}

	plan, err := buildSchedulePlan(form.Date, form.Time, form.Timezone, s.now())
	if err != nil {
		return "", err
	}

	payload, err := sonic.Marshal(map[string]any{
		"name":          fmt.Sprintf("Prospect lead - %s", form.Name),
		"assistantId":   s.assistantID,
		"phoneNumberId": s.phoneNumberID,
		"customer":      map[string]string{"number": form.PhoneNumber},
		"schedulePlan":  plan,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal call request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/call", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to schedule call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read scheduler response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("failed to schedule call: HTTP %d: %s", resp.StatusCode, body)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := sonic.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("failed to parse scheduler response: %w", err)
	}

	log.Info().Str("call_id", created.ID).Str("earliest_at", plan.EarliestAt).Msg("call scheduled")
	return created.ID, nil
}

// buildSchedulePlan turns a local date, time, and timezone into a UTC call
// window. The requested time must be in the future.
func buildSchedulePlan(dateStr, timeStr, tz string, now time.Time) (schedulePlan, error) {
	if tz == "" {
		tz = defaultTimezone
	}
	location, err := time.LoadLocation(tz)
	if err != nil {
		return schedulePlan{}, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}

	local, err := time.ParseInLocation("2006-01-02 15:04", dateStr+" "+timeStr, location)
	if err != nil {
		return schedulePlan{}, fmt.Errorf("invalid date/time %q %q: %w", dateStr, timeStr, err)
	}
	if local.Before(now) {
		return schedulePlan{}, fmt.Errorf("chosen time is in the past")
	}

	earliest := local.UTC()
	return schedulePlan{
		EarliestAt: earliest.Format(time.RFC3339),
		LatestAt:   earliest.Add(callWindow).Format(time.RFC3339),
	}, nil
}
