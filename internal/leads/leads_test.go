package leads

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadqualify/pkg"
)

func newTestSink(t *testing.T) *SQLiteSink {
	t.Helper()
	sink, err := OpenSQLite(filepath.Join(t.TempDir(), "leads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })
	return sink
}

func TestRecordUpsertsByUser(t *testing.T) {
	ctx := context.Background()
	sink := newTestSink(t)

	require.NoError(t, sink.Record(ctx, pkg.Lead{
		UserID: "u1", Intent: "Interested in Product", Product: "SecureTrack", Qualified: true,
	}))
	// Second qualification for the same user: new intent, keeps the product.
	require.NoError(t, sink.Record(ctx, pkg.Lead{
		UserID: "u1", Intent: "Ready to engage", Qualified: true,
	}))

	var count int
	require.NoError(t, sink.db.QueryRow("SELECT COUNT(*) FROM leads WHERE user_id = ?", "u1").Scan(&count))
	assert.Equal(t, 1, count)

	var intent, product string
	require.NoError(t, sink.db.QueryRow("SELECT intent, product FROM leads WHERE user_id = ?", "u1").Scan(&intent, &product))
	assert.Equal(t, "Ready to engage", intent)
	assert.Equal(t, "SecureTrack", product, "blank fields in a later lead must not erase earlier data")
}

func TestRecordRequiresUserID(t *testing.T) {
	assert.Error(t, newTestSink(t).Record(context.Background(), pkg.Lead{Intent: "Cold"}))
}

func TestLogStoresChannels(t *testing.T) {
	ctx := context.Background()
	sink := newTestSink(t)

	require.NoError(t, sink.Log(ctx, LogEntry{
		UserID:   "u1",
		Name:     "Ada",
		Email:    "ada@example.com",
		Channels: []string{"email", "webhook"},
	}))

	var channels string
	require.NoError(t, sink.db.QueryRow("SELECT channels FROM lead_logs WHERE user_id = ?", "u1").Scan(&channels))
	assert.JSONEq(t, `["email","webhook"]`, channels)
}

func TestWebhookNotifier(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		got = string(body)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, "")
	err := n.NotifyContact(context.Background(), pkg.ContactForm{
		Name: "Ada", Email: "ada@example.com", Message: "Tell me about SecureTrack",
	})
	require.NoError(t, err)
	assert.Contains(t, got, "ada@example.com")
	assert.Contains(t, got, "Not specified", "missing company gets a placeholder")
}

func TestWebhookNotifierErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewWebhookNotifier(server.URL, "").NotifyCall(context.Background(), pkg.CallForm{Name: "Ada"})
	assert.Error(t, err)
}

func TestEmailNotifierBuildsMessage(t *testing.T) {
	var sentTo []string
	var sentBody string
	n := NewEmailNotifier(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "bot@example.com", To: "sales@example.com"})
	n.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		sentTo = to
		sentBody = string(msg)
		return nil
	}

	err := n.NotifyContact(context.Background(), pkg.ContactForm{Name: "Ada", Email: "ada@example.com", Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sales@example.com"}, sentTo)
	assert.Contains(t, sentBody, "Subject: New business enquiry from Ada")
}

func TestBuildSchedulePlan(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	plan, err := buildSchedulePlan("2026-09-23", "14:00", "UTC", now)
	require.NoError(t, err)
	assert.Equal(t, "2026-09-23T14:00:00Z", plan.EarliestAt)
	assert.Equal(t, "2026-09-23T14:05:00Z", plan.LatestAt)
}

func TestBuildSchedulePlanRejectsPast(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	_, err := buildSchedulePlan("2026-08-31", "14:00", "UTC", now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "past")
}

func TestBuildSchedulePlanInvalidInput(t *testing.T) {
	now := time.Now()
	_, err := buildSchedulePlan("not-a-date", "14:00", "UTC", now)
	assert.Error(t, err)
	_, err = buildSchedulePlan("2099-01-01", "14:00", "Mars/Olympus", now)
	assert.Error(t, err)
}

func TestScheduleCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/call", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"id":"call-123"}`)
	}))
	defer server.Close()

	s := NewCallScheduler(SchedulerConfig{BaseURL: server.URL, APIKey: "test-key", AssistantID: "a1", PhoneNumberID: "p1"})
	s.now = func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }

	id, err := s.Schedule(context.Background(), pkg.CallForm{
		Name: "Ada", PhoneNumber: "+14155550100", Date: "2026-09-23", Time: "14:00", Timezone: "UTC",
	})
	require.NoError(t, err)
	assert.Equal(t, "call-123", id)
}
