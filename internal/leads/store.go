package leads

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"

	"leadqualify/pkg"
)

// LogEntry is one audit row written after a contact or call submission.
// Channels lists only the notification channels that actually succeeded.
type LogEntry struct {
	UserID   string   `json:"user_id"`
	Name     string   `json:"name,omitempty"`
	Email    string   `json:"email,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Company  string   `json:"company,omitempty"`
	Message  string   `json:"message,omitempty"`
	CallTime string   `json:"call_time,omitempty"`
	Channels []string `json:"channels"`
}

// Sink records qualified leads and their submission audit trail.
type Sink interface {
	Record(ctx context.Context, lead pkg.Lead) error
	Log(ctx context.Context, entry LogEntry) error
}

// SQLiteSink is the production Sink, one row per user in leads plus an
// append-only lead_logs table.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the lead database at path and ensures the
// schema exists.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open lead database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to lead database: %w", err)
	}

	sink := &SQLiteSink{db: db}
	if err := sink.migrate(); err != nil {
		return nil, err
	}
	return sink, nil
}

func (s *SQLiteSink) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS leads (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL UNIQUE,
		name          TEXT,
		email         TEXT,
		phone         TEXT,
		company       TEXT,
		intent        TEXT NOT NULL,
		product       TEXT,
		service       TEXT,
		qualified     INTEGER NOT NULL,
		last_message  TEXT,
		call_time     TEXT,
		created_at    TIMESTAMP NOT NULL,
		updated_at    TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS lead_logs (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		name       TEXT,
		email      TEXT,
		phone      TEXT,
		company    TEXT,
		message    TEXT,
		call_time  TEXT,
		channels   TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_lead_logs_user ON lead_logs(user_id);`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create lead schema: %w", err)
	}
	return nil
}

// Record upserts the lead keyed on user ID. A repeat qualification for the
// same user updates the existing row instead of duplicating it.
func (s *SQLiteSink) Record(ctx context.Context, lead pkg.Lead) error {
	if lead.UserID == "" {
		return fmt.Errorf("lead user ID cannot be empty")
	}

	now := time.Now().UTC()
	const query = `
	INSERT INTO leads (id, user_id, name, email, phone, company, intent, product, service, qualified, last_message, call_time, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		name         = CASE WHEN excluded.name    != '' THEN excluded.name    ELSE leads.name    END,
		email        = CASE WHEN excluded.email   != '' THEN excluded.email   ELSE leads.email   END,
		phone        = CASE WHEN excluded.phone   != '' THEN excluded.phone   ELSE leads.phone   END,
		company      = CASE WHEN excluded.company != '' THEN excluded.company ELSE leads.company END,
		intent       = excluded.intent,
		product      = CASE WHEN excluded.product != '' THEN excluded.product ELSE leads.product END,
		service      = CASE WHEN excluded.service != '' THEN excluded.service ELSE leads.service END,
		qualified    = excluded.qualified,
		last_message = excluded.last_message,
		call_time    = CASE WHEN excluded.call_time != '' THEN excluded.call_time ELSE leads.call_time END,
		updated_at   = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(), lead.UserID, lead.Name, lead.Email, lead.Phone, lead.Company,
		lead.Intent, lead.Product, lead.Service, lead.Qualified, lead.LastMessage, lead.CallTime,
		now, now)
	if err != nil {
		return fmt.Errorf("failed to record lead: %w", err)
	}

	log.Info().Str("user_id", lead.UserID).Str("intent", lead.Intent).Msg("lead recorded")
	return nil
}

// Log appends one audit entry; channels are stored as a JSON array.
func (s *SQLiteSink) Log(ctx context.Context, entry LogEntry) error {
	channels, err := sonic.Marshal(entry.Channels)
	if err != nil {
		return fmt.Errorf("failed to marshal channels: %w", err)
	}

	const query = `
	INSERT INTO lead_logs (id, user_id, name, email, phone, company, message, call_time, channels, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		uuid.New().String(), entry.UserID, entry.Name, entry.Email, entry.Phone,
		entry.Company, entry.Message, entry.CallTime, string(channels), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert lead log: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
