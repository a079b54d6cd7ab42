package pkg

import (
	"time"
)

// Core types shared across the lead-qualification pipeline.

// Intent labels produced by the intent classifier. The set is closed:
// anything the classifier returns outside of it is treated as IntentUnknown.
const (
	IntentCold        = "Cold"
	IntentProduct     = "Interested in Product"
	IntentServices    = "Interested in Services"
	IntentInfoRequest = "Info Request"
	IntentReady       = "Ready to engage"
	IntentUnknown     = "Unknown"
)

// Stage marks the sub-state of a multi-turn data-collection flow.
// It is empty (StageIdle) outside of demo/call collection.
type Stage string

const (
	StageIdle               Stage = ""
	StageAwaitingChoice     Stage = "awaiting_choice"
	StageCollectingDemoInfo Stage = "collecting_info"
	StageCollectingCallInfo Stage = "collecting_call_info"
)

// Action tells the frontend what to render alongside the reply.
const (
	ActionNone         = ""
	ActionContactForm  = "contact_form"
	ActionChooseMethod = "choose_contact_method"
)

// Memory is the per-user conversation state, upserted once per turn.
// It always reflects the outcome of the last completed turn.
type Memory struct {
	Intent    string `json:"intent"`
	Product   string `json:"product"`
	Service   string `json:"service"`
	Qualified bool   `json:"qualified"`
	LastAgent string `json:"last_agent"`
	Stage     Stage  `json:"stage,omitempty"`
}

// TurnRequest is one inbound user turn. History carries the full transcript
// ("User: ..."/"Bot: ..." lines, oldest first) and is the source of truth for
// the most recent bot line, since persistence may lag behind it.
type TurnRequest struct {
	UserID  string   `json:"user_id" binding:"required"`
	Query   string   `json:"query" binding:"required"`
	History []string `json:"history"`
}

// TurnResponse is the outcome of one routed turn.
type TurnResponse struct {
	Response    string `json:"response"`
	Intent      string `json:"intent,omitempty"`
	RoutedAgent string `json:"routed_agent"`
	Action      string `json:"action,omitempty"`
}

// Lead is a qualification event emitted to the CRM log. Never stored by the
// router itself.
type Lead struct {
	UserID      string    `json:"user_id"`
	Name        string    `json:"name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Company     string    `json:"company,omitempty"`
	Intent      string    `json:"intent"`
	Product     string    `json:"product,omitempty"`
	Service     string    `json:"service,omitempty"`
	Qualified   bool      `json:"qualified"`
	LastMessage string    `json:"last_message,omitempty"`
	CallTime    string    `json:"call_time,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Chunk is a single retrieved content fragment with its relevance score.
type Chunk struct {
	Text     string  `json:"text"`
	Source   string  `json:"source,omitempty"`
	Category string  `json:"category,omitempty"`
	Score    float64 `json:"score"`
}

// ContactForm is the demo-booking contact submission.
type ContactForm struct {
	UserID  string `json:"user_id" binding:"required"`
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Company string `json:"company"`
	Message string `json:"message" binding:"required"`
}

// CallForm is the call-scheduling submission.
type CallForm struct {
	UserID      string `json:"user_id" binding:"required"`
	Name        string `json:"name" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required,e164"`
	Date        string `json:"date" binding:"required"` // e.g. "2026-09-23"
	Time        string `json:"time" binding:"required"` // e.g. "14:00", 24-hour
	Timezone    string `json:"tz"`
}
