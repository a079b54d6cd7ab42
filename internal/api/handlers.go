package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"leadqualify/internal/detect"
	"leadqualify/internal/leads"
	"leadqualify/pkg"
)

// historyContextLines caps how much transcript feeds the product/service
// auto-tagging on a contact submission.
const historyContextLines = 30

// handleMessage routes one conversation turn.
func (s *Server) handleMessage(c *gin.Context) {
	var req pkg.TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.dialog.Route(c.Request.Context(), req)
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("turn failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process message"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// handleContact accepts a demo-booking contact form. Email and webhook are
// attempted independently; the request fails only when every channel fails.
func (s *Server) handleContact(c *gin.Context) {
	var form pkg.ContactForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	var channels []string
	if s.email != nil {
		if err := s.email.NotifyContact(ctx, form); err != nil {
			log.Error().Err(err).Msg("contact email failed")
		} else {
			channels = append(channels, "email")
		}
	}
	if err := s.webhook.NotifyContact(ctx, form); err != nil {
		log.Error().Err(err).Msg("contact webhook failed")
	} else {
		channels = append(channels, "webhook")
	}
	if len(channels) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send notification. Please try again."})
		return
	}

	// Auto-tag product/service from the recent transcript plus the message.
	historyText := ""
	if _, history, err := s.store.Get(ctx, form.UserID); err == nil {
		if len(history) > historyContextLines {
			history = history[len(history)-historyContextLines:]
		}
		historyText = strings.Join(history, "\n")
	}
	product, service := detect.DetectInterest(historyText, form.Message)

	lead := pkg.Lead{
		UserID:      form.UserID,
		Name:        form.Name,
		Email:       form.Email,
		Company:     form.Company,
		Intent:      "Demo Booking",
		Product:     product,
		Service:     service,
		Qualified:   true,
		LastMessage: form.Message,
	}
	if err := s.sink.Record(ctx, lead); err != nil {
		log.Error().Err(err).Msg("failed to record contact lead")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record lead"})
		return
	}

	if err := s.sink.Log(ctx, leads.LogEntry{
		UserID:   form.UserID,
		Name:     form.Name,
		Email:    form.Email,
		Company:  form.Company,
		Message:  form.Message,
		Channels: channels,
	}); err != nil {
		log.Error().Err(err).Msg("failed to write contact audit log")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record lead"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"detail": "Message accepted - we'll be in touch soon!"})
}

// handleCall schedules an outbound call. Telephony and webhook channels are
// independent, same failure rule as contact.
func (s *Server) handleCall(c *gin.Context) {
	var form pkg.CallForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	var channels []string
	if s.scheduler != nil {
		if _, err := s.scheduler.Schedule(ctx, form); err != nil {
			log.Error().Err(err).Msg("call scheduling failed")
		} else {
			channels = append(channels, "telephony")
		}
	}
	if err := s.webhook.NotifyCall(ctx, form); err != nil {
		log.Error().Err(err).Msg("call webhook failed")
	} else {
		channels = append(channels, "webhook")
	}
	if len(channels) == 0 {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process call request. Please try again."})
		return
	}

	callTime := fmt.Sprintf("%s %s %s", form.Date, form.Time, form.Timezone)
	lead := pkg.Lead{
		UserID:    form.UserID,
		Name:      form.Name,
		Phone:     form.PhoneNumber,
		Intent:    "Scheduled Call",
		Qualified: true,
		CallTime:  callTime,
	}
	if err := s.sink.Record(ctx, lead); err != nil {
		log.Error().Err(err).Msg("failed to record call lead")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record lead"})
		return
	}

	if err := s.sink.Log(ctx, leads.LogEntry{
		UserID:   form.UserID,
		Name:     form.Name,
		Phone:    form.PhoneNumber,
		CallTime: callTime,
		Channels: channels,
	}); err != nil {
		log.Error().Err(err).Msg("failed to write call audit log")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record lead"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"detail": "Call scheduled"})
}

// handleSearch exposes raw context retrieval, mainly for the voice
// assistant's knowledge lookups.
func (s *Server) handleSearch(c *gin.Context) {
	var req struct {
		Query string `json:"query" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chunks, err := s.retriever.Retrieve(c.Request.Context(), req.Query, "")
	if err != nil {
		log.Error().Err(err).Msg("search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	c.JSON(http.StatusOK, gin.H{"context": strings.Join(texts, "\n\n")})
}
