package leads

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"leadqualify/pkg"
)

const webhookTimeout = 10 * time.Second

// WebhookNotifier posts lead notifications to chat-ops webhooks. Contact
// submissions and scheduled calls can go to separate channels.
type WebhookNotifier struct {
	client     *http.Client
	contactURL string
	callURL    string
}

// NewWebhookNotifier creates a notifier. An empty callURL falls back to the
// contact webhook.
func NewWebhookNotifier(contactURL, callURL string) *WebhookNotifier {
	if callURL == "" {
		callURL = contactURL
	}
	return &WebhookNotifier{
		client:     &http.Client{Timeout: webhookTimeout},
		contactURL: contactURL,
		callURL:    callURL,
	}
}

// NotifyContact announces a new business enquiry.
func (n *WebhookNotifier) NotifyContact(ctx context.Context, form pkg.ContactForm) error {
	company := form.Company
	if company == "" {
		company = "Not specified"
	}
	message := form.Message
	if message == "" {
		message = "No message provided"
	}

	text := fmt.Sprintf(
		"**New Business Enquiry**\n\n**Name:** %s\n\n**Email:** %s\n\n**Company:** %s\n\n**Message:** %s",
		form.Name, form.Email, company, message)

	if err := n.post(ctx, n.contactURL, text); err != nil {
		return err
	}
	log.Info().Str("email", form.Email).Msg("contact notification sent")
	return nil
}

// NotifyCall announces a newly scheduled call.
func (n *WebhookNotifier) NotifyCall(ctx context.Context, form pkg.CallForm) error {
	text := fmt.Sprintf(
		"**New Call Scheduled**\n\n**Name:** %s\n\n**Phone:** %s\n\n**Scheduled Time:** %s at %s (%s)",
		form.Name, form.PhoneNumber, form.Date, form.Time, form.Timezone)

	if err := n.post(ctx, n.callURL, text); err != nil {
		return err
	}
	log.Info().Str("name", form.Name).Msg("call notification sent")
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, url, text string) error {
	if url == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	payload, err := sonic.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook post failed: HTTP %d", resp.StatusCode)
	}
	return nil
}

// SMTPConfig holds the outbound mail settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"-"`
	Password string `yaml:"-"`
	From     string `yaml:"from"`
	To       string `yaml:"to"`
}

// EmailNotifier mails contact submissions to the sales inbox.
type EmailNotifier struct {
	config SMTPConfig
	send   func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates a mail notifier from SMTP settings.
func NewEmailNotifier(config SMTPConfig) *EmailNotifier {
	return &EmailNotifier{config: config, send: smtp.SendMail}
}

// NotifyContact sends the enquiry as a plain-text email.
func (n *EmailNotifier) NotifyContact(ctx context.Context, form pkg.ContactForm) error {
	if n.config.Host == "" || n.config.To == "" {
		return fmt.Errorf("smtp not configured")
	}

	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", n.config.From)
	fmt.Fprintf(&body, "To: %s\r\n", n.config.To)
	fmt.Fprintf(&body, "Subject: New business enquiry from %s\r\n", form.Name)
	body.WriteString("\r\n")
	fmt.Fprintf(&body, "Name: %s\nEmail: %s\nCompany: %s\n\n%s\n", form.Name, form.Email, form.Company, form.Message)

	addr := fmt.Sprintf("%s:%d", n.config.Host, n.config.Port)
	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}

	if err := n.send(addr, auth, n.config.From, []string{n.config.To}, []byte(body.String())); err != nil {
		return fmt.Errorf("failed to send contact email: %w", err)
	}
	log.Info().Str("to", n.config.To).Msg("contact email sent")
	return nil
}
