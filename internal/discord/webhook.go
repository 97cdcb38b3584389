// Package discord implements the Discord-facing surfaces: webhook
// reminder delivery, slash-command registration, and the signed
// interactions endpoint.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"taskbot/internal/model"
)

// Embed colors: red when the deadline is inside 24 hours, orange otherwise.
const (
	colorUrgent = 0xFF0000
	colorNormal = 0xFFA500
)

// DeliveryError indicates a reminder could not be delivered. The
// dispatcher treats it as "not sent" and retries on the next tick; it
// is never fatal.
type DeliveryError struct {
	Status int
	Reason string
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("webhook delivery failed (status %d): %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("webhook delivery failed: %s", e.Reason)
}

// EmbedField is a single name/value pair inside an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Embed is a Discord rich-embed message body.
type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Fields      []EmbedField `json:"fields"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp"`
}

// webhookPayload is the webhook POST body.
type webhookPayload struct {
	Embeds []Embed `json:"embeds"`
}

// BuildReminderEmbed renders a reminder into a Discord embed. now is
// the scan's wall-clock snapshot.
func BuildReminderEmbed(task model.Task, now time.Time) Embed {
	description := task.Description
	if strings.TrimSpace(description) == "" {
		description = "none"
	}

	remaining := task.DeadlineMs - now.UnixMilli()
	if remaining < 0 {
		remaining = 0
	}

	color := colorNormal
	if remaining < 24*time.Hour.Milliseconds() {
		color = colorUrgent
	}

	return Embed{
		Title: "⏰ Task Reminder",
		Fields: []EmbedField{
			{Name: "Title", Value: task.Title},
			{Name: "Description", Value: description},
			{Name: "Deadline", Value: task.Deadline().Format("Mon, 02 Jan 2006 15:04"), Inline: true},
			{Name: "Time remaining", Value: formatRemaining(remaining), Inline: true},
		},
		Color:     color,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

// formatRemaining breaks a millisecond duration into a days/hours/minutes
// string.
func formatRemaining(ms int64) string {
	minutes := ms / (60 * 1000)
	days := minutes / (24 * 60)
	hours := (minutes % (24 * 60)) / 60
	minutes = minutes % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%d days %d hours", days, hours)
	case hours > 0:
		return fmt.Sprintf("%d hours %d minutes", hours, minutes)
	default:
		return fmt.Sprintf("%d minutes", minutes)
	}
}

// WebhookSender posts reminder embeds to a Discord channel webhook.
type WebhookSender struct {
	httpClient *http.Client
	url        func() string
	now        func() time.Time
}

// NewWebhookSender creates a sender reading its target from url on
// every delivery, so webhook changes apply without restart.
func NewWebhookSender(url func() string) *WebhookSender {
	return &WebhookSender{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		url:        url,
		now:        time.Now,
	}
}

// SetNowFunc overrides the clock used for remaining-time rendering.
// Intended for tests.
func (s *WebhookSender) SetNowFunc(now func() time.Time) {
	s.now = now
}

// Send delivers one reminder as an embed message. Any failure comes
// back as a *DeliveryError so the caller leaves the reminder unsent.
func (s *WebhookSender) Send(ctx context.Context, task model.Task, _ model.Reminder) error {
	target := s.url()
	if target == "" {
		return &DeliveryError{Reason: "webhook URL not configured"}
	}

	payload := webhookPayload{Embeds: []Embed{BuildReminderEmbed(task, s.now())}}
	data, err := json.Marshal(payload)
	if err != nil {
		return &DeliveryError{Reason: fmt.Sprintf("marshaling payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return &DeliveryError{Reason: fmt.Sprintf("creating request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &DeliveryError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &DeliveryError{
			Status: resp.StatusCode,
			Reason: strings.TrimSpace(string(body)),
		}
	}

	return nil
}

// ValidWebhookURL reports whether raw looks like a Discord channel
// webhook: a discord.com host with a /webhooks/ path segment. Checked
// before a user-supplied URL is accepted.
func ValidWebhookURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return false
	}

	host := u.Hostname()
	if host != "discord.com" && !strings.HasSuffix(host, ".discord.com") {
		return false
	}

	return strings.Contains(u.Path, "/webhooks/")
}
