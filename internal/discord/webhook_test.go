package discord_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskbot/internal/discord"
	"taskbot/internal/model"
)

func TestBuildReminderEmbed(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	task := model.Task{
		Title:      "submit paper",
		DeadlineMs: now.Add(49*time.Hour + 30*time.Minute).UnixMilli(),
	}

	embed := discord.BuildReminderEmbed(task, now)
	assert.Equal(t, "⏰ Task Reminder", embed.Title)
	require.Len(t, embed.Fields, 4)
	assert.Equal(t, "submit paper", embed.Fields[0].Value)
	assert.Equal(t, "none", embed.Fields[1].Value, "empty description uses placeholder")
	assert.Equal(t, "2 days 1 hours", embed.Fields[3].Value)
	assert.Equal(t, 0xFFA500, embed.Color)
	assert.Equal(t, now.Format(time.RFC3339), embed.Timestamp)
}

func TestBuildReminderEmbedUrgentColor(t *testing.T) {
	now := time.Now()
	task := model.Task{
		Title:       "call dentist",
		Description: "reschedule",
		DeadlineMs:  now.Add(3 * time.Hour).UnixMilli(),
	}

	embed := discord.BuildReminderEmbed(task, now)
	assert.Equal(t, 0xFF0000, embed.Color, "deadline inside 24h is urgent")
	assert.Equal(t, "reschedule", embed.Fields[1].Value)
}

func TestBuildReminderEmbedPastDeadlineClampsToZero(t *testing.T) {
	now := time.Now()
	task := model.Task{Title: "late", DeadlineMs: now.Add(-time.Hour).UnixMilli()}

	embed := discord.BuildReminderEmbed(task, now)
	assert.Equal(t, "0 minutes", embed.Fields[3].Value)
}

func TestWebhookSenderDeliversEmbedPayload(t *testing.T) {
	var got struct {
		Embeds []discord.Embed `json:"embeds"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sender := discord.NewWebhookSender(func() string { return srv.URL })

	task := model.Task{Title: "demo", DeadlineMs: time.Now().Add(time.Hour).UnixMilli()}
	err := sender.Send(context.Background(), task, model.Reminder{})
	require.NoError(t, err)

	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "⏰ Task Reminder", got.Embeds[0].Title)
}

func TestWebhookSenderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	sender := discord.NewWebhookSender(func() string { return srv.URL })

	err := sender.Send(context.Background(), model.Task{Title: "x"}, model.Reminder{})
	require.Error(t, err)

	var deliveryErr *discord.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
	assert.Equal(t, http.StatusInternalServerError, deliveryErr.Status)
}

func TestWebhookSenderNetworkError(t *testing.T) {
	sender := discord.NewWebhookSender(func() string { return "http://127.0.0.1:1/api/webhooks/x" })

	err := sender.Send(context.Background(), model.Task{Title: "x"}, model.Reminder{})
	var deliveryErr *discord.DeliveryError
	require.ErrorAs(t, err, &deliveryErr)
}

func TestValidWebhookURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"https://discord.com/api/webhooks/123/token", true},
		{"https://ptb.discord.com/api/webhooks/123/token", true},
		{"https://discord.com/api/channels/123", false},
		{"https://example.com/api/webhooks/123/token", false},
		{"https://evil-discord.com/api/webhooks/123/token", false},
		{"ftp://discord.com/api/webhooks/123/token", false},
		{"not a url", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, discord.ValidWebhookURL(tt.url), tt.url)
	}
}
