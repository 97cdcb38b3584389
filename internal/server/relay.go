package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskbot/internal/discord"
)

// handleRelay re-issues the incoming request server-side against a
// Discord webhook, a same-origin pass-through so browser clients avoid
// cross-origin restrictions. Method, content type, and body are
// forwarded unchanged; the upstream status and body come straight back.
// The target defaults to the configured webhook and, when supplied
// explicitly, must still look like a Discord webhook.
func (s *Server) handleRelay(c *gin.Context) {
	target := c.Query("target")
	if target != "" && !discord.ValidWebhookURL(target) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a Discord webhook URL"})
		return
	}
	if target == "" {
		// The stored webhook was validated when it was accepted.
		target = s.settings.WebhookURL()
	}
	if target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no relay target configured"})
		return
	}

	req, err := http.NewRequestWithContext(
		c.Request.Context(), c.Request.Method, target, c.Request.Body,
	)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "building relay request"})
		return
	}
	if ct := c.GetHeader("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}

	resp, err := s.relayClient.Do(req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "relay delivery failed"})
		return
	}
	defer resp.Body.Close()

	c.Status(resp.StatusCode)
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		c.Header("Content-Type", ct)
	}
	io.Copy(c.Writer, resp.Body)
}
