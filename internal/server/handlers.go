package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"taskbot/internal/discord"
	"taskbot/internal/dispatch"
	"taskbot/internal/model"
	"taskbot/internal/store"
)

// createTaskRequest is the JSON body for POST /api/tasks.
type createTaskRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	DeadlineMs    int64  `json:"deadline_ms"`
	ReminderCount int    `json:"reminder_count"`
}

// listTasksResponse is the JSON envelope for GET /api/tasks.
type listTasksResponse struct {
	Tasks []model.Task `json:"tasks"`
	Total int          `json:"total"`
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	task, err := s.store.CreateTask(c.Request.Context(), store.CreateTaskInput{
		Title:         req.Title,
		Description:   req.Description,
		DeadlineMs:    req.DeadlineMs,
		ReminderCount: req.ReminderCount,
	})
	if err != nil {
		s.writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleListTasks(c *gin.Context) {
	var filter store.TaskFilter
	switch c.Query("status") {
	case "":
	case model.StatusActive:
		status := model.StatusActive
		filter.Status = &status
	case model.StatusCompleted:
		status := model.StatusCompleted
		filter.Status = &status
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "0")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
		filter.Offset = offset
	}

	tasks, err := s.store.ListTasks(c.Request.Context(), filter)
	if err != nil {
		s.writeStoreError(c, err)
		return
	}
	total, err := s.store.CountTasks(c.Request.Context(), filter)
	if err != nil {
		s.writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, listTasksResponse{Tasks: tasks, Total: total})
}

func (s *Server) handleGetTask(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	task, err := s.store.GetTask(c.Request.Context(), id)
	if err != nil {
		s.writeStoreError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

func (s *Server) handleCompleteTask(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := s.store.CompleteTask(c.Request.Context(), id); err != nil {
		s.writeStoreError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := s.store.DeleteTask(c.Request.Context(), id); err != nil {
		s.writeStoreError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// webhookSettings is the body for the webhook settings endpoints.
type webhookSettings struct {
	WebhookURL string `json:"webhook_url"`
}

func (s *Server) handleGetWebhook(c *gin.Context) {
	c.JSON(http.StatusOK, webhookSettings{WebhookURL: s.settings.WebhookURL()})
}

func (s *Server) handleSetWebhook(c *gin.Context) {
	var req webhookSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	// Clearing the webhook disables delivery; anything else must look
	// like a Discord channel webhook before it is accepted.
	if req.WebhookURL != "" && !discord.ValidWebhookURL(req.WebhookURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a Discord webhook URL"})
		return
	}

	if err := s.settings.SetWebhookURL(req.WebhookURL); err != nil {
		s.logger.Error("persisting webhook URL failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not persist settings"})
		return
	}

	c.JSON(http.StatusOK, webhookSettings{WebhookURL: req.WebhookURL})
}

func (s *Server) handleInteraction(c *gin.Context) {
	key := s.publicKey()
	if key == "" {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "interactions not configured"})
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reading body"})
		return
	}

	sig := c.GetHeader("X-Signature-Ed25519")
	ts := c.GetHeader("X-Signature-Timestamp")
	if !discord.VerifySignature(key, sig, ts, body) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid request signature"})
		return
	}

	var in discord.Interaction
	if err := json.Unmarshal(body, &in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	c.JSON(http.StatusOK, s.interactions.Handle(c.Request.Context(), in))
}

// statusResponse reports store connectivity and dispatcher progress.
type statusResponse struct {
	Store    string         `json:"store"`
	Dispatch dispatchStatus `json:"dispatch"`
}

type dispatchStatus struct {
	Scanning   bool      `json:"scanning"`
	LastScan   time.Time `json:"last_scan"`
	Dispatched int       `json:"dispatched"`
	LastError  string    `json:"last_error,omitempty"`
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := statusResponse{Store: "ok"}

	if _, err := s.store.CountTasks(c.Request.Context(), store.TaskFilter{}); err != nil {
		resp.Store = "unavailable"
	}

	if s.dispatcher != nil {
		st := s.dispatcher.Status()
		resp.Dispatch = dispatchStatus{
			Scanning:   st.State == dispatch.Scanning,
			LastScan:   st.LastScan,
			Dispatched: st.Dispatched,
		}
		if st.LastError != nil {
			resp.Dispatch.LastError = st.LastError.Error()
		}
	}

	c.JSON(http.StatusOK, resp)
}

// writeStoreError maps repository errors onto HTTP statuses.
func (s *Server) writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
