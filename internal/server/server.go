// Package server exposes the JSON HTTP API: task CRUD, webhook
// settings, the webhook relay, the Discord interactions endpoint, and
// a status probe.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskbot/internal/config"
	"taskbot/internal/dispatch"
	"taskbot/internal/discord"
	"taskbot/internal/store"
)

// Server is the HTTP API server.
type Server struct {
	store        store.Repository
	settings     *config.Settings
	dispatcher   *dispatch.Dispatcher
	interactions *discord.InteractionHandler
	publicKey    func() string
	logger       *slog.Logger
	router       *gin.Engine
	relayClient  *http.Client
}

// Deps carries the collaborators the server needs.
type Deps struct {
	Store        store.Repository
	Settings     *config.Settings
	Dispatcher   *dispatch.Dispatcher
	Interactions *discord.InteractionHandler

	// PublicKey returns the hex-encoded ed25519 key used to verify
	// inbound interactions. Empty disables the interactions endpoint.
	PublicKey func() string

	Logger *slog.Logger
}

// New creates the server and registers its routes.
func New(deps Deps) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		store:        deps.Store,
		settings:     deps.Settings,
		dispatcher:   deps.Dispatcher,
		interactions: deps.Interactions,
		publicKey:    deps.PublicKey,
		logger:       deps.Logger,
		router:       router,
		relayClient:  &http.Client{Timeout: 10 * time.Second},
	}
	if s.publicKey == nil {
		s.publicKey = func() string { return "" }
	}

	api := router.Group("/api")
	{
		api.POST("/tasks", s.handleCreateTask)
		api.GET("/tasks", s.handleListTasks)
		api.GET("/tasks/:id", s.handleGetTask)
		api.POST("/tasks/:id/complete", s.handleCompleteTask)
		api.DELETE("/tasks/:id", s.handleDeleteTask)

		api.GET("/settings/webhook", s.handleGetWebhook)
		api.PUT("/settings/webhook", s.handleSetWebhook)

		api.POST("/relay", s.handleRelay)
		api.POST("/interactions", s.handleInteraction)

		api.GET("/status", s.handleStatus)
	}

	return s
}

// Router returns the underlying gin engine, used by tests and by Run.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server on addr.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
