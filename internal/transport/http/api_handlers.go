package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/babble-server/internal/core"
	"github.com/vovakirdan/babble-server/internal/server"
)

// Sessions is the part of the babble server the HTTP surface needs.
type Sessions interface {
	ServeConn(ctx context.Context, conn core.Conn)
	Stats() server.Stats
	Clients() []string
}

// APIHandlers provides the admin endpoints.
type APIHandlers struct {
	sessions Sessions
	log      *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(sessions Sessions, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		sessions: sessions,
		log:      logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Health reports liveness.
// GET /health
func (h *APIHandlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Stats reports registry and queue occupancy.
// GET /stats
func (h *APIHandlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.Stats())
}

// ClientsResponse lists logged-in clients.
type ClientsResponse struct {
	Clients []string `json:"clients"`
}

// Clients lists the logged-in clients by name.
// GET /clients
func (h *APIHandlers) Clients(c *gin.Context) {
	c.JSON(http.StatusOK, ClientsResponse{Clients: h.sessions.Clients()})
}
