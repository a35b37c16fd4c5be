package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/babble-server/internal/config"
)

// NewServer builds the admin and websocket front end.
func NewServer(sessions Sessions, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	api := NewAPIHandlers(sessions, logger)
	router.GET("/health", api.Health)
	router.GET("/stats", api.Stats)
	router.GET("/clients", api.Clients)
	router.GET("/ws", gin.WrapH(NewWSHandler(sessions, WSOptions{
		MaxMessage:   int64(cfg.MaxMessageBytes),
		WriteTimeout: cfg.WriteTimeout,
	}, logger)))

	return &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
