package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/shadowchat/internal/config"
	"github.com/vovakirdan/shadowchat/internal/core"
	"github.com/vovakirdan/shadowchat/internal/store"
)

const maxFrameBytes = 1 << 20

// NewServer builds the HTTP server with the REST routes, /ws, /health and
// /metrics. The hub must be running.
func NewServer(cfg config.DevServer, hub *Hub, st store.RoomStore, metrics *Metrics, logger *zerolog.Logger) (*http.Server, error) {
	rest, err := NewRESTHandlers(st, cfg.UploadDir, cfg.MaxUploadBytes, metrics, logger)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.GET("/validateId", rest.ValidateID)
	router.POST("/createShadow", rest.CreateShadow)
	router.GET("/checkId", rest.CheckID)
	router.GET("/validatePass", rest.ValidatePass)
	router.GET("/activateServer", rest.Activate)
	router.POST("/uploadedImage", rest.UploadImage)
	router.GET("/images/:name", rest.Image)

	// The websocket handshake hijacks the connection after writing its
	// headers, which gin's response writer refuses, so /ws stays off the router.
	mux := http.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, maxFrameBytes, logger))
	mux.Handle("/", router)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}, nil
}

// SeedGeneral creates the general room unless it already exists. It has no
// usable password; the general flow never checks one.
func SeedGeneral(ctx context.Context, st store.RoomStore) error {
	_, err := st.CreateRoom(ctx, core.GeneralRoom, "")
	if err != nil && !errors.Is(err, store.ErrConflict) {
		return fmt.Errorf("seed general room: %w", err)
	}
	return nil
}
