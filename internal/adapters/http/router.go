// Package http wires the gin router hosting the websocket endpoint and a
// small operational API.
package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/songbooklive/songbook/internal/adapters/ws"
	"github.com/songbooklive/songbook/internal/app"
	"github.com/songbooklive/songbook/internal/config"
)

func SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	ctl *ws.Controller,
	sessions *app.SessionRegistry,
	conns *app.ConnectionRegistry,
) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/api/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"sessions":    sessions.Len(),
			"connections": conns.Len(),
		})
	})

	r.GET("/ws", func(c *gin.Context) {
		ctl.Handle(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
