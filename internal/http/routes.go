package http

import (
	"time"

	"colorsnap/internal/config"
	"colorsnap/internal/http/handlers"
	"colorsnap/internal/http/middleware"
	"colorsnap/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts the health probes, metrics, the session API and the
// websocket stream.
func RegisterRoutes(r *gin.Engine, h *handlers.Handler, health *handlers.HealthHandler, cfg *config.Config) {
	r.Use(middleware.Metrics())

	// Health checks (no rate limiting)
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiWindow := time.Duration(cfg.APIRateWindowSeconds) * time.Second
	actionWindow := time.Duration(cfg.ActionRateWindowSeconds) * time.Second

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RedisRateLimit(cfg.APIRateLimit, apiWindow))
	{
		v1.POST("/session", h.CreateSession)

		auth := v1.Group("")
		auth.Use(middleware.JWT())
		auth.DELETE("/session", h.DeleteSession)
		auth.GET("/state", h.State)
		auth.GET("/history/transactions", h.TransactionHistory)
		auth.GET("/history/games", h.GameHistory)

		actionRL := middleware.ActionRateLimit(cfg.ActionRateLimit, actionWindow)
		auth.POST("/player/name", actionRL, h.SetName)
		auth.POST("/game/start", actionRL, h.StartGame)
		auth.POST("/game/submit", actionRL, h.SubmitResult)
		auth.POST("/game/end", actionRL, h.EndGame)
		auth.POST("/game/bottles/:index/click", h.ClickBottle)
		auth.POST("/game/target/show", h.ShowTarget)
	}

	r.GET("/ws", ws.HandleWS(h.Hub, h.Sessions, cfg.AllowedOrigin))
}
