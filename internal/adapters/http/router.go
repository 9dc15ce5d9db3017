package http

import (
	"context"
	stdhttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dkeye/roomgate/internal/adapters/signal"
	"github.com/dkeye/roomgate/internal/app/orch"
	"github.com/dkeye/roomgate/internal/auth"
	"github.com/dkeye/roomgate/internal/config"
	"github.com/dkeye/roomgate/internal/domain"
	"github.com/dkeye/roomgate/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Authenticator binds a bearer credential to a user.
type Authenticator interface {
	Authenticate(token string) (domain.UserID, error)
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return token
		}
		return ""
	}
	// Browsers cannot set headers on a websocket handshake.
	return c.Query("token")
}

// BearerAuthMiddleware rejects the request with 401 before any upgrade when
// the credential is missing or invalid.
func BearerAuthMiddleware(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := a.Authenticate(bearerToken(c))
		if err != nil {
			reason := auth.Reason(err)
			metrics.AuthRejections.WithLabelValues(reason).Inc()
			log.Info().Str("module", "adapters.http").Str("reason", reason).Str("path", c.FullPath()).Msg("rejected connect attempt")
			c.AbortWithStatusJSON(stdhttp.StatusUnauthorized, gin.H{"error": reason})
			return
		}
		c.Set(signal.UserIDKey, uid)
		c.Next()
	}
}

type Deps struct {
	Orch *orch.Orchestrator
	Auth Authenticator
	ICE  webrtc.Configuration
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	ctrl := signal.NewSignalWSController(d.Orch, signal.Settings{
		ReadLimit:       cfg.ReadLimit,
		PingPeriod:      cfg.PingPeriod,
		PongWait:        cfg.PongWait,
		WriteWait:       cfg.WriteWait,
		SendBuffer:      cfg.SendBuffer,
		AllowedOrigins:  cfg.AllowedOrigins,
		EventsPerSecond: cfg.Rate.EventsPerSecond,
		Burst:           cfg.Rate.Burst,
		ICEServers:      d.ICE.ICEServers,
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/health", healthHandler(d.Orch))
	api.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(stdhttp.StatusOK, gin.H{"iceServers": d.ICE.ICEServers})
	})

	authed := api.Group("", BearerAuthMiddleware(d.Auth))
	authed.GET("/ws", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})
	authed.GET("/topics/:kind/:id/members", membersHandler(d.Orch))

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}

func healthHandler(o *orch.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := o.Store.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Msg("health check failed")
			c.JSON(stdhttp.StatusServiceUnavailable, gin.H{"status": "unavailable", "store": "down"})
			return
		}
		c.JSON(stdhttp.StatusOK, gin.H{
			"status":      "ok",
			"store":       "up",
			"connections": o.Registry.Count(),
		})
	}
}

func membersHandler(o *orch.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, err := domain.ParseTopicKind(c.Param("kind"))
		if err != nil {
			c.JSON(stdhttp.StatusBadRequest, gin.H{"error": "unknown topic kind"})
			return
		}
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || id <= 0 {
			c.JSON(stdhttp.StatusBadRequest, gin.H{"error": "invalid topic id"})
			return
		}
		t := domain.Topic{Kind: kind, ID: id}
		c.JSON(stdhttp.StatusOK, gin.H{
			"topicId": t.ID,
			"kind":    t.Kind,
			"members": o.ListMembers(t),
		})
	}
}
