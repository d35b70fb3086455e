package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crmsync/internal/handler"
	"crmsync/pkg/mq"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(syncHandler *handler.SyncHandler, jwtSecret string, db *pgxpool.Pool, publisher *mq.Publisher) *Router {
	r := gin.Default()
	r.Use(TraceMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		if publisher != nil && !publisher.IsConnected() {
			c.JSON(500, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.POST("/accounts/:id/sync", syncHandler.SyncAccount)
		auth.POST("/accounts/:id/verify", syncHandler.VerifyAccount)
		auth.POST("/sync-all", syncHandler.SyncAll)
		auth.POST("/organizations/:id/sync", syncHandler.SyncOrganization)
		auth.POST("/organizations/:id/channels/sync", syncHandler.SyncOrganizationChannels)
		auth.POST("/channels/:id/sync", syncHandler.SyncChannel)
		auth.POST("/test-connection", syncHandler.TestConnection)
		auth.POST("/cleanup", syncHandler.Cleanup)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
