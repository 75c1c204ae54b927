package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vaultstream/vaultstream/internal/config"
	"github.com/vaultstream/vaultstream/internal/hlsserver"
)

// NewRouter wires the JSON API group and the streaming group as two
// structurally separate route trees (spec §9 Open Question #3: a real
// deployment's rate limiter attaches to one, not the other).
func NewRouter(h *Handlers, streamServer *hlsserver.Server, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.MaxMultipartMemory = cfg.MaxUploadMiB << 20

	api := r.Group("/api")
	{
		videos := api.Group("/videos")
		videos.Use(maxBodySize(cfg.MaxUploadMiB << 20))
		videos.POST("/upload", RequireAuth(cfg.JWTSecret), h.Upload)
		videos.GET("/:id", OptionalAuth(cfg.JWTSecret), h.GetMetadata)
		videos.POST("/:id/access", OptionalAuth(cfg.JWTSecret), h.RequestAccess)
		videos.DELETE("/:id", RequireAuth(cfg.JWTSecret), h.Delete)
	}

	stream := api.Group("/stream")
	streamServer.RegisterRoutes(stream)

	return r
}

func maxBodySize(limitBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limitBytes)
		c.Next()
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowAll {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
