package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"recipehub/internal/infra/config"
	"recipehub/internal/infra/obs"
)

type Handlers struct {
	Connection   ConnectionHTTP
	Group        GroupHTTP
	Conversation ConversationHTTP
	Media        MediaHTTP
	Metrics      *obs.Metrics
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	if h.Metrics != nil {
		router.Use(h.Metrics.HTTPMiddleware())
	}
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	router.Use(PrincipalMiddleware())

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if h.Metrics != nil {
		router.GET("/metrics", h.Metrics.Handler())
	}

	api := router.Group("/api/v1")
	if h.Connection != nil {
		g := api.Group("/connections")
		g.POST("", h.Connection.Create)
		g.GET("", h.Connection.List)
		g.GET("/:id", h.Connection.Get)
		g.PATCH("/:id", h.Connection.UpdateStatus)
		g.DELETE("/:id", h.Connection.Delete)
		g.GET("/:id/conversation", h.Connection.Conversation)
		g.GET("/with/:userId", h.Connection.With)
		g.DELETE("/with/:userId", h.Connection.DeleteWith)
	}
	if h.Group != nil {
		g := api.Group("/groups")
		g.POST("", h.Group.Create)
		g.GET("", h.Group.List)
		g.GET("/:id", h.Group.Get)
		g.GET("/:id/conversation", h.Group.Conversation)
	}
	if h.Conversation != nil {
		g := api.Group("/conversations")
		g.POST("", h.Conversation.Create)
		g.GET("", h.Conversation.List)
		g.GET("/:id", h.Conversation.Get)
		g.POST("/:id/messages", h.Conversation.SendMessage)
		g.PATCH("/:id/messages/:messageId", h.Conversation.UpdateMessage)
		g.DELETE("/:id/messages/:messageId", h.Conversation.DeleteMessage)
		g.POST("/:id/read", h.Conversation.MarkRead)
		api.GET("/messages/:id", h.Conversation.GetMessage)
	}
	if h.Media != nil {
		api.POST("/media/images", h.Media.UploadImage)
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", HeaderUserID},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
