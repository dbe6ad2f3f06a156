package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"checkin-desk-backend/config"
	"checkin-desk-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig, registry *prometheus.Registry) *gin.Engine {
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSAllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORSAllowOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	r.Use(cors.New(corsConfig))

	r.GET("/health", h.GetHealth)
	if registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateBurst, mw.ClientDeskKey, h.log)
	frameLimiter := mw.RateLimiter(rate.Limit(cfg.FrameRateLimitPerSec), cfg.FrameRateBurst, mw.ClientDeskKey, h.log)

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	caching := mw.Cache(cache.New(ttl, 2*ttl), ttl)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/config", h.GetConfig)
		api.GET("/instances", caching, GetInstances(h.gw))

		api.POST("/desks", h.CreateDesk)
		api.DELETE("/desks/:id", h.DeleteDesk)

		desks := api.Group("/desks/:id")
		desks.GET("", h.withDesk(h.GetDesk))
		desks.GET("/notices", h.withDesk(h.GetNotices))
		desks.PUT("/capabilities", h.withDesk(h.PutCapabilities))

		desks.POST("/instances", h.withDesk(h.LoadInstances))
		desks.POST("/instance", h.withDesk(h.SelectInstance))
		desks.POST("/session/start", h.withDesk(h.StartSession))
		desks.POST("/session/stop", h.withDesk(h.StopSession))
		desks.POST("/session/reset", h.withDesk(h.ResetSession))

		desks.POST("/code", h.withDesk(h.SubmitCode))
		desks.POST("/confirm", h.withDesk(h.Confirm))
		desks.POST("/cancel", h.withDesk(h.Cancel))
		desks.POST("/undo", h.withDesk(h.Undo))

		desks.POST("/search", h.withDesk(h.Search))
		desks.POST("/search/select", h.withDesk(h.SelectSearchResult))
		desks.POST("/search/page", h.withDesk(h.Page))
		desks.DELETE("/search", h.withDesk(h.ClearSearch))

		desks.POST("/scan", h.withDesk(h.Scan))
		desks.POST("/scanner/result", h.withDesk(h.ScannerResult))
		desks.POST("/camera/error", h.withDesk(h.CameraError))
		desks.POST("/camera/stop", h.withDesk(h.StopCamera))

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	frames := r.Group("/api/desks/:id/camera", frameLimiter)
	frames.POST("/frame", h.withDesk(h.CameraFrame))

	return r
}
