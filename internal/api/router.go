package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"device-maintenance-backend/config"
	"device-maintenance-backend/internal/engine"
	"device-maintenance-backend/internal/mw"
	"device-maintenance-backend/internal/store"
)

// NewRouter creates and configures a new Gin router for the operational API.
func NewRouter(s store.Store, scheduler *engine.Scheduler, propagator *engine.Propagator, webpushOptions *webpush.Options, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, scheduler, propagator, webpushOptions)

	rateLimit := cfg.RateLimitPerSec
	if rateLimit <= 0 {
		rateLimit = 10
	}
	rateLimiter := mw.RateLimiter(rate.Limit(rateLimit), 5, cfg.RequestIPHeader)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Device availability and downtime history.
		api.GET("/devices", caching, handler.GetDevices)
		api.GET("/devices/:device_id/downtime", caching, handler.GetDeviceDowntime)

		// Work orders; status updates feed the propagation cascade.
		api.GET("/work_orders", handler.GetWorkOrders)
		api.PATCH("/work_orders/:id/status", handler.UpdateWorkOrderStatus)

		// Operational visibility.
		api.GET("/notifications", handler.GetNotifications)
		api.GET("/spare_parts", caching, handler.GetSpareParts)
		api.POST("/scheduler/run", handler.RunSchedulerTask)

		// Push subscription management.
		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
