package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/rag2504/box-host/internal/booking"
	"github.com/rag2504/box-host/internal/mw"
)

// Options tunes the router.
type Options struct {
	RateLimitPerSec float64
	RateLimitBurst  int
	CacheTTL        time.Duration
	// Ping reports database health for /healthz. Nil always reports ok.
	Ping func(ctx context.Context) error
}

// NewRouter creates and configures a new Gin router.
func NewRouter(bookings *booking.Controller, opts Options) *gin.Engine {
	r := gin.Default()

	if opts.RateLimitPerSec <= 0 {
		opts.RateLimitPerSec = 10
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 5
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}

	cacheStore := mw.NewResponseCache(opts.CacheTTL)
	handler := NewHandler(bookings, cacheStore, opts.Ping)

	rateLimiter := mw.RateLimiter(rate.Limit(opts.RateLimitPerSec), opts.RateLimitBurst)
	caching := mw.Cache(cacheStore, availabilityCacheKey)

	r.GET("/healthz", handler.Health)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/grounds/:ground_id/bookings", handler.CreateBooking)
		api.GET("/grounds/:ground_id/availability", caching, handler.GetAvailability)

		api.GET("/bookings", handler.ListBookings)
		api.GET("/bookings/:id", handler.GetBooking)
		api.GET("/bookings/:id/refund", handler.GetRefundQuote)
		api.PATCH("/bookings/:id/status", handler.UpdateStatus)
	}

	return r
}
