package api

import (
	"context"
	"strconv"
	"strings"

	"github.com/rag2504/box-host/internal/booking"
	"github.com/rag2504/box-host/internal/mw"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	bookings *booking.Controller
	cache    *mw.ResponseCache
	ping     func(ctx context.Context) error
}

// NewHandler creates a new API handler. ping may be nil.
func NewHandler(bookings *booking.Controller, cacheStore *mw.ResponseCache, ping func(ctx context.Context) error) *Handler {
	return &Handler{
		bookings: bookings,
		cache:    cacheStore,
		ping:     ping,
	}
}

// availabilityKey names the cached availability of a ground and date.
// Numeric ids are canonicalized so "042" and "42" share an entry.
func availabilityKey(groundID, date string) string {
	groundID = strings.TrimSpace(groundID)
	if n, err := strconv.ParseInt(groundID, 10, 64); err == nil {
		groundID = strconv.FormatInt(n, 10)
	}
	return "availability:" + groundID + ":" + strings.TrimSpace(date)
}

// invalidate drops the cached availability after a write, including a
// response still being computed from a snapshot taken before the write.
func (h *Handler) invalidate(groundKey, date string) {
	if h.cache != nil {
		h.cache.Invalidate(availabilityKey(groundKey, date))
	}
}
