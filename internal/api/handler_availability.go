package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetAvailability handles GET /api/grounds/{ground_id}/availability?date=YYYY-MM-DD.
func (h *Handler) GetAvailability(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		badRequest(c, "invalid_date", "date query parameter is required")
		return
	}

	av, err := h.bookings.QueryAvailability(c.Request.Context(), c.Param("ground_id"), date)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, av)
}

// availabilityCacheKey keys the availability cache by ground and date.
func availabilityCacheKey(c *gin.Context) string {
	if c.Query("date") == "" {
		return ""
	}
	return availabilityKey(c.Param("ground_id"), c.Query("date"))
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	if h.ping != nil {
		if err := h.ping(c.Request.Context()); err != nil {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
