package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rag2504/box-host/internal/booking"
)

func statusFor(err error) int {
	switch {
	case booking.IsInputError(err):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrGroundNotFound), errors.Is(err, booking.ErrReservationNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrNotBookable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, booking.ErrOverlap), errors.Is(err, booking.ErrConcurrent), errors.Is(err, booking.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, booking.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders a booking error as {"error", "code"} plus the
// conflicting slot for overlaps. Storage details stay in the log.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"code": booking.KindOf(err)}

	var bErr *booking.Error
	switch {
	case errors.As(err, &bErr):
		msg := strings.TrimPrefix(bErr.Kind.Error(), "booking: ")
		if bErr.Err != nil && status != http.StatusServiceUnavailable {
			msg += ": " + bErr.Err.Error()
		}
		body["error"] = msg
		if bErr.Conflict != nil {
			body["conflict"] = gin.H{"timeSlot": bErr.Conflict.String()}
		}
		if bErr.Phase != "" {
			body["phase"] = bErr.Phase
		}
	default:
		body["error"] = "internal error"
	}

	if status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, code, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg, "code": code})
}
