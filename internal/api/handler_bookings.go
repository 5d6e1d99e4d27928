package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rag2504/box-host/internal/booking"
	"github.com/rag2504/box-host/internal/model"
	"github.com/rag2504/box-host/internal/slot"
)

type contactPerson struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type playerDetails struct {
	TeamName      string        `json:"teamName"`
	PlayerCount   int           `json:"playerCount"`
	ContactPerson contactPerson `json:"contactPerson"`
}

type createBookingRequest struct {
	Date          string        `json:"date" binding:"required"`
	TimeSlot      string        `json:"timeSlot" binding:"required"`
	PlayerDetails playerDetails `json:"playerDetails"`
	Requirements  string        `json:"requirements"`
	UserID        string        `json:"userId"`
}

type pricingResponse struct {
	Rate     int64  `json:"rate"`
	Base     int64  `json:"base"`
	Discount int64  `json:"discount"`
	Fee      int64  `json:"fee"`
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

type reservationResponse struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	GroundID      string          `json:"groundId"`
	Date          string          `json:"date"`
	TimeSlot      string          `json:"timeSlot"`
	Status        model.Status    `json:"status"`
	UserID        string          `json:"userId,omitempty"`
	PlayerDetails playerDetails   `json:"playerDetails"`
	Requirements  string          `json:"requirements,omitempty"`
	Pricing       pricingResponse `json:"pricing"`
	ConfirmedAt   *time.Time      `json:"confirmedAt,omitempty"`
	CancelledAt   *time.Time      `json:"cancelledAt,omitempty"`
	CancelledBy   string          `json:"cancelledBy,omitempty"`
	CancelReason  string          `json:"cancelReason,omitempty"`
	RefundAmount  int64           `json:"refundAmount"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func toResponse(r model.Reservation) reservationResponse {
	iv := slot.Interval{Start: slot.TimeOfDay(r.StartMinute), End: slot.TimeOfDay(r.EndMinute)}
	return reservationResponse{
		ID:       r.ID,
		Code:     r.Code,
		GroundID: r.GroundKey,
		Date:     r.Date,
		TimeSlot: iv.String(),
		Status:   r.Status,
		UserID:   r.UserID,
		PlayerDetails: playerDetails{
			TeamName:    r.TeamName,
			PlayerCount: r.PlayerCount,
			ContactPerson: contactPerson{
				Name:  r.ContactName,
				Phone: r.ContactPhone,
				Email: r.ContactEmail,
			},
		},
		Requirements: r.Requirements,
		Pricing: pricingResponse{
			Rate:     r.Rate,
			Base:     r.Base,
			Discount: r.Discount,
			Fee:      r.Fee,
			Total:    r.Total,
			Currency: r.Currency,
		},
		ConfirmedAt:  r.ConfirmedAt,
		CancelledAt:  r.CancelledAt,
		CancelledBy:  r.CancelledBy,
		CancelReason: r.CancelReason,
		RefundAmount: r.RefundAmount,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// CreateBooking handles POST /api/grounds/{ground_id}/bookings.
func (h *Handler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "invalid request")
		return
	}

	r, err := h.bookings.TryReserve(c.Request.Context(), booking.Request{
		GroundID: c.Param("ground_id"),
		Date:     req.Date,
		TimeSlot: req.TimeSlot,
		Party: booking.Party{
			TeamName:     req.PlayerDetails.TeamName,
			PlayerCount:  req.PlayerDetails.PlayerCount,
			ContactName:  req.PlayerDetails.ContactPerson.Name,
			ContactPhone: req.PlayerDetails.ContactPerson.Phone,
			ContactEmail: req.PlayerDetails.ContactPerson.Email,
		},
		UserID:       req.UserID,
		Requirements: req.Requirements,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	h.invalidate(r.GroundKey, r.Date)
	c.JSON(http.StatusCreated, toResponse(r))
}

// GetBooking handles GET /api/bookings/{id}.
func (h *Handler) GetBooking(c *gin.Context) {
	r, err := h.bookings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(r))
}

type paginationResponse struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type listBookingsResponse struct {
	Bookings   []reservationResponse `json:"bookings"`
	Pagination paginationResponse    `json:"pagination"`
}

// ListBookings handles GET /api/bookings?userId=&status=&page=&limit=.
func (h *Handler) ListBookings(c *gin.Context) {
	page, ok := positiveQuery(c, "page")
	if !ok {
		return
	}
	limit, ok := positiveQuery(c, "limit")
	if !ok {
		return
	}

	listing, err := h.bookings.ListForUser(c.Request.Context(), booking.ListQuery{
		UserID: c.Query("userId"),
		Status: model.Status(c.Query("status")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	resp := listBookingsResponse{
		Bookings: make([]reservationResponse, 0, len(listing.Reservations)),
		Pagination: paginationResponse{
			Page:  listing.Page,
			Limit: listing.Limit,
			Total: listing.Total,
			Pages: listing.Pages,
		},
	}
	for _, r := range listing.Reservations {
		resp.Bookings = append(resp.Bookings, toResponse(r))
	}
	c.JSON(http.StatusOK, resp)
}

// positiveQuery reads an optional positive integer query parameter. A
// missing parameter is 0.
func positiveQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		badRequest(c, "invalid_query", name+" must be a positive integer")
		return 0, false
	}
	return n, true
}

// GetRefundQuote handles GET /api/bookings/{id}/refund.
func (h *Handler) GetRefundQuote(c *gin.Context) {
	q, err := h.bookings.RefundQuote(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

type updateStatusRequest struct {
	Status      model.Status  `json:"status" binding:"required"`
	CancelledBy booking.Actor `json:"cancelledBy"`
	Reason      string        `json:"reason"`
}

// UpdateStatus handles PATCH /api/bookings/{id}/status.
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", "invalid request")
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")

	var (
		r   model.Reservation
		err error
	)
	switch model.Status(strings.ToLower(string(req.Status))) {
	case model.StatusConfirmed:
		r, err = h.bookings.Confirm(ctx, id)
	case model.StatusCancelled:
		by := req.CancelledBy
		if by == "" {
			by = booking.ActorUser
		}
		if !by.Valid() {
			badRequest(c, "invalid_actor", "cancelledBy must be one of user, admin, system")
			return
		}
		r, err = h.bookings.Cancel(ctx, id, by, req.Reason)
	case model.StatusCompleted:
		r, err = h.bookings.Complete(ctx, id)
	case model.StatusNoShow:
		r, err = h.bookings.MarkNoShow(ctx, id)
	default:
		badRequest(c, "invalid_status", "status must be one of confirmed, cancelled, completed, no_show")
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	h.invalidate(r.GroundKey, r.Date)
	c.JSON(http.StatusOK, toResponse(r))
}
