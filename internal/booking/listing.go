package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rag2504/box-host/internal/model"
	"github.com/rag2504/box-host/internal/store"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListQuery selects one user's reservations. Page counts from 1; zero values
// fall back to the first page of DefaultPageSize rows.
type ListQuery struct {
	UserID string
	Status model.Status
	Page   int
	Limit  int
}

// Listing is one page of a user's reservations, newest first.
type Listing struct {
	Reservations []model.Reservation
	Page         int
	Limit        int
	Total        int64
	Pages        int
}

// ListForUser pages through the reservations made by one user across the
// durable and the external store.
func (c *Controller) ListForUser(ctx context.Context, q ListQuery) (Listing, error) {
	userID := strings.TrimSpace(q.UserID)
	if userID == "" {
		return Listing{}, reject(ErrInvalidQuery, "", errors.New("user id is required"))
	}
	status := model.Status(strings.ToLower(strings.TrimSpace(string(q.Status))))
	if status != "" && !status.Valid() {
		return Listing{}, reject(ErrInvalidQuery, "", fmt.Errorf("unknown status %q", q.Status))
	}
	page, limit := q.Page, q.Limit
	if page < 1 {
		page = 1
	}
	switch {
	case limit < 1:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	offset := (page - 1) * limit

	ctx, cancel := c.storageContext(ctx)
	defer cancel()

	// Each store returns its first offset+limit rows; the page is cut from
	// their merge.
	var (
		merged []model.Reservation
		total  int64
	)
	for _, st := range []store.Store{c.durable, c.external} {
		if st == nil {
			continue
		}
		rows, n, err := st.ListReservations(ctx, userID, status, 0, offset+limit)
		if err != nil {
			return Listing{}, reject(ErrStorageUnavailable, "", err)
		}
		merged = append(merged, rows...)
		total += n
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].ID > merged[j].ID
		}
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	out := []model.Reservation{}
	if offset < len(merged) {
		out = merged[offset:min(offset+limit, len(merged))]
	}
	return Listing{
		Reservations: out,
		Page:         page,
		Limit:        limit,
		Total:        total,
		Pages:        int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}
