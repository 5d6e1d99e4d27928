package booking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rag2504/box-host/internal/model"
	"github.com/rag2504/box-host/internal/pricing"
	"github.com/rag2504/box-host/internal/slot"
)

func TestRefundFor(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 2026-10-20 18:00 IST is 12:30 UTC.
	confirmed := Snapshot{Status: model.StatusConfirmed, Date: "2026-10-20", Start: slot.At(18, 0), Total: 2041}

	testCases := []struct {
		name     string
		snapshot Snapshot
		now      time.Time
		expected pricing.Money
	}{
		{name: "More than 4h", snapshot: confirmed, now: time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC), expected: 2041},
		{name: "Exactly 4h", snapshot: confirmed, now: time.Date(2026, 10, 20, 8, 30, 0, 0, time.UTC), expected: 2041},
		{name: "Just under 4h", snapshot: confirmed, now: time.Date(2026, 10, 20, 8, 30, 1, 0, time.UTC), expected: 1021},
		{name: "Exactly 2h", snapshot: confirmed, now: time.Date(2026, 10, 20, 10, 30, 0, 0, time.UTC), expected: 1021},
		{name: "Under 2h", snapshot: confirmed, now: time.Date(2026, 10, 20, 11, 0, 0, 0, time.UTC), expected: 0},
		{name: "Already started", snapshot: confirmed, now: time.Date(2026, 10, 20, 13, 0, 0, 0, time.UTC), expected: 0},
		{name: "Pending", snapshot: Snapshot{Status: model.StatusPending, Date: "2026-10-20", Start: slot.At(18, 0), Total: 2041}, now: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), expected: 0},
		{name: "Cancelled", snapshot: Snapshot{Status: model.StatusCancelled, Date: "2026-10-20", Start: slot.At(18, 0), Total: 2041}, now: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), expected: 0},
		{name: "Corrupt date", snapshot: Snapshot{Status: model.StatusConfirmed, Date: "20-10-2026", Total: 2041}, now: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), expected: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, RefundFor(tc.snapshot, tc.now, ist))
		})
	}
}

func TestCanBeCancelled(t *testing.T) {
	s := Snapshot{Status: model.StatusPending, Date: "2026-10-20", Start: slot.At(10, 0)}
	before := time.Date(2026, 10, 20, 9, 59, 0, 0, time.UTC)
	atStart := time.Date(2026, 10, 20, 10, 0, 0, 0, time.UTC)

	assert.True(t, CanBeCancelled(s, before, time.UTC))
	assert.False(t, CanBeCancelled(s, atStart, time.UTC))

	s.Status = model.StatusCompleted
	assert.False(t, CanBeCancelled(s, before, time.UTC))
}

func TestStartsAt(t *testing.T) {
	start, err := StartsAt(Snapshot{Date: "2026-10-20", Start: slot.At(23, 30)}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 20, 23, 30, 0, 0, time.UTC), start)

	_, err = StartsAt(Snapshot{Date: "not-a-date"}, time.UTC)
	assert.Error(t, err)
}

func TestSnapshotOf(t *testing.T) {
	s := SnapshotOf(model.Reservation{Status: model.StatusConfirmed, Date: "2026-10-20", StartMinute: 600, EndMinute: 720, Total: 2040})
	assert.Equal(t, Snapshot{Status: model.StatusConfirmed, Date: "2026-10-20", Start: slot.At(10, 0), Total: 2040}, s)
}
