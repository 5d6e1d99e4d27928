package pricing

import "github.com/rag2504/box-host/internal/slot"

// Money is an amount in integer minor currency units.
type Money int64

const (
	// DefaultFallbackRate is charged per hour when a ground has neither a
	// matching rate range nor a flat rate.
	DefaultFallbackRate Money = 500
	// DefaultFeeBasisPoints is the convenience fee, 200bp = 2%.
	DefaultFeeBasisPoints int64 = 200
)

// RateRange is one tier of a ground's price table. Start > End means the
// range wraps past midnight (e.g. 18:00-06:00).
type RateRange struct {
	Start   slot.TimeOfDay `json:"start"`
	End     slot.TimeOfDay `json:"end"`
	PerHour Money          `json:"perHour"`
}

// Matches reports whether t falls inside the range.
func (r RateRange) Matches(t slot.TimeOfDay) bool {
	if r.Start < r.End {
		return r.Start <= t && t < r.End
	}
	if r.Start > r.End {
		return t >= r.Start || t < r.End
	}
	return false
}

// Table is the pricing view of a ground.
type Table struct {
	Ranges   []RateRange `json:"ranges"`
	FlatRate Money       `json:"flatRate"`
	Discount Money       `json:"discount"`
}

// Breakdown is the priced result for one interval.
type Breakdown struct {
	Rate     Money `json:"rate"`
	Base     Money `json:"base"`
	Discount Money `json:"discount"`
	Fee      Money `json:"fee"`
	Total    Money `json:"total"`
}

// Resolver prices intervals against a Table.
type Resolver struct {
	Fallback       Money
	FeeBasisPoints int64
}

// NewResolver substitutes the defaults for a non-positive fallback and an
// unset (zero) fee. A negative fee disables the fee.
func NewResolver(fallback Money, feeBasisPoints int64) Resolver {
	if fallback <= 0 {
		fallback = DefaultFallbackRate
	}
	if feeBasisPoints == 0 {
		feeBasisPoints = DefaultFeeBasisPoints
	}
	if feeBasisPoints < 0 {
		feeBasisPoints = 0
	}
	return Resolver{Fallback: fallback, FeeBasisPoints: feeBasisPoints}
}

// ResolveRate returns the hourly rate that applies at start. The first
// matching range wins; otherwise the flat rate, otherwise the fallback.
func (r Resolver) ResolveRate(t Table, start slot.TimeOfDay) Money {
	for _, rr := range t.Ranges {
		if rr.Matches(start) {
			return rr.PerHour
		}
	}
	if t.FlatRate > 0 {
		return t.FlatRate
	}
	return r.Fallback
}

// Price computes the breakdown for iv. The whole interval is charged at the
// rate in force at its start, even when it crosses into another tier.
func (r Resolver) Price(t Table, iv slot.Interval) Breakdown {
	rate := r.ResolveRate(t, iv.Start)
	base := Money(divRoundHalfUp(int64(rate)*int64(iv.Minutes()), 60))

	discount := t.Discount
	if discount < 0 {
		discount = 0
	}
	if discount > base {
		discount = base
	}

	fee := Money(divRoundHalfUp(int64(base-discount)*r.FeeBasisPoints, 10000))
	return Breakdown{
		Rate:     rate,
		Base:     base,
		Discount: discount,
		Fee:      fee,
		Total:    base - discount + fee,
	}
}

// divRoundHalfUp divides non-negative n by positive d, rounding halves up.
func divRoundHalfUp(n, d int64) int64 {
	return (2*n + d) / (2 * d)
}
