package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rag2504/box-host/config"
	"github.com/rag2504/box-host/internal/parse"
	"github.com/rag2504/box-host/internal/pricing"
)

// EntriesFromConfig converts the configured external grounds. Slugs must be
// unique and non-numeric, since numeric ids always resolve to the database.
func EntriesFromConfig(grounds []config.ExternalGround, defaultCurrency string) ([]Entry, error) {
	seen := make(map[string]bool, len(grounds))
	out := make([]Entry, 0, len(grounds))

	for i, g := range grounds {
		slug := strings.TrimSpace(g.ID)
		if slug == "" {
			return nil, fmt.Errorf("catalog.external[%d]: id is required", i)
		}
		if _, err := strconv.ParseInt(slug, 10, 64); err == nil {
			return nil, fmt.Errorf("catalog.external[%d]: id %q must not be numeric", i, slug)
		}
		if seen[slug] {
			return nil, fmt.Errorf("catalog.external[%d]: duplicate id %q", i, slug)
		}
		seen[slug] = true

		if g.Capacity < 0 || g.FlatRate < 0 || g.Discount < 0 {
			return nil, fmt.Errorf("catalog.external[%d]: capacity, flat_rate and discount must not be negative", i)
		}

		ranges := make([]pricing.RateRange, 0, len(g.Rates))
		for j, r := range g.Rates {
			start, err := parse.ParseTimeOfDay(r.Start)
			if err != nil {
				return nil, fmt.Errorf("catalog.external[%d].rates[%d].start: %w", i, j, err)
			}
			end, err := parse.ParseTimeOfDay(r.End)
			if err != nil {
				return nil, fmt.Errorf("catalog.external[%d].rates[%d].end: %w", i, j, err)
			}
			if r.PerHour <= 0 {
				return nil, fmt.Errorf("catalog.external[%d].rates[%d]: per_hour must be positive", i, j)
			}
			ranges = append(ranges, pricing.RateRange{Start: start, End: end, PerHour: pricing.Money(r.PerHour)})
		}

		currency := g.Currency
		if currency == "" {
			currency = defaultCurrency
		}
		out = append(out, Entry{
			Slug:     slug,
			Name:     g.Name,
			Capacity: g.Capacity,
			Currency: currency,
			Pricing: pricing.Table{
				Ranges:   ranges,
				FlatRate: pricing.Money(g.FlatRate),
				Discount: pricing.Money(g.Discount),
			},
		})
	}
	return out, nil
}
