// Package analytics implements filtering, aggregation and dashboard
// insight computations over a loaded sales table. All operations are
// read-only; results are fresh slices and never alias table internals.
package analytics

import (
	"rxpulse/internal/dataset"
)

// Criteria selects a subset of records. A nil slice means the dimension
// is unconstrained; an empty non-nil slice selects nothing. Price bounds
// are inclusive and optional.
type Criteria struct {
	Cities   []string `json:"cities,omitempty"`
	Months   []string `json:"months,omitempty"`
	Diseases []string `json:"diseases,omitempty"`

	PriceMin *float64 `json:"price_min,omitempty"`
	PriceMax *float64 `json:"price_max,omitempty"`
}

// Empty reports whether the criteria constrain nothing.
func (c Criteria) Empty() bool {
	return c.Cities == nil && c.Months == nil && c.Diseases == nil &&
		c.PriceMin == nil && c.PriceMax == nil
}

// Filter returns the records matching all criteria, preserving load
// order. An inverted price range (min above max) matches nothing.
func Filter(table *dataset.Table, criteria Criteria) []dataset.Record {
	records := table.Records()
	if criteria.Empty() {
		out := make([]dataset.Record, len(records))
		copy(out, records)
		return out
	}

	if criteria.PriceMin != nil && criteria.PriceMax != nil && *criteria.PriceMin > *criteria.PriceMax {
		return []dataset.Record{}
	}

	cities := memberSet(criteria.Cities)
	months := memberSet(criteria.Months)
	diseases := memberSet(criteria.Diseases)

	out := make([]dataset.Record, 0, len(records))
	for _, rec := range records {
		if !matches(cities, rec.City) || !matches(months, rec.Month) || !matches(diseases, rec.Disease) {
			continue
		}
		if criteria.PriceMin != nil && rec.Price < *criteria.PriceMin {
			continue
		}
		if criteria.PriceMax != nil && rec.Price > *criteria.PriceMax {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// memberSet builds a lookup set, keeping the nil/empty distinction:
// a nil input returns a nil map, meaning no constraint.
func memberSet(values []string) map[string]struct{} {
	if values == nil {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func matches(set map[string]struct{}, value string) bool {
	if set == nil {
		return true
	}
	_, ok := set[value]
	return ok
}
