package analytics

import (
	"sort"

	"rxpulse/internal/dataset"
)

// Summary holds the headline KPIs of a record set.
type Summary struct {
	Records            int     `json:"records"`
	TotalRevenue       float64 `json:"total_revenue"`
	TotalOrders        int64   `json:"total_orders"`
	AvgPriceDifference float64 `json:"avg_price_difference"`
	AvgProfitMargin    float64 `json:"avg_profit_margin"`
	Degraded           bool    `json:"degraded"`
}

// Summarize computes the KPIs over records. Averages over an empty set
// are 0. The degraded flag is carried from the table so dashboards can
// mark pricing figures as defaults.
func Summarize(records []dataset.Record, degraded bool) Summary {
	s := Summary{Records: len(records), Degraded: degraded}
	if len(records) == 0 {
		return s
	}

	var diffSum, marginSum float64
	for _, rec := range records {
		s.TotalRevenue += rec.Revenue
		s.TotalOrders += rec.Orders
		diffSum += rec.PriceDifference
		marginSum += rec.ProfitMargin
	}
	s.AvgPriceDifference = diffSum / float64(len(records))
	s.AvgProfitMargin = marginSum / float64(len(records))
	return s
}

// Opportunity is a record priced below its competitor by more than the
// configured threshold.
type Opportunity struct {
	City            string  `json:"city"`
	Month           string  `json:"month"`
	Medicine        string  `json:"medicine"`
	Price           float64 `json:"price"`
	CompetitorPrice float64 `json:"competitor_price"`
	PriceDifference float64 `json:"price_difference"`
	Orders          int64   `json:"orders"`
}

// Opportunities returns records whose price difference exceeds threshold,
// sorted by difference descending. Ties keep load order.
func Opportunities(records []dataset.Record, threshold float64) []Opportunity {
	out := make([]Opportunity, 0)
	for _, rec := range records {
		if rec.PriceDifference <= threshold {
			continue
		}
		out = append(out, Opportunity{
			City:            rec.City,
			Month:           rec.Month,
			Medicine:        rec.Medicine,
			Price:           rec.Price,
			CompetitorPrice: rec.CompetitorPrice,
			PriceDifference: rec.PriceDifference,
			Orders:          rec.Orders,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PriceDifference > out[j].PriceDifference
	})
	return out
}

// Options describes the filterable domain of a table: the distinct
// values of each categorical dimension in first-seen order, and the
// observed price range.
type Options struct {
	Cities   []string `json:"cities"`
	Months   []string `json:"months"`
	Diseases []string `json:"diseases"`

	PriceMin float64 `json:"price_min"`
	PriceMax float64 `json:"price_max"`
}

// OptionsOf computes the filter domain of a table.
func OptionsOf(table *dataset.Table) Options {
	var opts Options
	seenCity := make(map[string]struct{})
	seenMonth := make(map[string]struct{})
	seenDisease := make(map[string]struct{})

	for i, rec := range table.Records() {
		if _, ok := seenCity[rec.City]; !ok {
			seenCity[rec.City] = struct{}{}
			opts.Cities = append(opts.Cities, rec.City)
		}
		if _, ok := seenMonth[rec.Month]; !ok {
			seenMonth[rec.Month] = struct{}{}
			opts.Months = append(opts.Months, rec.Month)
		}
		if _, ok := seenDisease[rec.Disease]; !ok {
			seenDisease[rec.Disease] = struct{}{}
			opts.Diseases = append(opts.Diseases, rec.Disease)
		}
		if i == 0 || rec.Price < opts.PriceMin {
			opts.PriceMin = rec.Price
		}
		if i == 0 || rec.Price > opts.PriceMax {
			opts.PriceMax = rec.Price
		}
	}
	return opts
}
