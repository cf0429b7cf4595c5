package analytics

import (
	"fmt"
	"sort"

	"rxpulse/internal/dataset"
	apperrors "rxpulse/internal/errors"
)

// Op is an aggregation operation.
type Op string

const (
	OpSum  Op = "sum"
	OpMean Op = "mean"
)

// Group-by dimensions accept the dataset's categorical column names.
var groupKeys = map[string]func(dataset.Record) string{
	dataset.ColCity:     func(r dataset.Record) string { return r.City },
	dataset.ColMonth:    func(r dataset.Record) string { return r.Month },
	dataset.ColDisease:  func(r dataset.Record) string { return r.Disease },
	dataset.ColMedicine: func(r dataset.Record) string { return r.Medicine },
}

// Metrics accept the dataset's numeric column names, derived columns
// included.
var metricValues = map[string]func(dataset.Record) float64{
	dataset.ColOrders:   func(r dataset.Record) float64 { return float64(r.Orders) },
	dataset.ColPrice:    func(r dataset.Record) float64 { return r.Price },
	"Price_Difference":  func(r dataset.Record) float64 { return r.PriceDifference },
	"Price_Ratio":       func(r dataset.Record) float64 { return r.PriceRatio },
	"Revenue":           func(r dataset.Record) float64 { return r.Revenue },
	"Profit_Margin":     func(r dataset.Record) float64 { return r.ProfitMargin },
	"Total_Profit":      func(r dataset.Record) float64 { return r.TotalProfit },
	"Competitor_Price":  func(r dataset.Record) float64 { return r.CompetitorPrice },
}

// GroupColumns returns the accepted group-by dimensions, sorted.
func GroupColumns() []string {
	return sortedKeys(groupKeys)
}

// MetricColumns returns the accepted metric columns, sorted.
func MetricColumns() []string {
	return sortedKeys(metricValues)
}

// Group is one aggregation bucket.
type Group struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// Aggregate groups records by a categorical column and reduces a numeric
// column with op. Groups come back sorted by key so output is stable.
// Unknown columns and operations are validation errors.
func Aggregate(records []dataset.Record, groupBy, metric string, op Op) ([]Group, error) {
	keyOf, ok := groupKeys[groupBy]
	if !ok {
		return nil, apperrors.NewAppValidationError(
			fmt.Sprintf("unknown group-by column %q, expected one of %v", groupBy, GroupColumns()))
	}
	valueOf, ok := metricValues[metric]
	if !ok {
		return nil, apperrors.NewAppValidationError(
			fmt.Sprintf("unknown metric column %q, expected one of %v", metric, MetricColumns()))
	}
	if op != OpSum && op != OpMean {
		return nil, apperrors.NewAppValidationError(
			fmt.Sprintf("unknown aggregation %q, expected %q or %q", op, OpSum, OpMean))
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, rec := range records {
		key := keyOf(rec)
		sums[key] += valueOf(rec)
		counts[key]++
	}

	groups := make([]Group, 0, len(sums))
	for key, sum := range sums {
		value := sum
		if op == OpMean {
			value = sum / float64(counts[key])
		}
		groups = append(groups, Group{Key: key, Value: value, Count: counts[key]})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
