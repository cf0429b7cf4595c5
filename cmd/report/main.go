// Command report loads the sales dataset and writes insight reports to
// disk: the KPI summary, a revenue aggregation and the pricing
// opportunity list.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"rxpulse/internal/analytics"
	"rxpulse/internal/dataset"
	"rxpulse/internal/exporter"
)

func main() {
	datasetPath := flag.String("dataset", "data/medicine_sales.csv", "path to the sales dataset (CSV or XLSX)")
	outputDir := flag.String("out", "reports", "output directory for generated reports")
	groupBy := flag.String("group-by", dataset.ColCity, "aggregation dimension")
	metric := flag.String("metric", "Revenue", "aggregation metric")
	op := flag.String("op", "sum", "aggregation operation (sum or mean)")
	marginRate := flag.Float64("margin-rate", 0.3, "assumed profit share of the unit price")
	threshold := flag.Float64("opportunity-threshold", 5, "minimum price difference for an opportunity")
	cities := flag.String("cities", "", "comma-separated city filter")
	months := flag.String("months", "", "comma-separated month filter")
	diseases := flag.String("diseases", "", "comma-separated disease filter")
	flag.Parse()

	ctx := context.Background()

	loader := dataset.NewLoader(dataset.LoaderConfig{MarginRate: *marginRate}, slog.Default())
	table, err := loader.Load(ctx, *datasetPath)
	if err != nil {
		slog.Error("failed to load dataset", "path", *datasetPath, "error", err)
		os.Exit(1)
	}
	if table.Degraded() {
		slog.Warn("no competitor price column found, pricing figures use neutral defaults")
	}
	slog.Info("dataset loaded", "rows", table.Len(), "path", *datasetPath)

	criteria := analytics.Criteria{
		Cities:   splitList(*cities),
		Months:   splitList(*months),
		Diseases: splitList(*diseases),
	}
	records := analytics.Filter(table, criteria)
	slog.Info("filter applied", "matched", len(records), "total", table.Len())

	groups, err := analytics.Aggregate(records, *groupBy, *metric, analytics.Op(*op))
	if err != nil {
		slog.Error("aggregation failed", "error", err)
		os.Exit(1)
	}

	writer := exporter.NewReportWriter(*outputDir, slog.Default())

	summaryPath, err := writer.WriteSummary(analytics.Summarize(records, table.Degraded()), "summary.json")
	if err != nil {
		slog.Error("failed to write summary report", "error", err)
		os.Exit(1)
	}

	groupsFile := fmt.Sprintf("%s_by_%s.csv", strings.ToLower(*metric), strings.ToLower(*groupBy))
	groupsPath, err := writer.WriteGroups(groups, *groupBy, *metric, groupsFile)
	if err != nil {
		slog.Error("failed to write aggregation report", "error", err)
		os.Exit(1)
	}

	oppsPath, err := writer.WriteOpportunities(
		analytics.Opportunities(records, *threshold), "opportunities.csv")
	if err != nil {
		slog.Error("failed to write opportunities report", "error", err)
		os.Exit(1)
	}

	slog.Info("reports generated",
		"summary", summaryPath,
		"aggregation", groupsPath,
		"opportunities", oppsPath)
}

// splitList parses a comma-separated flag value. An empty flag means no
// filter on that dimension.
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
