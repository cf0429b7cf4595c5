// Package exporter writes dashboard insight reports to disk for offline
// consumption: KPI summaries as JSON and aggregations and pricing
// opportunities as CSV.
package exporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"rxpulse/internal/analytics"
	apperrors "rxpulse/internal/errors"
)

// ReportWriter writes insight reports into an output directory.
type ReportWriter struct {
	outputDir string
	logger    *slog.Logger
}

// NewReportWriter creates a report writer rooted at outputDir.
func NewReportWriter(outputDir string, logger *slog.Logger) *ReportWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportWriter{
		outputDir: outputDir,
		logger:    logger.With(slog.String("component", "report_writer")),
	}
}

// WriteSummary writes the KPI summary as pretty-printed JSON.
func (w *ReportWriter) WriteSummary(summary analytics.Summary, filename string) (string, error) {
	path, err := w.preparePath(filename)
	if err != nil {
		return "", err
	}

	payload, err := json.MarshalIndent(map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"summary":      summary,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode summary: %w", err)
	}

	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", apperrors.NewStorageError("failed to write summary report", err).WithContext("path", path)
	}

	w.logger.Info("summary report written", slog.String("path", path))
	return path, nil
}

// WriteGroups writes an aggregation result as CSV with one row per group.
func (w *ReportWriter) WriteGroups(groups []analytics.Group, groupBy, metric string, filename string) (string, error) {
	records := make([][]string, 0, len(groups))
	for _, g := range groups {
		records = append(records, []string{
			g.Key,
			strconv.FormatFloat(g.Value, 'f', -1, 64),
			strconv.Itoa(g.Count),
		})
	}
	return w.writeCSV(filename, []string{groupBy, metric, "Count"}, records)
}

// WriteOpportunities writes the pricing opportunity list as CSV, best
// opportunity first.
func (w *ReportWriter) WriteOpportunities(opps []analytics.Opportunity, filename string) (string, error) {
	records := make([][]string, 0, len(opps))
	for _, o := range opps {
		records = append(records, []string{
			o.City,
			o.Month,
			o.Medicine,
			strconv.FormatFloat(o.Price, 'f', 2, 64),
			strconv.FormatFloat(o.CompetitorPrice, 'f', 2, 64),
			strconv.FormatFloat(o.PriceDifference, 'f', 2, 64),
			strconv.FormatInt(o.Orders, 10),
		})
	}
	headers := []string{"City", "Month", "Medicine", "Price", "Competitor_Price", "Price_Difference", "Orders"}
	return w.writeCSV(filename, headers, records)
}

func (w *ReportWriter) writeCSV(filename string, headers []string, records [][]string) (string, error) {
	path, err := w.preparePath(filename)
	if err != nil {
		return "", err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", apperrors.NewStorageError("failed to open report file", err).WithContext("path", path)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(headers); err != nil {
		return "", apperrors.NewStorageError("failed to write headers", err).WithContext("path", path)
	}
	if err := writer.WriteAll(records); err != nil {
		return "", apperrors.NewStorageError("failed to write records", err).WithContext("path", path)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", apperrors.NewStorageError("failed to flush report", err).WithContext("path", path)
	}

	w.logger.Info("report written",
		slog.String("path", path),
		slog.Int("rows", len(records)))
	return path, nil
}

func (w *ReportWriter) preparePath(filename string) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", apperrors.NewStorageError("failed to create output directory", err).WithContext("dir", w.outputDir)
	}
	return filepath.Join(w.outputDir, filename), nil
}
