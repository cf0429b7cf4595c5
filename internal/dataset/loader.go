package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "rxpulse/internal/errors"
)

// LoaderConfig holds the business parameters applied during enrichment.
type LoaderConfig struct {
	// MarginRate is the assumed profit share of the unit price.
	MarginRate float64
}

// DefaultLoaderConfig returns the standard enrichment parameters.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{MarginRate: 0.3}
}

// Loader reads a sales dataset file, validates its schema and computes
// the derived columns. CSV and XLSX inputs are supported.
type Loader struct {
	config LoaderConfig
	logger *slog.Logger
}

// NewLoader creates a loader with the given configuration.
func NewLoader(config LoaderConfig, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if config.MarginRate <= 0 || config.MarginRate >= 1 {
		config.MarginRate = DefaultLoaderConfig().MarginRate
	}
	return &Loader{
		config: config,
		logger: logger.With(slog.String("component", "dataset_loader")),
	}
}

// Load reads, validates and enriches the dataset at path. It returns a
// LOAD error when the file is unreadable or malformed and a SCHEMA error
// when required columns are missing. A missing competitor price column is
// not an error; the table is loaded in degraded mode with neutral
// pricing defaults.
func (l *Loader) Load(ctx context.Context, path string) (*Table, error) {
	start := time.Now()

	rows, err := l.readRows(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NewLoadError(fmt.Sprintf("dataset file %s is empty", path), nil)
	}

	header := rows[0]
	index, missing := indexColumns(header)
	if len(missing) > 0 {
		schemaErr := &SchemaError{Missing: missing}
		return nil, apperrors.NewAppError(apperrors.ErrTypeSchema, schemaErr.Error(), schemaErr).
			WithContext("path", path).
			WithContext("missing_columns", missing)
	}

	competitorCol, competitorIdx := resolveCompetitorColumn(header)
	if competitorCol == "" {
		l.logger.WarnContext(ctx, "competitor price column not found, loading in degraded mode",
			slog.String("path", path),
			slog.Any("accepted_aliases", CompetitorAliases))
	}

	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := l.buildRecord(row, index, competitorIdx)
		if err != nil {
			return nil, apperrors.NewLoadError(
				fmt.Sprintf("dataset row %d is malformed", i+2), err).
				WithContext("path", path).
				WithContext("row", i+2)
		}
		records = append(records, rec)
	}

	table := NewTable(records, competitorCol, path, l.config.MarginRate)

	l.logger.InfoContext(ctx, "dataset loaded",
		slog.String("path", path),
		slog.Int("rows", table.Len()),
		slog.Bool("degraded", table.Degraded()),
		slog.Duration("duration", time.Since(start)))

	return table, nil
}

// readRows reads the raw cell grid from a CSV or XLSX file.
func (l *Loader) readRows(path string) ([][]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".xlsx":
		return l.readXLSX(path)
	default:
		return l.readCSV(path)
	}
}

func (l *Loader) readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewLoadError(fmt.Sprintf("cannot open dataset file %s", path), err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("cannot parse dataset file %s", path), err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (l *Loader) readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewLoadError(fmt.Sprintf("cannot open dataset file %s", path), err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.NewParsingError(fmt.Sprintf("dataset file %s has no sheets", path), nil)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("cannot read sheet %s", sheets[0]), err)
	}
	return rows, nil
}

// indexColumns maps required column names to header positions and
// reports the ones that are absent, in canonical order.
func indexColumns(header []string) (map[string]int, []string) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		positions[strings.TrimSpace(name)] = i
	}

	index := make(map[string]int, len(RequiredColumns))
	var missing []string
	for _, col := range RequiredColumns {
		pos, ok := positions[col]
		if !ok {
			missing = append(missing, col)
			continue
		}
		index[col] = pos
	}
	return index, missing
}

// resolveCompetitorColumn returns the first alias present in the header
// and its position, or ("", -1) when none match.
func resolveCompetitorColumn(header []string) (string, int) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		positions[strings.TrimSpace(name)] = i
	}
	for _, alias := range CompetitorAliases {
		if pos, ok := positions[alias]; ok {
			return alias, pos
		}
	}
	return "", -1
}

// buildRecord parses one data row and computes the derived columns.
func (l *Loader) buildRecord(row []string, index map[string]int, competitorIdx int) (Record, error) {
	rec := Record{
		City:     cell(row, index[ColCity]),
		Month:    cell(row, index[ColMonth]),
		Disease:  cell(row, index[ColDisease]),
		Medicine: cell(row, index[ColMedicine]),
	}

	for col, value := range map[string]string{
		ColCity: rec.City, ColMonth: rec.Month, ColDisease: rec.Disease, ColMedicine: rec.Medicine,
	} {
		if value == "" {
			return Record{}, fmt.Errorf("column %s is empty", col)
		}
	}

	orders, err := strconv.ParseInt(cell(row, index[ColOrders]), 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("column %s: %w", ColOrders, err)
	}
	if orders < 0 {
		return Record{}, fmt.Errorf("column %s: negative value %d", ColOrders, orders)
	}
	rec.Orders = orders

	price, err := strconv.ParseFloat(cell(row, index[ColPrice]), 64)
	if err != nil {
		return Record{}, fmt.Errorf("column %s: %w", ColPrice, err)
	}
	if price < 0 {
		return Record{}, fmt.Errorf("column %s: negative value %g", ColPrice, price)
	}
	rec.Price = price

	if competitorIdx >= 0 {
		raw := cell(row, competitorIdx)
		if raw != "" {
			competitor, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return Record{}, fmt.Errorf("competitor price: %w", err)
			}
			rec.CompetitorPrice = competitor
			rec.HasCompetitor = true
		}
	}

	l.enrich(&rec)
	return rec, nil
}

// enrich computes the derived columns. Without a competitor price the
// difference is 0 and the ratio is 1, the neutral values. The ratio is
// also pinned to 1 when the competitor price is 0 to avoid dividing by
// zero.
func (l *Loader) enrich(rec *Record) {
	if rec.HasCompetitor {
		rec.PriceDifference = rec.CompetitorPrice - rec.Price
		if rec.CompetitorPrice != 0 {
			rec.PriceRatio = rec.Price / rec.CompetitorPrice
		} else {
			rec.PriceRatio = 1
		}
	} else {
		rec.PriceDifference = 0
		rec.PriceRatio = 1
	}

	rec.Revenue = float64(rec.Orders) * rec.Price
	rec.ProfitMargin = rec.Price * l.config.MarginRate
	rec.TotalProfit = rec.ProfitMargin * float64(rec.Orders)
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
