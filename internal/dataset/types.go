// Package dataset loads the pharmaceutical sales dataset and enriches it
// with derived pricing and profit columns. The loaded table is immutable;
// a Store caches the first successful load for the process lifetime.
package dataset

import (
	"fmt"
	"strings"
	"time"
)

// Canonical header names of the required columns. Matching is exact:
// the source dataset ships with these spellings.
const (
	ColCity     = "City"
	ColMonth    = "Month"
	ColDisease  = "Disease"
	ColMedicine = "Medicine"
	ColOrders   = "Orders"
	ColPrice    = "Price"
)

// RequiredColumns lists the columns every dataset file must carry.
var RequiredColumns = []string{ColCity, ColMonth, ColDisease, ColMedicine, ColOrders, ColPrice}

// CompetitorAliases is the ordered list of accepted spellings for the
// optional competitor-price column. The first header that matches wins.
var CompetitorAliases = []string{"Competitor_Price", "Competitor Price", "Comp_Price", "CompetitorPrice"}

// Record is one (city, month, disease, medicine) sales observation plus
// the columns derived at load time.
type Record struct {
	City     string  `json:"city"`
	Month    string  `json:"month"`
	Disease  string  `json:"disease"`
	Medicine string  `json:"medicine"`
	Orders   int64   `json:"orders"`
	Price    float64 `json:"price"`

	// CompetitorPrice is zero when the column is absent or the cell is
	// empty; HasCompetitor distinguishes the two cases from a real zero.
	CompetitorPrice float64 `json:"competitor_price"`
	HasCompetitor   bool    `json:"has_competitor"`

	// Derived columns, computed once at load.
	PriceDifference float64 `json:"price_difference"`
	PriceRatio      float64 `json:"price_ratio"`
	Revenue         float64 `json:"revenue"`
	ProfitMargin    float64 `json:"profit_margin"`
	TotalProfit     float64 `json:"total_profit"`
}

// Table is an immutable, ordered collection of enriched records.
type Table struct {
	records       []Record
	competitorCol string
	sourcePath    string
	marginRate    float64
	loadedAt      time.Time
}

// NewTable wraps records in a Table. The slice is owned by the table
// after the call; callers must not retain or modify it.
func NewTable(records []Record, competitorCol, sourcePath string, marginRate float64) *Table {
	return &Table{
		records:       records,
		competitorCol: competitorCol,
		sourcePath:    sourcePath,
		marginRate:    marginRate,
		loadedAt:      time.Now(),
	}
}

// Records returns the table rows in load order. The returned slice is
// shared; callers must treat it as read-only.
func (t *Table) Records() []Record {
	return t.records
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.records)
}

// Degraded reports whether the table was loaded without a competitor
// price column (derived defaults substituted on every row).
func (t *Table) Degraded() bool {
	return t.competitorCol == ""
}

// CompetitorColumn returns the resolved competitor-price header, or ""
// when the table is degraded.
func (t *Table) CompetitorColumn() string {
	return t.competitorCol
}

// SourcePath returns the file the table was loaded from.
func (t *Table) SourcePath() string {
	return t.sourcePath
}

// MarginRate returns the profit-margin rate the derived columns were
// computed with.
func (t *Table) MarginRate() float64 {
	return t.marginRate
}

// LoadedAt returns when the table was constructed.
func (t *Table) LoadedAt() time.Time {
	return t.loadedAt
}

// SchemaError reports required columns missing from the dataset header.
type SchemaError struct {
	Missing []string
}

// Error implements the error interface, enumerating the missing columns.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("dataset schema invalid: missing required columns: %s", strings.Join(e.Missing, ", "))
}
