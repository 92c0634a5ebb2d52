package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"jqscreen/pkg/contracts/domain"
)

// CSVWriter writes the holdings snapshot CSV kept beside the workbook.
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a CSV writer.
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger}
}

var holdingsCSVHeaders = []string{
	"code", "name", "account_type", "quantity", "avg_cost", "current_price",
	"assessed_value", "unrealized_pl", "unrealized_pct",
	"yield_pct", "pbr", "market_cap", "sector", "market",
}

// WriteHoldings writes the held positions to a UTF-8 CSV file. The file
// starts with a BOM so spreadsheet applications recognize the encoding.
func (w *CSVWriter) WriteHoldings(path string, positions []domain.Position) error {
	records := make([][]string, 0, len(positions))
	for _, pos := range positions {
		records = append(records, []string{
			pos.Code, pos.Name, pos.AccountType,
			formatFloat(pos.Quantity), formatFloat(pos.AvgCost), formatFloat(pos.CurrentPrice),
			formatFloat(pos.AssessedValue), formatFloat(pos.UnrealizedPL), formatFloat(pos.UnrealizedPct),
			formatFloat(pos.YieldPct), formatFloat(pos.PBR), formatFloat(pos.MarketCap),
			pos.Sector, pos.Market,
		})
	}
	return w.writeCSV(path, holdingsCSVHeaders, records)
}

func (w *CSVWriter) writeCSV(path string, headers []string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	// UTF-8 BOM helps Excel recognize the encoding.
	if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	writer := csv.NewWriter(file)

	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	w.logger.Info("csv written",
		slog.String("path", path),
		slog.Int("records", len(records)))
	return nil
}

// formatFloat renders an optional value without trailing zeros; missing
// values become empty cells.
func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
