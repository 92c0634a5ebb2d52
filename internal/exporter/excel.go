package exporter

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"jqscreen/pkg/contracts/domain"
)

// Sheet names of the investment workbook.
const (
	SheetHoldings   = "Holdings"
	SheetCandidates = "Candidates"
	SheetComparison = "Comparison"
)

// Palette used across the workbook.
const (
	colorHeaderHoldings   = "1F4E79" // dark blue
	colorHeaderCandidates = "375623" // dark green
	colorHeaderComparison = "4A235A" // dark purple
	colorGainFill         = "C6EFCE"
	colorGainFont         = "276221"
	colorLossFill         = "FFC7CE"
	colorLossFont         = "9C0006"
	colorAccent           = "FFD966"
	colorYieldStrong      = "00B050"
	colorYieldMid         = "92D050"
	colorYieldLight       = "C6EFCE"
	colorPBRDeep          = "1F4E79"
	colorPBRMid           = "9DC3E6"
	colorPBRLight         = "DDEBF7"
)

var holdingsHeaders = []string{
	"Code", "Name", "Account", "Quantity", "Avg Cost", "Price",
	"Assessed Value", "Unrealized P/L", "Unrealized P/L %",
	"Yield %", "PBR", "Market",
}

var candidatesHeaders = []string{
	"Code", "Name", "Market", "Sector", "Price", "PBR",
	"Yield %", "Market Cap (100M)", "Annual DPS",
}

var comparisonHeaders = []string{
	"Side", "Code", "Name", "Price", "PBR", "Yield %",
	"Market Cap (100M)", "Sector",
}

// ReportWriter renders the investment workbook.
type ReportWriter struct {
	logger *slog.Logger
}

// NewReportWriter creates a workbook writer.
func NewReportWriter(logger *slog.Logger) *ReportWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportWriter{logger: logger}
}

// workbookStyles holds the style IDs registered on one workbook.
type workbookStyles struct {
	titleHoldings    int
	titleCandidates  int
	titleComparison  int
	headerHoldings   int
	headerCandidates int
	headerComparison int
	text             int
	integer          int
	decimal          int
	percent          int
	gain             int
	loss             int
	total            int
	yieldStrong      int
	yieldMid         int
	yieldLight       int
	pbrDeep          int
	pbrMid           int
	pbrLight         int
}

// WriteWorkbook renders holdings and screening candidates into the
// three-sheet investment workbook at path. Candidates are ordered by yield
// descending; holdings keep their source order.
func (w *ReportWriter) WriteWorkbook(path string, positions []domain.Position, candidates []domain.ReconciledEntity, asOf time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	styles, err := registerStyles(f)
	if err != nil {
		return fmt.Errorf("failed to register styles: %w", err)
	}

	if err := w.writeHoldingsSheet(f, styles, positions, asOf); err != nil {
		return err
	}
	if err := w.writeCandidatesSheet(f, styles, candidates, asOf); err != nil {
		return err
	}
	if err := w.writeComparisonSheet(f, styles, positions, candidates, asOf); err != nil {
		return err
	}

	// Drop the default sheet excelize creates.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(SheetHoldings); err == nil {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	w.logger.Info("investment workbook written",
		slog.String("path", path),
		slog.Int("holdings", len(positions)),
		slog.Int("candidates", len(candidates)))
	return nil
}

func registerStyles(f *excelize.File) (*workbookStyles, error) {
	s := &workbookStyles{}

	type target struct {
		dst   *int
		style *excelize.Style
	}

	intFmt := "#,##0"
	decFmt := "0.00"
	pctFmt := `0.00"%"`
	plFmt := "#,##0;[Red]-#,##0"

	center := &excelize.Alignment{Horizontal: "center", Vertical: "center"}
	right := &excelize.Alignment{Horizontal: "right", Vertical: "center"}

	headerStyle := func(color string) *excelize.Style {
		return &excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 10},
			Alignment: center,
		}
	}
	titleStyle := func(color string) *excelize.Style {
		return &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 12, Color: color},
			Alignment: center,
		}
	}
	numStyle := func(fmtStr string) *excelize.Style {
		return &excelize.Style{CustomNumFmt: &fmtStr, Alignment: right, Font: &excelize.Font{Size: 10}}
	}
	bandStyle := func(fill, font string, bold bool, fmtStr string) *excelize.Style {
		return &excelize.Style{
			Fill:         excelize.Fill{Type: "pattern", Color: []string{fill}, Pattern: 1},
			Font:         &excelize.Font{Color: font, Size: 10, Bold: bold},
			Alignment:    right,
			CustomNumFmt: &fmtStr,
		}
	}

	targets := []target{
		{&s.titleHoldings, titleStyle(colorHeaderHoldings)},
		{&s.titleCandidates, titleStyle(colorHeaderCandidates)},
		{&s.titleComparison, titleStyle(colorHeaderComparison)},
		{&s.headerHoldings, headerStyle(colorHeaderHoldings)},
		{&s.headerCandidates, headerStyle(colorHeaderCandidates)},
		{&s.headerComparison, headerStyle(colorHeaderComparison)},
		{&s.text, &excelize.Style{Font: &excelize.Font{Size: 10}}},
		{&s.integer, numStyle(intFmt)},
		{&s.decimal, numStyle(decFmt)},
		{&s.percent, numStyle(pctFmt)},
		{&s.gain, bandStyle(colorGainFill, colorGainFont, false, plFmt)},
		{&s.loss, bandStyle(colorLossFill, colorLossFont, false, plFmt)},
		{&s.total, bandStyle(colorAccent, "000000", true, intFmt)},
		{&s.yieldStrong, bandStyle(colorYieldStrong, "FFFFFF", true, pctFmt)},
		{&s.yieldMid, bandStyle(colorYieldMid, "000000", false, pctFmt)},
		{&s.yieldLight, bandStyle(colorYieldLight, "000000", false, pctFmt)},
		{&s.pbrDeep, bandStyle(colorPBRDeep, "FFFFFF", true, decFmt)},
		{&s.pbrMid, bandStyle(colorPBRMid, "000000", false, decFmt)},
		{&s.pbrLight, bandStyle(colorPBRLight, "000000", false, decFmt)},
	}

	for _, t := range targets {
		id, err := f.NewStyle(t.style)
		if err != nil {
			return nil, err
		}
		*t.dst = id
	}
	return s, nil
}

func (w *ReportWriter) writeHoldingsSheet(f *excelize.File, styles *workbookStyles, positions []domain.Position, asOf time.Time) error {
	if _, err := f.NewSheet(SheetHoldings); err != nil {
		return err
	}

	if err := writeTitle(f, SheetHoldings, fmt.Sprintf("Holdings as of %s", asOf.Format("2006/01/02")),
		len(holdingsHeaders), styles.titleHoldings); err != nil {
		return err
	}
	if err := writeHeaderRow(f, SheetHoldings, holdingsHeaders, styles.headerHoldings); err != nil {
		return err
	}

	if len(positions) == 0 {
		return f.SetCellValue(SheetHoldings, "A3", "no holdings supplied")
	}

	for i, pos := range positions {
		row := i + 3
		cells := []any{
			pos.Code, pos.Name, pos.AccountType,
			floatOrNil(pos.Quantity), floatOrNil(pos.AvgCost), floatOrNil(pos.CurrentPrice),
			floatOrNil(pos.AssessedValue), floatOrNil(pos.UnrealizedPL), floatOrNil(pos.UnrealizedPct),
			floatOrNil(pos.YieldPct), floatOrNil(pos.PBR), pos.Market,
		}
		colStyles := []int{
			styles.text, styles.text, styles.text,
			styles.integer, styles.integer, styles.integer,
			styles.integer, styles.integer, styles.percent,
			styles.percent, styles.decimal, styles.text,
		}
		if pos.UnrealizedPL != nil {
			if *pos.UnrealizedPL >= 0 {
				colStyles[7] = styles.gain
			} else {
				colStyles[7] = styles.loss
			}
		}
		if err := writeDataRow(f, SheetHoldings, row, cells, colStyles); err != nil {
			return err
		}
	}

	// Totals for the value and P/L columns.
	lastDataRow := 2 + len(positions)
	totalRow := lastDataRow + 2
	if err := f.SetCellValue(SheetHoldings, cellName(1, totalRow), "Total"); err != nil {
		return err
	}
	for _, col := range []int{7, 8} {
		ref := cellName(col, totalRow)
		letter, _ := excelize.ColumnNumberToName(col)
		if err := f.SetCellFormula(SheetHoldings, ref, fmt.Sprintf("SUM(%s3:%s%d)", letter, letter, lastDataRow)); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetHoldings, ref, ref, styles.total); err != nil {
			return err
		}
	}

	return finishSheet(f, SheetHoldings, len(holdingsHeaders))
}

func (w *ReportWriter) writeCandidatesSheet(f *excelize.File, styles *workbookStyles, candidates []domain.ReconciledEntity, asOf time.Time) error {
	if _, err := f.NewSheet(SheetCandidates); err != nil {
		return err
	}

	title := fmt.Sprintf("Screening results, %s", asOf.Format("2006/01/02"))
	if err := writeTitle(f, SheetCandidates, title, len(candidatesHeaders), styles.titleCandidates); err != nil {
		return err
	}
	if err := writeHeaderRow(f, SheetCandidates, candidatesHeaders, styles.headerCandidates); err != nil {
		return err
	}

	if len(candidates) == 0 {
		return f.SetCellValue(SheetCandidates, "A3", "no securities passed the screen")
	}

	sorted := make([]domain.ReconciledEntity, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return deref(sorted[i].YieldPct) > deref(sorted[j].YieldPct)
	})

	for i, c := range sorted {
		row := i + 3
		cells := []any{
			c.Code, c.Name, c.Market, c.Sector17,
			floatOrNil(c.Price), floatOrNil(c.PBR), floatOrNil(c.YieldPct),
			marketCapIn100M(c.MarketCap), floatOrNil(c.DividendPerShare),
		}
		colStyles := []int{
			styles.text, styles.text, styles.text, styles.text,
			styles.integer, pbrBandStyle(styles, c.PBR), yieldBandStyle(styles, c.YieldPct),
			styles.integer, styles.decimal,
		}
		if err := writeDataRow(f, SheetCandidates, row, cells, colStyles); err != nil {
			return err
		}
	}

	return finishSheet(f, SheetCandidates, len(candidatesHeaders))
}

func (w *ReportWriter) writeComparisonSheet(f *excelize.File, styles *workbookStyles, positions []domain.Position, candidates []domain.ReconciledEntity, asOf time.Time) error {
	if _, err := f.NewSheet(SheetComparison); err != nil {
		return err
	}

	title := fmt.Sprintf("Held vs candidate valuation, %s", asOf.Format("2006/01/02"))
	if err := writeTitle(f, SheetComparison, title, len(comparisonHeaders), styles.titleComparison); err != nil {
		return err
	}
	if err := writeHeaderRow(f, SheetComparison, comparisonHeaders, styles.headerComparison); err != nil {
		return err
	}

	row := 3
	for _, pos := range positions {
		cells := []any{
			"held", pos.Code, pos.Name,
			floatOrNil(pos.CurrentPrice), floatOrNil(pos.PBR), floatOrNil(pos.YieldPct),
			marketCapIn100M(pos.MarketCap), pos.Sector,
		}
		colStyles := []int{
			styles.text, styles.text, styles.text,
			styles.integer, styles.decimal, styles.percent, styles.integer, styles.text,
		}
		if err := writeDataRow(f, SheetComparison, row, cells, colStyles); err != nil {
			return err
		}
		row++
	}
	for _, c := range candidates {
		cells := []any{
			"candidate", c.Code, c.Name,
			floatOrNil(c.Price), floatOrNil(c.PBR), floatOrNil(c.YieldPct),
			marketCapIn100M(c.MarketCap), c.Sector17,
		}
		colStyles := []int{
			styles.text, styles.text, styles.text,
			styles.integer, styles.decimal, styles.percent, styles.integer, styles.text,
		}
		if err := writeDataRow(f, SheetComparison, row, cells, colStyles); err != nil {
			return err
		}
		row++
	}

	return finishSheet(f, SheetComparison, len(comparisonHeaders))
}

func writeTitle(f *excelize.File, sheet, title string, width int, styleID int) error {
	last := cellName(width, 1)
	if err := f.MergeCell(sheet, "A1", last); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, "A1", title); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, styleID); err != nil {
		return err
	}
	return f.SetRowHeight(sheet, 1, 20)
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string, styleID int) error {
	for i, h := range headers {
		if err := f.SetCellValue(sheet, cellName(i+1, 2), h); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheet, "A2", cellName(len(headers), 2), styleID); err != nil {
		return err
	}
	// Keep the title and header visible while scrolling.
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      2,
		TopLeftCell: "A3",
		ActivePane:  "bottomLeft",
	})
}

func writeDataRow(f *excelize.File, sheet string, row int, cells []any, colStyles []int) error {
	for i, v := range cells {
		ref := cellName(i+1, row)
		if v != nil {
			if err := f.SetCellValue(sheet, ref, v); err != nil {
				return err
			}
		}
		if err := f.SetCellStyle(sheet, ref, ref, colStyles[i]); err != nil {
			return err
		}
	}
	return nil
}

func finishSheet(f *excelize.File, sheet string, columns int) error {
	first, _ := excelize.ColumnNumberToName(1)
	last, _ := excelize.ColumnNumberToName(columns)
	return f.SetColWidth(sheet, first, last, 14)
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// floatOrNil unwraps an optional float for SetCellValue; nil stays an
// untouched empty cell rather than a zero.
func floatOrNil(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func deref(v *float64) float64 {
	if v == nil {
		return math.Inf(-1)
	}
	return *v
}

func marketCapIn100M(v *float64) any {
	if v == nil {
		return nil
	}
	return math.Round(*v/1e8*10) / 10
}

func yieldBandStyle(s *workbookStyles, yield *float64) int {
	if yield == nil {
		return s.percent
	}
	switch {
	case *yield >= 5.0:
		return s.yieldStrong
	case *yield >= 4.0:
		return s.yieldMid
	case *yield >= 3.0:
		return s.yieldLight
	default:
		return s.percent
	}
}

func pbrBandStyle(s *workbookStyles, pbr *float64) int {
	if pbr == nil {
		return s.decimal
	}
	switch {
	case *pbr <= 0.8:
		return s.pbrDeep
	case *pbr <= 1.0:
		return s.pbrMid
	case *pbr <= 1.3:
		return s.pbrLight
	default:
		return s.decimal
	}
}
