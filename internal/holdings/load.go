// Package holdings ingests held-position records from a brokerage export
// (workbook or CSV) and enriches them with market data from the reconciled
// universe. Extraction from other document kinds stays with the upstream
// collaborator; only the position table crosses this boundary.
package holdings

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"jqscreen/pkg/contracts/domain"
)

// columnPatterns maps position fields to header-cell fragments, covering
// the brokerage's Japanese export headers and plain English equivalents.
// Matching is substring-based since header wording drifts across export
// versions.
var columnPatterns = map[string][]string{
	"code":           {"銘柄コード", "証券コード", "コード", "code"},
	"name":           {"銘柄・ファンド名", "銘柄名", "銘柄", "name"},
	"account_type":   {"口座区分", "口座種別", "口座", "account"},
	"quantity":       {"保有株数", "保有数量", "保有口数", "数量", "quantity"},
	"avg_cost":       {"平均取得単価", "取得単価", "取得価格", "平均取得価格", "cost"},
	"current_price":  {"現在値", "株価", "基準価額", "price"},
	"assessed_value": {"時価評価額", "評価額", "value"},
	"unrealized_pl":  {"評価損益額", "評価損益(円)", "評価損益", "損益額", "損益(円)", "p/l"},
	"unrealized_pct": {"評価損益率", "損益率", "損益(%)", "p/l%"},
}

var fourDigitCode = regexp.MustCompile(`^\d{4}$`)

// negativeMarkers prefix losses in the brokerage's number formatting.
var negativeMarkers = []string{"▲", "△", "－", "−"}

// Load reads held positions from path, dispatching on the file extension:
// .xlsx workbooks are scanned sheet by sheet, .csv files row by row
// (Shift_JIS exports are transcoded). Rows without a four-digit code are
// skipped; duplicate codes keep the first occurrence.
func Load(path string, logger *slog.Logger) ([]domain.Position, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xls":
		rows, err = workbookRows(path)
	case ".csv":
		rows, err = csvRows(path)
	default:
		return nil, fmt.Errorf("unsupported holdings format %q", ext)
	}
	if err != nil {
		return nil, err
	}

	positions := extractPositions(rows)
	if len(positions) == 0 {
		return nil, fmt.Errorf("no positions found in %s", filepath.Base(path))
	}

	logger.Info("holdings loaded",
		slog.String("file", filepath.Base(path)),
		slog.Int("positions", len(positions)))
	return positions, nil
}

func workbookRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var all [][]string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		all = append(all, rows...)
	}
	return all, nil
}

func csvRows(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	// Brokerage CSV exports commonly arrive as Shift_JIS.
	if !utf8.Valid(data) {
		decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), japanese.ShiftJIS.NewDecoder()))
		if err != nil {
			return nil, fmt.Errorf("failed to transcode csv: %w", err)
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv: %w", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// extractPositions walks rows looking for header/data sections. Multiple
// tables may appear in one export; each header row resets the column map.
func extractPositions(rows [][]string) []domain.Position {
	var (
		positions []domain.Position
		seen      = make(map[string]bool)
		colMap    map[string]int
	)

	for _, row := range rows {
		if m := matchHeader(row); len(m) > 0 {
			colMap = m
			continue
		}
		if colMap == nil {
			continue
		}

		pos, ok := rowToPosition(row, colMap)
		if !ok || seen[pos.Code] {
			continue
		}
		seen[pos.Code] = true
		positions = append(positions, pos)
	}
	return positions
}

// fieldOrder fixes the matching priority so that a cell like 銘柄コード is
// claimed by the code column before the looser 銘柄 name pattern sees it.
var fieldOrder = []string{
	"code", "name", "account_type", "quantity", "avg_cost",
	"current_price", "assessed_value", "unrealized_pl", "unrealized_pct",
}

// matchHeader maps fields to column indexes when the row looks like a
// table header (it names at least the code or name column). Each cell is
// consumed by at most one field.
func matchHeader(row []string) map[string]int {
	colMap := make(map[string]int)
	for idx, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		lower := strings.ToLower(cell)
		for _, field := range fieldOrder {
			if _, taken := colMap[field]; taken {
				continue
			}
			if matchesField(cell, lower, columnPatterns[field]) {
				colMap[field] = idx
				break
			}
		}
	}
	if _, ok := colMap["code"]; ok {
		return colMap
	}
	if _, ok := colMap["name"]; ok {
		return colMap
	}
	return nil
}

func matchesField(cell, lower string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(cell, p) || strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func rowToPosition(row []string, colMap map[string]int) (domain.Position, bool) {
	cell := func(field string) string {
		idx, ok := colMap[field]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	code := cell("code")
	if !fourDigitCode.MatchString(code) {
		// Fall back to scanning the whole row for a four-digit code, which
		// some export layouts bury in a merged cell.
		code = ""
		for _, c := range row {
			c = strings.TrimSpace(c)
			if fourDigitCode.MatchString(c) {
				code = c
				break
			}
		}
	}
	if code == "" {
		return domain.Position{}, false
	}

	name := cell("name")
	if name == "" || name == code {
		return domain.Position{}, false
	}

	return domain.Position{
		Code:          code,
		Name:          name,
		AccountType:   cell("account_type"),
		Quantity:      parseNumber(cell("quantity")),
		AvgCost:       parseNumber(cell("avg_cost")),
		CurrentPrice:  parseNumber(cell("current_price")),
		AssessedValue: parseNumber(cell("assessed_value")),
		UnrealizedPL:  parseNumber(cell("unrealized_pl")),
		UnrealizedPct: parseNumber(cell("unrealized_pct")),
	}, true
}

// parseNumber converts a brokerage-formatted numeric cell to a value.
// Loss markers (▲ and friends) mean negative; separators, currency and
// percent suffixes are stripped. Unparsable cells degrade to missing.
func parseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return nil
	}

	negative := false
	for _, marker := range negativeMarkers {
		if strings.HasPrefix(s, marker) {
			negative = true
			s = strings.TrimPrefix(s, marker)
			break
		}
	}

	s = strings.NewReplacer(",", "", "円", "", "%", "", "+", "").Replace(s)
	s = strings.TrimSpace(s)

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	if negative {
		f = -f
	}
	return &f
}
