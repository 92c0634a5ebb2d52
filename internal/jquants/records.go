package jquants

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"jqscreen/pkg/contracts/domain"
)

// wireDateFormat is the date formatting the service expects in query
// parameters; disclosure dates in bodies arrive as ISO dates.
const (
	wireDateFormat = "20060102"
	isoDateFormat  = "2006-01-02"
)

// nullableNumber decodes the service's numeric fields, which arrive as JSON
// numbers, numeric strings, empty strings, "-", or null. Unparsable values
// degrade to missing rather than failing the row.
type nullableNumber struct {
	value *float64
}

func (n *nullableNumber) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}

	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		str = strings.TrimSpace(str)
		if str == "" || str == "-" {
			return nil
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(str, ",", ""), 64)
		if err != nil {
			return nil
		}
		n.value = &f
		return nil
	}

	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return nil
	}
	n.value = &f
	return nil
}

type listedInfoItem struct {
	Code             string `json:"Code"`
	LocalCode        string `json:"LocalCode"`
	CompanyName      string `json:"CompanyName"`
	Sector17CodeName string `json:"Sector17CodeName"`
	Sector33CodeName string `json:"Sector33CodeName"`
	MarketCodeName   string `json:"MarketCodeName"`
}

type dailyQuoteItem struct {
	Code            string         `json:"Code"`
	Close           nullableNumber `json:"Close"`
	AdjustmentClose nullableNumber `json:"AdjustmentClose"`
	Volume          nullableNumber `json:"Volume"`
}

type statementItem struct {
	Code                string         `json:"Code"`
	LocalCode           string         `json:"LocalCode"`
	DisclosedDate       string         `json:"DisclosedDate"`
	TypeOfCurrentPeriod string         `json:"TypeOfCurrentPeriod"`
	BookValuePerShare   nullableNumber `json:"BookValuePerShare"`
	ResultDividend      nullableNumber `json:"ResultDividendPerShareAnnual"`
	ForecastDividend    nullableNumber `json:"ForecastDividendPerShareAnnual"`
	SharesOutstanding   nullableNumber `json:"NumberOfIssuedAndOutstandingSharesAtTheEndOfFiscalYearIncludingTreasuryStock"`
}

// ListedInfo fetches the full listed-securities registry.
func (c *Client) ListedInfo(ctx context.Context) ([]domain.ListingRecord, error) {
	items, err := c.GetPaginated(ctx, "listed/info", "info", nil)
	if err != nil {
		return nil, err
	}

	records := make([]domain.ListingRecord, 0, len(items))
	for _, raw := range items {
		var item listedInfoItem
		if err := json.Unmarshal(raw, &item); err != nil {
			c.logger.Debug("skipping malformed listing row", slog.String("error", err.Error()))
			continue
		}
		code := item.Code
		if code == "" {
			code = item.LocalCode
		}
		if code == "" {
			continue
		}
		records = append(records, domain.ListingRecord{
			Code:     code,
			Name:     item.CompanyName,
			Sector17: item.Sector17CodeName,
			Sector33: item.Sector33CodeName,
			Market:   item.MarketCodeName,
		})
	}

	c.logger.Info("fetched listing registry", slog.Int("listings", len(records)))
	return records, nil
}

// DailyQuotes fetches the price snapshot for one trading date.
func (c *Client) DailyQuotes(ctx context.Context, date time.Time) ([]domain.PriceRecord, error) {
	params := url.Values{"date": {date.Format(wireDateFormat)}}
	items, err := c.GetPaginated(ctx, "prices/daily_quotes", "daily_quotes", params)
	if err != nil {
		return nil, err
	}
	return decodeQuotes(items, c.logger), nil
}

// StatementsForDate fetches every statement disclosed on one date.
func (c *Client) StatementsForDate(ctx context.Context, date time.Time) ([]domain.StatementRecord, error) {
	params := url.Values{"date": {date.Format(wireDateFormat)}}
	items, err := c.GetPaginated(ctx, "fins/statements", "statements", params)
	if err != nil {
		return nil, err
	}
	return decodeStatements(items, c.logger), nil
}

// StatementsForCode fetches the full statement history of one security.
func (c *Client) StatementsForCode(ctx context.Context, code string) ([]domain.StatementRecord, error) {
	params := url.Values{"code": {code}}
	items, err := c.GetPaginated(ctx, "fins/statements", "statements", params)
	if err != nil {
		return nil, err
	}
	return decodeStatements(items, c.logger), nil
}

func decodeQuotes(items []json.RawMessage, logger *slog.Logger) []domain.PriceRecord {
	records := make([]domain.PriceRecord, 0, len(items))
	for _, raw := range items {
		var item dailyQuoteItem
		if err := json.Unmarshal(raw, &item); err != nil {
			logger.Debug("skipping malformed quote row", slog.String("error", err.Error()))
			continue
		}
		if item.Code == "" {
			continue
		}
		records = append(records, domain.PriceRecord{
			Code:            item.Code,
			Close:           item.Close.value,
			AdjustmentClose: item.AdjustmentClose.value,
			Volume:          item.Volume.value,
		})
	}
	return records
}

func decodeStatements(items []json.RawMessage, logger *slog.Logger) []domain.StatementRecord {
	records := make([]domain.StatementRecord, 0, len(items))
	for _, raw := range items {
		var item statementItem
		if err := json.Unmarshal(raw, &item); err != nil {
			logger.Debug("skipping malformed statement row", slog.String("error", err.Error()))
			continue
		}
		code := item.Code
		if code == "" {
			code = item.LocalCode
		}
		if code == "" {
			continue
		}

		var disclosed time.Time
		if item.DisclosedDate != "" {
			if t, err := time.Parse(isoDateFormat, item.DisclosedDate); err == nil {
				disclosed = t
			}
		}

		records = append(records, domain.StatementRecord{
			Code:                   code,
			DisclosedDate:          disclosed,
			PeriodType:             item.TypeOfCurrentPeriod,
			BookValuePerShare:      item.BookValuePerShare.value,
			ResultDividendAnnual:   item.ResultDividend.value,
			ForecastDividendAnnual: item.ForecastDividend.value,
			SharesOutstanding:      item.SharesOutstanding.value,
		})
	}
	return records
}
