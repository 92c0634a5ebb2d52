package domain

import (
	"strings"
	"time"
)

// CanonicalCodeLength is the width of the normalized security code used as
// the join key across every data source. Raw statement codes are frequently
// one character wider (five digits with a trailing check character).
const CanonicalCodeLength = 4

// CanonicalCode normalizes a raw security code to its canonical form:
// surrounding whitespace removed, then truncated to the leading four
// characters. Codes already in canonical form are returned unchanged.
func CanonicalCode(raw string) string {
	code := strings.TrimSpace(raw)
	if len(code) > CanonicalCodeLength {
		return code[:CanonicalCodeLength]
	}
	return code
}

// ListingRecord is one row of the listed-securities registry.
type ListingRecord struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Sector17 string `json:"sector17"`
	Sector33 string `json:"sector33"`
	Market   string `json:"market"`
}

// PriceRecord is one security's price snapshot for the discovered trading
// date. Close values are nil when the service omits them (untraded issues).
type PriceRecord struct {
	Code            string   `json:"code"`
	Close           *float64 `json:"close,omitempty"`
	AdjustmentClose *float64 `json:"adjustment_close,omitempty"`
	Volume          *float64 `json:"volume,omitempty"`
}

// EffectivePrice returns the adjusted close when present, falling back to
// the raw close. Nil when neither is available.
func (p PriceRecord) EffectivePrice() *float64 {
	if p.AdjustmentClose != nil {
		return p.AdjustmentClose
	}
	return p.Close
}

// Period types reported on financial-statement disclosures.
const (
	PeriodFY = "FY"
	Period2Q = "2Q"
	PeriodQ3 = "Q3"
	PeriodQ1 = "Q1"
)

// StatementRecord is one financial-statement disclosure. Code holds the raw
// identifier as reported, which may be wider than the canonical form.
type StatementRecord struct {
	Code                   string    `json:"code"`
	DisclosedDate          time.Time `json:"disclosed_date"`
	PeriodType             string    `json:"period_type"`
	BookValuePerShare      *float64  `json:"book_value_per_share,omitempty"`
	ResultDividendAnnual   *float64  `json:"result_dividend_annual,omitempty"`
	ForecastDividendAnnual *float64  `json:"forecast_dividend_annual,omitempty"`
	SharesOutstanding      *float64  `json:"shares_outstanding,omitempty"`
}

// DividendPerShare returns the reported annual dividend, preferring the
// result value over the forecast. Nil when neither was disclosed.
func (s StatementRecord) DividendPerShare() *float64 {
	if s.ResultDividendAnnual != nil {
		return s.ResultDividendAnnual
	}
	return s.ForecastDividendAnnual
}

// ReconciledEntity is one security after the listing, price and statement
// sources have been joined on the canonical code. Derived fields are nil
// when their inputs are missing or the price is non-positive.
type ReconciledEntity struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Sector17 string `json:"sector17"`
	Sector33 string `json:"sector33"`
	Market   string `json:"market"`

	Price             *float64 `json:"price,omitempty"`
	Volume            *float64 `json:"volume,omitempty"`
	BookValuePerShare *float64 `json:"book_value_per_share,omitempty"`
	DividendPerShare  *float64 `json:"dividend_per_share,omitempty"`
	SharesOutstanding *float64 `json:"shares_outstanding,omitempty"`

	// Derived valuation fields.
	PBR       *float64 `json:"pbr,omitempty"`        // price / book value per share
	YieldPct  *float64 `json:"yield_pct,omitempty"`  // dividend / price * 100
	MarketCap *float64 `json:"market_cap,omitempty"` // shares outstanding * price
}
