package domain

// Position is one held security as extracted from a brokerage export.
// The numeric fields are pass-through from the source document; enrichment
// fills the market fields from the reconciled universe when a match exists.
type Position struct {
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	AccountType   string   `json:"account_type,omitempty"`
	Quantity      *float64 `json:"quantity,omitempty"`
	AvgCost       *float64 `json:"avg_cost,omitempty"`
	CurrentPrice  *float64 `json:"current_price,omitempty"`
	AssessedValue *float64 `json:"assessed_value,omitempty"`
	UnrealizedPL  *float64 `json:"unrealized_pl,omitempty"`
	UnrealizedPct *float64 `json:"unrealized_pct,omitempty"`

	// Market enrichment, joined by canonical code.
	PBR              *float64 `json:"pbr,omitempty"`
	YieldPct         *float64 `json:"yield_pct,omitempty"`
	MarketCap        *float64 `json:"market_cap,omitempty"`
	DividendPerShare *float64 `json:"dividend_per_share,omitempty"`
	Sector           string   `json:"sector,omitempty"`
	Market           string   `json:"market,omitempty"`
}
