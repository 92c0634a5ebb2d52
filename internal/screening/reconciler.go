// Package screening merges the three acquisition datasets into one
// ratio-annotated universe and evaluates each security against the
// multi-factor screen, including the multi-year dividend-trend check.
package screening

import (
	"jqscreen/pkg/contracts/domain"
)

// Reconcile left-joins the listing registry against the price snapshot and
// the reduced statements, keyed on the canonical code. Missing matches
// leave the corresponding fields nil; no row is dropped. Derived ratios are
// computed only when their denominators are present and positive.
func Reconcile(listings []domain.ListingRecord, prices []domain.PriceRecord, statements []domain.StatementRecord) []domain.ReconciledEntity {
	priceByCode := make(map[string]domain.PriceRecord, len(prices))
	for _, p := range prices {
		priceByCode[domain.CanonicalCode(p.Code)] = p
	}
	statementByCode := make(map[string]domain.StatementRecord, len(statements))
	for _, s := range statements {
		statementByCode[domain.CanonicalCode(s.Code)] = s
	}

	entities := make([]domain.ReconciledEntity, 0, len(listings))
	for _, listing := range listings {
		code := domain.CanonicalCode(listing.Code)
		entity := domain.ReconciledEntity{
			Code:     code,
			Name:     listing.Name,
			Sector17: listing.Sector17,
			Sector33: listing.Sector33,
			Market:   listing.Market,
		}

		if price, ok := priceByCode[code]; ok {
			entity.Price = price.EffectivePrice()
			entity.Volume = price.Volume
		}
		if stmt, ok := statementByCode[code]; ok {
			entity.BookValuePerShare = stmt.BookValuePerShare
			entity.DividendPerShare = stmt.DividendPerShare()
			entity.SharesOutstanding = stmt.SharesOutstanding
		}

		deriveRatios(&entity)
		entities = append(entities, entity)
	}
	return entities
}

func deriveRatios(e *domain.ReconciledEntity) {
	if e.Price == nil || *e.Price <= 0 {
		return
	}
	price := *e.Price

	if e.BookValuePerShare != nil && *e.BookValuePerShare > 0 {
		pbr := price / *e.BookValuePerShare
		e.PBR = &pbr
	}
	if e.DividendPerShare != nil {
		yield := *e.DividendPerShare / price * 100
		e.YieldPct = &yield
	}
	if e.SharesOutstanding != nil {
		mcap := *e.SharesOutstanding * price
		e.MarketCap = &mcap
	}
}
