package holdings

import (
	"jqscreen/pkg/contracts/domain"
)

// Enrich left-joins market data from the reconciled universe onto the held
// positions by canonical code. Positions without a match keep their
// pass-through fields and nil market fields.
func Enrich(positions []domain.Position, universe []domain.ReconciledEntity) []domain.Position {
	byCode := make(map[string]domain.ReconciledEntity, len(universe))
	for _, e := range universe {
		if _, dup := byCode[e.Code]; !dup {
			byCode[e.Code] = e
		}
	}

	enriched := make([]domain.Position, len(positions))
	for i, pos := range positions {
		entity, ok := byCode[domain.CanonicalCode(pos.Code)]
		if ok {
			pos.PBR = entity.PBR
			pos.YieldPct = entity.YieldPct
			pos.MarketCap = entity.MarketCap
			pos.DividendPerShare = entity.DividendPerShare
			pos.Sector = entity.Sector17
			pos.Market = entity.Market
			if pos.CurrentPrice == nil {
				pos.CurrentPrice = entity.Price
			}
		}
		enriched[i] = pos
	}
	return enriched
}
