package screening

import (
	"log/slog"
	"regexp"

	"jqscreen/internal/config"
	"jqscreen/pkg/contracts/domain"
)

// domesticCodePattern matches the domestic four-digit numbering scheme.
// Funds and foreign listings carry codes outside it and are excluded.
var domesticCodePattern = regexp.MustCompile(`^\d{4}$`)

// ApplyFilter keeps the securities that satisfy every threshold. Rows with
// any undefined required derived field are excluded, never an error.
func ApplyFilter(entities []domain.ReconciledEntity, criteria config.ScreenConfig, logger *slog.Logger) []domain.ReconciledEntity {
	if logger == nil {
		logger = slog.Default()
	}

	kept := make([]domain.ReconciledEntity, 0, len(entities))
	for _, e := range entities {
		if e.Price == nil || e.PBR == nil || e.YieldPct == nil || e.MarketCap == nil {
			continue
		}
		if *e.PBR > criteria.PBRMax {
			continue
		}
		if *e.YieldPct < criteria.YieldMinPct {
			continue
		}
		if *e.MarketCap < criteria.MarketCapMin {
			continue
		}
		if !domesticCodePattern.MatchString(e.Code) {
			continue
		}
		kept = append(kept, e)
	}

	logger.Info("threshold filter applied",
		slog.Int("before", len(entities)),
		slog.Int("after", len(kept)))
	return kept
}
