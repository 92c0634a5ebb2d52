package screening

import (
	"context"
	"log/slog"
	"sort"

	"jqscreen/pkg/contracts/domain"
)

// HistoryFetcher supplies the full statement history of one security.
type HistoryFetcher interface {
	StatementsForCode(ctx context.Context, code string) ([]domain.StatementRecord, error)
}

// DividendTrendEvaluator checks a security's recent annual dividends for a
// cut. It is applied only to securities that already passed the threshold
// filter, since each evaluation costs one network round-trip.
type DividendTrendEvaluator struct {
	fetcher       HistoryFetcher
	lookbackYears int
	logger        *slog.Logger
}

// NewDividendTrendEvaluator creates an evaluator looking back the given
// number of annual disclosures.
func NewDividendTrendEvaluator(fetcher HistoryFetcher, lookbackYears int, logger *slog.Logger) *DividendTrendEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &DividendTrendEvaluator{
		fetcher:       fetcher,
		lookbackYears: lookbackYears,
		logger:        logger,
	}
}

// Evaluate reports whether the security's annual dividend was never cut
// inside the look-back window. The bias is deliberately conservative: a
// history fetch failure, or fewer than two usable annual values, cannot
// disprove a cut and therefore passes.
func (ev *DividendTrendEvaluator) Evaluate(ctx context.Context, code string) bool {
	history, err := ev.fetcher.StatementsForCode(ctx, code)
	if err != nil {
		ev.logger.Debug("dividend history fetch failed, keeping security",
			slog.String("code", code),
			slog.String("error", err.Error()))
		return true
	}
	return NoDividendCut(AnnualDividends(history, ev.lookbackYears))
}

// FilterByTrend returns the subset of entities whose dividend trend passes.
func (ev *DividendTrendEvaluator) FilterByTrend(ctx context.Context, entities []domain.ReconciledEntity) []domain.ReconciledEntity {
	kept := make([]domain.ReconciledEntity, 0, len(entities))
	for _, e := range entities {
		if ev.Evaluate(ctx, e.Code) {
			kept = append(kept, e)
		}
	}
	ev.logger.Info("dividend-trend check complete",
		slog.Int("candidates", len(entities)),
		slog.Int("without_cut", len(kept)))
	return kept
}

// AnnualDividends extracts the most recent annual result dividends from a
// statement history, newest first, at most lookbackYears values. Only
// annual-period disclosures with a reported result value count.
func AnnualDividends(history []domain.StatementRecord, lookbackYears int) []float64 {
	annual := make([]domain.StatementRecord, 0, len(history))
	for _, rec := range history {
		if rec.PeriodType == domain.PeriodFY {
			annual = append(annual, rec)
		}
	}
	sort.SliceStable(annual, func(i, j int) bool {
		return annual[i].DisclosedDate.After(annual[j].DisclosedDate)
	})
	if len(annual) > lookbackYears {
		annual = annual[:lookbackYears]
	}

	values := make([]float64, 0, len(annual))
	for _, rec := range annual {
		if rec.ResultDividendAnnual != nil {
			values = append(values, *rec.ResultDividendAnnual)
		}
	}
	return values
}

// NoDividendCut walks consecutive dividend values newest to oldest and
// reports false when any newer value is strictly below the one before it.
// Fewer than two values pass unconditionally.
func NoDividendCut(values []float64) bool {
	if len(values) < 2 {
		return true
	}
	for i := 0; i < len(values)-1; i++ {
		if values[i] < values[i+1] {
			return false
		}
	}
	return true
}
