package screening

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"jqscreen/internal/config"
	"jqscreen/pkg/contracts/domain"
)

// MarketData is the acquisition surface the screener consumes. The
// production implementation is the jquants client; tests substitute fakes.
type MarketData interface {
	ListedInfo(ctx context.Context) ([]domain.ListingRecord, error)
	LatestTradingDate(ctx context.Context) (time.Time, error)
	DailyQuotes(ctx context.Context, date time.Time) ([]domain.PriceRecord, error)
	CollectStatements(ctx context.Context, windowDays int) ([]domain.StatementRecord, error)
	StatementsForCode(ctx context.Context, code string) ([]domain.StatementRecord, error)
}

// Screener runs the full acquisition, reconciliation and screening
// sequence for one invocation.
type Screener struct {
	market   MarketData
	criteria config.ScreenConfig
	logger   *slog.Logger
}

// NewScreener creates a screener over the given market-data source.
func NewScreener(market MarketData, criteria config.ScreenConfig, logger *slog.Logger) *Screener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Screener{market: market, criteria: criteria, logger: logger}
}

// Result is the outcome of one screening run.
type Result struct {
	// TradingDate is the discovered as-of date of the price snapshot.
	TradingDate time.Time
	// Universe is the full reconciled, ratio-annotated table.
	Universe []domain.ReconciledEntity
	// Candidates are the securities passing both the threshold filter and
	// the dividend-trend check, in universe order.
	Candidates []domain.ReconciledEntity
}

// Run executes the four acquisition and screening stages in order. Control
// flows top-down once; fatal acquisition errors abort the run.
func (s *Screener) Run(ctx context.Context) (*Result, error) {
	s.logger.Info("fetching listing registry")
	listings, err := s.market.ListedInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing registry: %w", err)
	}

	s.logger.Info("locating latest trading date")
	tradingDate, err := s.market.LatestTradingDate(ctx)
	if err != nil {
		return nil, fmt.Errorf("trading date: %w", err)
	}

	prices, err := s.market.DailyQuotes(ctx, tradingDate)
	if err != nil {
		return nil, fmt.Errorf("price snapshot: %w", err)
	}

	s.logger.Info("collecting statements", slog.Int("window_days", s.criteria.StatementScanDays))
	statements, err := s.market.CollectStatements(ctx, s.criteria.StatementScanDays)
	if err != nil {
		return nil, fmt.Errorf("statements: %w", err)
	}

	universe := Reconcile(listings, prices, statements)
	filtered := ApplyFilter(universe, s.criteria, s.logger)

	evaluator := NewDividendTrendEvaluator(s.market, s.criteria.DividendYears, s.logger)
	candidates := evaluator.FilterByTrend(ctx, filtered)

	s.logger.Info("screening complete",
		slog.String("trading_date", tradingDate.Format("2006-01-02")),
		slog.Int("universe", len(universe)),
		slog.Int("candidates", len(candidates)))

	return &Result{
		TradingDate: tradingDate,
		Universe:    universe,
		Candidates:  candidates,
	}, nil
}
