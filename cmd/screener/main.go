// Command screener runs one acquisition-and-screening pass: it
// authenticates against the data service, discovers the latest available
// trading date, reconciles the listing, price and statement sources,
// screens for dividend-growth value candidates, enriches the locally held
// positions, and writes the investment workbook.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"jqscreen/internal/config"
	"jqscreen/internal/exporter"
	"jqscreen/internal/holdings"
	"jqscreen/internal/infrastructure"
	"jqscreen/internal/jquants"
	"jqscreen/internal/screening"
	"jqscreen/pkg/contracts"
	"jqscreen/pkg/contracts/domain"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional; JQS_* env vars apply on top)")
	holdingsPath := flag.String("holdings", "", "path to holdings export (.xlsx or .csv); overrides config")
	outDir := flag.String("out", "", "output directory; overrides config")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error); overrides config")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if *holdingsPath != "" {
		cfg.Paths.HoldingsFile = *holdingsPath
	}
	if *outDir != "" {
		cfg.Paths.OutputDir = *outDir
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("run failed", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("screening run starting",
		slog.String("version", contracts.Version),
		slog.Float64("pbr_max", cfg.Screen.PBRMax),
		slog.Float64("yield_min_pct", cfg.Screen.YieldMinPct),
		slog.Float64("market_cap_min", cfg.Screen.MarketCapMin),
		slog.Int("dividend_years", cfg.Screen.DividendYears))

	// Held positions are optional input: a missing or unreadable export
	// degrades to a screening-only run.
	var positions []domain.Position
	if cfg.Paths.HoldingsFile != "" {
		var err error
		positions, err = holdings.Load(cfg.Paths.HoldingsFile, logger)
		if err != nil {
			logger.Warn("holdings ingestion failed, continuing with screening only",
				slog.String("file", cfg.Paths.HoldingsFile),
				slog.String("error", err.Error()))
			positions = nil
		}
	}

	authClient := &http.Client{Timeout: cfg.Fetch.AuthTimeout}
	session, err := jquants.Authenticate(ctx, cfg.JQuants, authClient, logger)
	if err != nil {
		return err
	}

	client := jquants.NewClient(cfg.JQuants.BaseURL, session, cfg.Fetch, logger)
	screener := screening.NewScreener(client, cfg.Screen, logger)

	result, err := screener.Run(ctx)
	if err != nil {
		return err
	}

	if boundary, ok := session.SubscriptionBoundary(); ok {
		logger.Warn("service tier lags behind today; results use older data",
			slog.String("data_as_of", boundary.Format("2006-01-02")))
	}

	positions = holdings.Enrich(positions, result.Universe)

	stamp := time.Now().Format("20060102")
	workbookPath := filepath.Join(cfg.Paths.OutputDir, fmt.Sprintf("investment_report_%s.xlsx", stamp))
	if err := exporter.NewReportWriter(logger).WriteWorkbook(workbookPath, positions, result.Candidates, result.TradingDate); err != nil {
		return err
	}

	if len(positions) > 0 {
		csvPath := filepath.Join(cfg.Paths.OutputDir, "holdings.csv")
		if err := exporter.NewCSVWriter(logger).WriteHoldings(csvPath, positions); err != nil {
			return err
		}
	}

	logTopCandidates(logger, result.Candidates)
	logger.Info("screening run complete",
		slog.String("workbook", workbookPath),
		slog.Int("candidates", len(result.Candidates)))
	return nil
}

// logTopCandidates surfaces the five highest-yielding candidates in the
// log so a run is useful without opening the workbook.
func logTopCandidates(logger *slog.Logger, candidates []domain.ReconciledEntity) {
	if len(candidates) == 0 {
		return
	}

	sorted := make([]domain.ReconciledEntity, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		yi, yj := sorted[i].YieldPct, sorted[j].YieldPct
		if yi == nil || yj == nil {
			return yj == nil && yi != nil
		}
		return *yi > *yj
	})
	if len(sorted) > 5 {
		sorted = sorted[:5]
	}

	for _, c := range sorted {
		attrs := []any{
			slog.String("code", c.Code),
			slog.String("name", c.Name),
		}
		if c.YieldPct != nil {
			attrs = append(attrs, slog.String("yield", fmt.Sprintf("%.2f%%", *c.YieldPct)))
		}
		if c.PBR != nil {
			attrs = append(attrs, slog.String("pbr", fmt.Sprintf("%.2f", *c.PBR)))
		}
		logger.Info("top candidate", attrs...)
	}
}
