package jquants

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "jqscreen/internal/errors"
	"jqscreen/pkg/contracts/domain"
)

// statementPriority ranks disclosure period types for reduction; annual
// results beat half-year, half-year beats quarters, anything unrecognized
// loses to all of them.
func statementPriority(periodType string) int {
	switch periodType {
	case domain.PeriodFY:
		return 0
	case domain.Period2Q:
		return 1
	case domain.PeriodQ3:
		return 2
	case domain.PeriodQ1:
		return 3
	default:
		return 99
	}
}

// CollectStatements gathers financial-statement disclosures over a trailing
// window and reduces them to the latest meaningful record per security.
//
// The scan anchors at the session's subscription boundary when one was
// detected, otherwise at today: disclosure dates are sampled every third
// day going backward, weekdays only, one paginated fetch per sampled date.
// A failed date is logged and skipped; the collection is fatal only when
// the whole window yields nothing.
func (c *Client) CollectStatements(ctx context.Context, windowDays int) ([]domain.StatementRecord, error) {
	anchor, ok := c.session.SubscriptionBoundary()
	if !ok {
		now := c.clock.Now().In(serviceZone)
		anchor = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, serviceZone)
	}

	var scanDates []time.Time
	for i := 0; i < windowDays; i += 3 {
		d := anchor.AddDate(0, 0, -i)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		scanDates = append(scanDates, d)
	}

	var collected []domain.StatementRecord
	for idx, date := range scanDates {
		if idx%10 == 0 {
			c.logger.Info("statement scan progress",
				slog.Int("processed", idx),
				slog.Int("total", len(scanDates)))
		}

		records, err := c.StatementsForDate(ctx, date)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Debug("statement fetch failed for date, skipping",
				slog.String("date", date.Format(wireDateFormat)),
				slog.String("error", err.Error()))
			continue
		}
		collected = append(collected, records...)
	}

	if len(collected) == 0 {
		window := fmt.Sprintf("%d-day scan ending %s", windowDays, anchor.Format(isoDateFormat))
		return nil, apperrors.NewDataUnavailableError("statements", window, nil)
	}

	reduced := ReduceStatements(collected)
	c.logger.Info("statement collection complete",
		slog.Int("collected", len(collected)),
		slog.Int("securities", len(reduced)))
	return reduced, nil
}

// ReduceStatements keeps exactly one record per canonical code: the record
// with the best period priority, ties broken by the most recent disclosure
// date. The reduction is order-independent.
func ReduceStatements(records []domain.StatementRecord) []domain.StatementRecord {
	best := make(map[string]domain.StatementRecord, len(records))
	var order []string

	for _, rec := range records {
		code := domain.CanonicalCode(rec.Code)
		if code == "" {
			continue
		}

		current, seen := best[code]
		if !seen {
			best[code] = rec
			order = append(order, code)
			continue
		}

		recPriority := statementPriority(rec.PeriodType)
		curPriority := statementPriority(current.PeriodType)
		if recPriority < curPriority ||
			(recPriority == curPriority && rec.DisclosedDate.After(current.DisclosedDate)) {
			best[code] = rec
		}
	}

	reduced := make([]domain.StatementRecord, 0, len(best))
	for _, code := range order {
		reduced = append(reduced, best[code])
	}
	return reduced
}
