package jquants

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	apperrors "jqscreen/internal/errors"
	"jqscreen/pkg/contracts/domain"
)

// serviceZone is the timezone the service's trading calendar runs in.
var serviceZone = time.FixedZone("JST", 9*60*60)

var isoDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// probeResult is the explicit outcome of probing one date for quotes:
// a (possibly empty) snapshot, a detected subscription boundary, or a
// probe failure. Exactly one branch is populated.
type probeResult struct {
	quotes   []domain.PriceRecord
	boundary *time.Time
	err      error
}

// LatestTradingDate finds the most recent date the service has price data
// for. It first probes today in the service's timezone; if the service
// rejects the request because the caller's tier stops earlier, the boundary
// date is extracted from the error text, recorded on the session, and the
// search restarts there. From the start date it probes backward day by day.
// Individual probe failures are logged and treated as "no data that day";
// only exhausting the whole window is fatal.
func (c *Client) LatestTradingDate(ctx context.Context) (time.Time, error) {
	now := c.clock.Now().In(serviceZone)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, serviceZone)

	searchFrom := today
	switch res := c.probeQuotes(ctx, today); {
	case res.err == nil && res.boundary == nil && len(res.quotes) > 0:
		c.logger.Info("latest trading date", slog.String("date", today.Format(wireDateFormat)))
		return today, nil
	case res.boundary != nil:
		c.session.setSubscriptionBoundary(*res.boundary)
		c.logger.Warn("service tier data window ends before today",
			slog.String("boundary", res.boundary.Format(isoDateFormat)),
			slog.Int("days_behind", int(today.Sub(*res.boundary).Hours()/24)))
		searchFrom = *res.boundary
	case res.err != nil:
		c.logger.Warn("initial trading-date probe failed", slog.String("error", res.err.Error()))
	}

	var probeErrors []string
	for i := 0; i < c.policy.DateSearchDays; i++ {
		candidate := searchFrom.AddDate(0, 0, -i)

		switch res := c.probeQuotes(ctx, candidate); {
		case res.err != nil:
			if ctx.Err() != nil {
				return time.Time{}, ctx.Err()
			}
			probeErrors = append(probeErrors, fmt.Sprintf("%s: %v", candidate.Format(wireDateFormat), res.err))
			c.logger.Warn("trading-date probe failed",
				slog.String("date", candidate.Format(wireDateFormat)),
				slog.String("error", res.err.Error()))
		case res.boundary != nil:
			probeErrors = append(probeErrors, fmt.Sprintf("%s: outside subscription window", candidate.Format(wireDateFormat)))
		case len(res.quotes) > 0:
			c.logger.Info("latest trading date", slog.String("date", candidate.Format(wireDateFormat)))
			return candidate, nil
		default:
			c.logger.Debug("no quotes, market closed", slog.String("date", candidate.Format(wireDateFormat)))
		}

		if err := c.clock.Sleep(ctx, c.policy.ProbeDelay); err != nil {
			return time.Time{}, err
		}
	}

	window := fmt.Sprintf("%d days back from %s", c.policy.DateSearchDays, searchFrom.Format(isoDateFormat))
	return time.Time{}, apperrors.NewDataUnavailableError("daily quotes", window, probeErrors)
}

// probeQuotes checks one date for price data. A client rejection whose body
// names the tier's served date range is mapped to an explicit boundary
// outcome instead of an error, so boundary detection is an ordinary branch.
func (c *Client) probeQuotes(ctx context.Context, date time.Time) probeResult {
	params := url.Values{"date": {date.Format(wireDateFormat)}}
	body, err := c.Get(ctx, "prices/daily_quotes", params)
	if err != nil {
		var clientErr *apperrors.ClientError
		if errors.As(err, &clientErr) && clientErr.Status == http.StatusBadRequest {
			if boundary, ok := extractBoundaryDate(clientErr.Body); ok {
				return probeResult{boundary: &boundary}
			}
		}
		return probeResult{err: err}
	}

	raw, ok := body["daily_quotes"]
	if !ok {
		return probeResult{}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return probeResult{err: fmt.Errorf("malformed daily_quotes array: %w", err)}
	}
	return probeResult{quotes: decodeQuotes(items, c.logger)}
}

// extractBoundaryDate scans free-form error text for ISO dates. The service
// reports the served range as two dates; the later one is the newest date
// the tier will serve.
func extractBoundaryDate(body string) (time.Time, bool) {
	matches := isoDatePattern.FindAllString(body, -1)
	if len(matches) < 2 {
		return time.Time{}, false
	}

	var latest time.Time
	for _, m := range matches {
		t, err := time.ParseInLocation(isoDateFormat, m, serviceZone)
		if err != nil {
			continue
		}
		if t.After(latest) {
			latest = t
		}
	}
	if latest.IsZero() {
		return time.Time{}, false
	}
	return latest, true
}
