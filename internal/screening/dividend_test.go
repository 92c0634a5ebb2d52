package screening

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jqscreen/pkg/contracts/domain"
)

type fakeHistoryFetcher struct {
	histories map[string][]domain.StatementRecord
	err       error
	calls     []string
}

func (f *fakeHistoryFetcher) StatementsForCode(_ context.Context, code string) ([]domain.StatementRecord, error) {
	f.calls = append(f.calls, code)
	if f.err != nil {
		return nil, f.err
	}
	return f.histories[code], nil
}

func annualRecord(disclosed string, dividend *float64) domain.StatementRecord {
	d, _ := time.Parse("2006-01-02", disclosed)
	return domain.StatementRecord{
		Code:                 "7203",
		PeriodType:           domain.PeriodFY,
		DisclosedDate:        d,
		ResultDividendAnnual: dividend,
	}
}

func TestNoDividendCut(t *testing.T) {
	tests := []struct {
		name   string
		values []float64 // newest first
		want   bool
	}{
		{"raised every year", []float64{60, 55, 50}, true},
		{"flat", []float64{50, 50, 50}, true},
		{"cut between newest and middle", []float64{45, 50, 40}, false},
		{"cut at the oldest pair", []float64{50, 40, 45}, false},
		{"single value", []float64{50}, true},
		{"empty", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NoDividendCut(tt.values))
		})
	}
}

func TestAnnualDividendsNewestFirstWithinLookback(t *testing.T) {
	history := []domain.StatementRecord{
		annualRecord("2023-05-10", fptr(50)),
		annualRecord("2025-05-08", fptr(60)),
		annualRecord("2022-05-11", fptr(48)),
		annualRecord("2024-05-09", fptr(55)),
	}

	values := AnnualDividends(history, 3)
	assert.Equal(t, []float64{60, 55, 50}, values)
}

func TestAnnualDividendsIgnoresQuarterlyRows(t *testing.T) {
	history := []domain.StatementRecord{
		annualRecord("2025-05-08", fptr(60)),
		{Code: "7203", PeriodType: domain.Period2Q, DisclosedDate: time.Date(2025, 11, 5, 0, 0, 0, 0, time.UTC), ResultDividendAnnual: fptr(100)},
	}

	values := AnnualDividends(history, 3)
	assert.Equal(t, []float64{60}, values)
}

func TestAnnualDividendsDropsMissingValuesAfterTruncation(t *testing.T) {
	// The newest annual row has no reported value. It still consumes one of
	// the look-back slots before missing values are dropped.
	history := []domain.StatementRecord{
		annualRecord("2025-05-08", nil),
		annualRecord("2024-05-09", fptr(55)),
		annualRecord("2023-05-10", fptr(50)),
		annualRecord("2022-05-11", fptr(48)),
	}

	values := AnnualDividends(history, 3)
	assert.Equal(t, []float64{55, 50}, values)
}

func TestEvaluatePassesOnFetchFailure(t *testing.T) {
	fetcher := &fakeHistoryFetcher{err: fmt.Errorf("network down")}
	ev := NewDividendTrendEvaluator(fetcher, 3, nil)

	assert.True(t, ev.Evaluate(context.Background(), "7203"), "an unverifiable history cannot disprove a cut")
}

func TestFilterByTrend(t *testing.T) {
	fetcher := &fakeHistoryFetcher{histories: map[string][]domain.StatementRecord{
		"7203": {
			annualRecord("2025-05-08", fptr(60)),
			annualRecord("2024-05-09", fptr(55)),
			annualRecord("2023-05-10", fptr(50)),
		},
		"8306": {
			annualRecord("2025-05-08", fptr(40)),
			annualRecord("2024-05-09", fptr(50)),
		},
	}}
	ev := NewDividendTrendEvaluator(fetcher, 3, nil)

	entities := []domain.ReconciledEntity{{Code: "7203"}, {Code: "8306"}}
	kept := ev.FilterByTrend(context.Background(), entities)

	require.Len(t, kept, 1)
	assert.Equal(t, "7203", kept[0].Code)
	assert.Equal(t, []string{"7203", "8306"}, fetcher.calls, "one history fetch per candidate")
}
