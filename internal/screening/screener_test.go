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

type fakeMarket struct {
	listings   []domain.ListingRecord
	prices     []domain.PriceRecord
	statements []domain.StatementRecord
	histories  map[string][]domain.StatementRecord

	listedErr error
	dateErr   error
}

func (m *fakeMarket) ListedInfo(context.Context) ([]domain.ListingRecord, error) {
	return m.listings, m.listedErr
}

func (m *fakeMarket) LatestTradingDate(context.Context) (time.Time, error) {
	if m.dateErr != nil {
		return time.Time{}, m.dateErr
	}
	return time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC), nil
}

func (m *fakeMarket) DailyQuotes(context.Context, time.Time) ([]domain.PriceRecord, error) {
	return m.prices, nil
}

func (m *fakeMarket) CollectStatements(context.Context, int) ([]domain.StatementRecord, error) {
	return m.statements, nil
}

func (m *fakeMarket) StatementsForCode(_ context.Context, code string) ([]domain.StatementRecord, error) {
	return m.histories[code], nil
}

func TestScreenerRunEndToEnd(t *testing.T) {
	// One security passing every stage, one failing the threshold filter,
	// one cut dividend caught by the trend check.
	market := &fakeMarket{
		listings: []domain.ListingRecord{
			{Code: "7203", Name: "Value Pick"},
			{Code: "6758", Name: "Too Expensive"},
			{Code: "8306", Name: "Dividend Cutter"},
		},
		prices: []domain.PriceRecord{
			{Code: "72030", Close: fptr(3000)},
			{Code: "67580", Close: fptr(15000)},
			{Code: "83060", Close: fptr(1500)},
		},
		statements: []domain.StatementRecord{
			{Code: "72030", PeriodType: domain.PeriodFY, BookValuePerShare: fptr(3000), ResultDividendAnnual: fptr(90), SharesOutstanding: fptr(1e8)},
			{Code: "67580", PeriodType: domain.PeriodFY, BookValuePerShare: fptr(3000), ResultDividendAnnual: fptr(450), SharesOutstanding: fptr(1e8)},
			{Code: "83060", PeriodType: domain.PeriodFY, BookValuePerShare: fptr(1500), ResultDividendAnnual: fptr(45), SharesOutstanding: fptr(1e8)},
		},
		histories: map[string][]domain.StatementRecord{
			"7203": {
				annualRecord("2025-05-08", fptr(90)),
				annualRecord("2024-05-09", fptr(85)),
				annualRecord("2023-05-10", fptr(80)),
			},
			"8306": {
				annualRecord("2025-05-08", fptr(45)),
				annualRecord("2024-05-09", fptr(60)),
				annualRecord("2023-05-10", fptr(55)),
			},
		},
	}

	screener := NewScreener(market, testCriteria(), nil)
	result, err := screener.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2025-12-05", result.TradingDate.Format("2006-01-02"))
	assert.Len(t, result.Universe, 3, "every listing stays in the universe")

	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "7203", result.Candidates[0].Code)
	assert.Equal(t, "Value Pick", result.Candidates[0].Name)
}

func TestScreenerRunAbortsOnFatalAcquisitionError(t *testing.T) {
	market := &fakeMarket{dateErr: fmt.Errorf("no trading date inside window")}

	_, err := NewScreener(market, testCriteria(), nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trading date")
}
