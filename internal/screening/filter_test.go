package screening

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jqscreen/internal/config"
	"jqscreen/pkg/contracts/domain"
)

func testCriteria() config.ScreenConfig {
	return config.ScreenConfig{
		PBRMax:            1.5,
		YieldMinPct:       2.5,
		MarketCapMin:      1e10,
		DividendYears:     3,
		StatementScanDays: 120,
	}
}

func candidate(code string, pbr, yieldPct, mcap float64) domain.ReconciledEntity {
	return domain.ReconciledEntity{
		Code:      code,
		Price:     fptr(3000),
		PBR:       &pbr,
		YieldPct:  &yieldPct,
		MarketCap: &mcap,
	}
}

func TestApplyFilterThresholds(t *testing.T) {
	tests := []struct {
		name   string
		entity domain.ReconciledEntity
		kept   bool
	}{
		{"all thresholds satisfied", candidate("7203", 1.0, 3.0, 5e10), true},
		{"pbr exactly at maximum", candidate("7203", 1.5, 3.0, 5e10), true},
		{"pbr above maximum", candidate("7203", 1.51, 3.0, 5e10), false},
		{"yield exactly at minimum", candidate("7203", 1.0, 2.5, 5e10), true},
		{"yield below minimum", candidate("7203", 1.0, 2.49, 5e10), false},
		{"market cap exactly at minimum", candidate("7203", 1.0, 3.0, 1e10), true},
		{"market cap below minimum", candidate("7203", 1.0, 3.0, 9e9), false},
		{"non-domestic code excluded", candidate("1306A", 1.0, 3.0, 5e10), false},
		{"three digit code excluded", candidate("720", 1.0, 3.0, 5e10), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept := ApplyFilter([]domain.ReconciledEntity{tt.entity}, testCriteria(), nil)
			assert.Equal(t, tt.kept, len(kept) == 1)
		})
	}
}

func TestApplyFilterDropsRowsWithMissingFields(t *testing.T) {
	full := candidate("7203", 1.0, 3.0, 5e10)

	noPrice := full
	noPrice.Price = nil
	noPBR := full
	noPBR.PBR = nil
	noYield := full
	noYield.YieldPct = nil
	noMcap := full
	noMcap.MarketCap = nil

	kept := ApplyFilter([]domain.ReconciledEntity{full, noPrice, noPBR, noYield, noMcap}, testCriteria(), nil)
	require.Len(t, kept, 1)
	assert.Equal(t, "7203", kept[0].Code)
}

func TestApplyFilterPreservesInputOrder(t *testing.T) {
	entities := []domain.ReconciledEntity{
		candidate("8306", 0.8, 4.0, 5e10),
		candidate("7203", 1.0, 3.0, 5e10),
		candidate("9432", 1.2, 3.5, 5e10),
	}

	kept := ApplyFilter(entities, testCriteria(), nil)
	require.Len(t, kept, 3)
	assert.Equal(t, "8306", kept[0].Code)
	assert.Equal(t, "9432", kept[2].Code)
}
