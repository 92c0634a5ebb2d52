package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthErrorWrapsCause(t *testing.T) {
	cause := fmt.Errorf("unexpected status 401")
	err := NewAuthError("auth_user", cause)

	assert.Contains(t, err.Error(), "auth_user")
	assert.Contains(t, err.Error(), "401")
	assert.True(t, stderrors.Is(err, cause))
}

func TestClientErrorTruncatesLongBody(t *testing.T) {
	err := NewClientError("listed/info", 400, strings.Repeat("x", 500))

	assert.Len(t, err.Body, 500, "original body kept intact")
	assert.Contains(t, err.Error(), "...")
	assert.Less(t, len(err.Error()), 300)
}

func TestTransientErrorReportsAttempts(t *testing.T) {
	err := NewTransientError("fins/statements", 4, fmt.Errorf("server error 503"))

	assert.Contains(t, err.Error(), "after 4 attempts")
	assert.Contains(t, err.Error(), "fins/statements")

	var transient *TransientError
	require.ErrorAs(t, fmt.Errorf("screening failed: %w", err), &transient)
	assert.Equal(t, 4, transient.Attempts)
}

func TestDataUnavailableErrorKeepsLastFive(t *testing.T) {
	var probeErrors []string
	for i := 1; i <= 8; i++ {
		probeErrors = append(probeErrors, fmt.Sprintf("probe %d failed", i))
	}

	err := NewDataUnavailableError("daily quotes", "14 days back from 2025-12-05", probeErrors)

	require.Len(t, err.LastErrors, 5)
	assert.Equal(t, "probe 4 failed", err.LastErrors[0])
	assert.Equal(t, "probe 8 failed", err.LastErrors[4])
	assert.Contains(t, err.Error(), "no daily quotes data available")
}

func TestDataUnavailableErrorWithoutCauses(t *testing.T) {
	err := NewDataUnavailableError("statements", "120-day scan ending 2025-12-02", nil)

	assert.NotContains(t, err.Error(), "recent errors")
	assert.Contains(t, err.Error(), "120-day scan")
}
