// Package errors defines the error taxonomy for the screening run.
//
// Errors split into two classes. Fatal errors (AuthError, ClientError,
// TransientError, DataUnavailableError) abort the run and carry enough
// context to diagnose credential, entitlement, or connectivity problems.
// Soft per-item failures are never represented here: callers absorb them at
// the smallest scope (one sampled date, one security) and degrade to
// "missing data".
package errors

import (
	"fmt"
	"strings"
)

// AuthError reports a failed credential exchange. Authentication failures
// are non-transient: no retry is attempted and the error surfaces
// immediately so configuration problems show up early.
type AuthError struct {
	Step string // "auth_user" or "auth_refresh"
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed at %s: %v", e.Step, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError wraps a credential-exchange failure for the given step.
func NewAuthError(step string, err error) *AuthError {
	return &AuthError{Step: step, Err: err}
}

// ClientError reports a non-retryable client-side rejection (4xx other than
// rate limit). The response body is kept for caller diagnosis.
type ClientError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client error %d [%s]: %s", e.Status, e.Endpoint, truncate(e.Body, 200))
}

// NewClientError builds a ClientError for the given endpoint and response.
func NewClientError(endpoint string, status int, body string) *ClientError {
	return &ClientError{Endpoint: endpoint, Status: status, Body: body}
}

// TransientError reports that the retry budget for one logical request was
// exhausted on connectivity, timeout, or server-error responses.
type TransientError struct {
	Endpoint string
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("request failed after %d attempts [%s]: %v", e.Attempts, e.Endpoint, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps the last failure seen before the budget ran out.
func NewTransientError(endpoint string, attempts int, err error) *TransientError {
	return &TransientError{Endpoint: endpoint, Attempts: attempts, Err: err}
}

// DataUnavailableError reports that a required dataset could not be obtained
// at all: no trading date found inside the search window, or zero statements
// collected across the scan window. LastErrors holds the most recent probe
// failures for diagnosis.
type DataUnavailableError struct {
	Dataset    string
	Window     string
	LastErrors []string
}

func (e *DataUnavailableError) Error() string {
	msg := fmt.Sprintf("no %s data available (%s)", e.Dataset, e.Window)
	if len(e.LastErrors) > 0 {
		msg += "; recent errors: " + strings.Join(e.LastErrors, "; ")
	}
	return msg
}

// NewDataUnavailableError builds a DataUnavailableError keeping at most the
// last five underlying errors.
func NewDataUnavailableError(dataset, window string, lastErrors []string) *DataUnavailableError {
	const keep = 5
	if len(lastErrors) > keep {
		lastErrors = lastErrors[len(lastErrors)-keep:]
	}
	return &DataUnavailableError{Dataset: dataset, Window: window, LastErrors: lastErrors}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
