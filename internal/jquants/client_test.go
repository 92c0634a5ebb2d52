package jquants

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jqscreen/internal/config"
	apperrors "jqscreen/internal/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func testPolicy() config.FetchConfig {
	return config.FetchConfig{
		MaxAttempts:        4,
		RateLimitBackoff:   60 * time.Second,
		ServerErrorBackoff: 10 * time.Second,
		TransportBackoff:   10 * time.Second,
		PageDelay:          0,
		ProbeDelay:         0,
		AuthTimeout:        5 * time.Second,
		RequestTimeout:     5 * time.Second,
		DateSearchDays:     14,
	}
}

func newTestClient(t *testing.T, rt roundTripFunc, clock Clock) *Client {
	t.Helper()
	session := &Session{idToken: "test-token"}
	return NewClient("https://example.test/v1", session, testPolicy(), nil,
		WithHTTPClient(&http.Client{Transport: rt}),
		WithClock(clock),
	)
}

func TestGetAttachesBearerToken(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		gotAuth = r.Header.Get("Authorization")
		return jsonResponse(200, `{}`), nil
	}, &fakeClock{})

	_, err := client.Get(context.Background(), "listed/info", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestGetRetriesRateLimitWithLinearBackoff(t *testing.T) {
	attempts := 0
	clock := &fakeClock{}
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		attempts++
		if attempts == 1 {
			return jsonResponse(429, `{"message":"slow down"}`), nil
		}
		return jsonResponse(200, `{"ok":true}`), nil
	}, clock)

	_, err := client.Get(context.Background(), "listed/info", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, attempts)
	assert.LessOrEqual(t, attempts, 4)
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 60*time.Second, clock.sleeps[0], "first rate-limit wait is 1x the backoff unit")
}

func TestGetRateLimitBackoffScalesWithAttempt(t *testing.T) {
	attempts := 0
	clock := &fakeClock{}
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		attempts++
		if attempts <= 2 {
			return jsonResponse(429, ``), nil
		}
		return jsonResponse(200, `{}`), nil
	}, clock)

	_, err := client.Get(context.Background(), "listed/info", nil)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{60 * time.Second, 120 * time.Second}, clock.sleeps)
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		attempts++
		return jsonResponse(404, `{"message":"no such endpoint"}`), nil
	}, &fakeClock{})

	_, err := client.Get(context.Background(), "listed/info", nil)

	var clientErr *apperrors.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, 404, clientErr.Status)
	assert.Contains(t, clientErr.Body, "no such endpoint")
	assert.Equal(t, 1, attempts, "client errors must not be retried")
}

func TestGetRetriesServerErrorsThenExhausts(t *testing.T) {
	attempts := 0
	clock := &fakeClock{}
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		attempts++
		return jsonResponse(503, `{"message":"unavailable"}`), nil
	}, clock)

	_, err := client.Get(context.Background(), "fins/statements", nil)

	var transient *apperrors.TransientError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, 4, transient.Attempts)
	// Server-error waits scale linearly with the attempt number.
	assert.Equal(t, []time.Duration{
		10 * time.Second, 20 * time.Second, 30 * time.Second, 40 * time.Second,
	}, clock.sleeps)
}

func TestGetRetriesTransportFailuresWithFixedWait(t *testing.T) {
	attempts := 0
	clock := &fakeClock{}
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return nil, fmt.Errorf("connection reset")
		}
		return jsonResponse(200, `{}`), nil
	}, clock)

	_, err := client.Get(context.Background(), "listed/info", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, clock.sleeps)
}

func TestGetMalformedBodyIsFatal(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"broken`), nil
	}, &fakeClock{})

	_, err := client.Get(context.Background(), "listed/info", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed response body")
}

func TestGetPaginatedConcatenatesPagesInOrder(t *testing.T) {
	var requests []string
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		requests = append(requests, r.URL.Query().Get("pagination_key"))
		switch len(requests) {
		case 1:
			return jsonResponse(200, `{"info":[{"Code":"1301"}],"pagination_key":"p2"}`), nil
		case 2:
			return jsonResponse(200, `{"info":[{"Code":"1302"}],"pagination_key":"p3"}`), nil
		default:
			return jsonResponse(200, `{"info":[{"Code":"1303"}]}`), nil
		}
	}, &fakeClock{})

	items, err := client.GetPaginated(context.Background(), "listed/info", "info", nil)
	require.NoError(t, err)

	require.Len(t, requests, 3, "one request per page")
	assert.Equal(t, []string{"", "p2", "p3"}, requests, "cursor fed back in order")
	require.Len(t, items, 3)
	assert.Contains(t, string(items[0]), "1301")
	assert.Contains(t, string(items[2]), "1303")
}

func TestGetPaginatedEmptyCursorStopsPagination(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(200, `{"info":[],"pagination_key":""}`), nil
	}, &fakeClock{})

	_, err := client.GetPaginated(context.Background(), "listed/info", "info", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
