package jquants

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"jqscreen/internal/config"
	apperrors "jqscreen/internal/errors"
)

// Client issues authenticated GET requests against the data service. Every
// request carries the session's bearer token and runs through a bounded
// retry loop; paginated endpoints are drained page by page in cursor order.
type Client struct {
	baseURL     string
	session     *Session
	policy      config.FetchConfig
	httpc       *http.Client
	pageLimiter *rate.Limiter
	clock       Clock
	logger      *slog.Logger
}

// Option mutates a Client during construction.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// WithClock replaces the clock used for backoff waits, mainly for tests.
func WithClock(clock Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// NewClient creates a fetcher bound to one authenticated session.
func NewClient(baseURL string, session *Session, policy config.FetchConfig, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	pageEvery := rate.Inf
	if policy.PageDelay > 0 {
		pageEvery = rate.Every(policy.PageDelay)
	}

	c := &Client{
		baseURL:     baseURL,
		session:     session,
		policy:      policy,
		httpc:       &http.Client{Timeout: policy.RequestTimeout},
		pageLimiter: rate.NewLimiter(pageEvery, 1),
		clock:       systemClock{},
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// attemptState is one state of the bounded retry machine. Making the
// policy an explicit machine keeps the backoff behavior testable with an
// injected clock and transport.
type attemptState int

const (
	stateAttempting attemptState = iota
	stateWaitingRateLimit
	stateWaitingServerError
	stateWaitingTransport
	stateExhausted
)

// Get performs one logical GET against endpoint, retrying rate-limit,
// server-error and transport failures inside the attempt budget. Client
// errors other than rate limiting are returned immediately without retry.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (map[string]json.RawMessage, error) {
	var (
		state   = stateAttempting
		attempt int
		status  int
		body    []byte
		lastErr error
	)

	for {
		switch state {
		case stateAttempting:
			if attempt >= c.policy.MaxAttempts {
				state = stateExhausted
				continue
			}
			attempt++

			var err error
			status, body, err = c.do(ctx, endpoint, params)
			switch {
			case err != nil:
				lastErr = err
				c.logger.Warn("transport failure",
					slog.String("endpoint", endpoint),
					slog.Int("attempt", attempt),
					slog.String("error", err.Error()))
				state = stateWaitingTransport
			case status == http.StatusTooManyRequests:
				lastErr = fmt.Errorf("rate limited (status 429)")
				state = stateWaitingRateLimit
			case status >= 500:
				lastErr = fmt.Errorf("server error %d: %s", status, truncateBody(body))
				c.logger.Warn("server error",
					slog.String("endpoint", endpoint),
					slog.Int("status", status),
					slog.Int("attempt", attempt))
				state = stateWaitingServerError
			case status >= 400:
				c.logger.Warn("client error",
					slog.String("endpoint", endpoint),
					slog.Int("status", status),
					slog.String("body", truncateBody(body)))
				return nil, apperrors.NewClientError(endpoint, status, string(body))
			default:
				var parsed map[string]json.RawMessage
				if err := json.Unmarshal(body, &parsed); err != nil {
					return nil, fmt.Errorf("malformed response body [%s]: %w", endpoint, err)
				}
				return parsed, nil
			}

		case stateWaitingRateLimit:
			wait := time.Duration(attempt) * c.policy.RateLimitBackoff
			c.logger.Warn("rate limited, backing off",
				slog.String("endpoint", endpoint),
				slog.Duration("wait", wait),
				slog.Int("attempt", attempt))
			if err := c.clock.Sleep(ctx, wait); err != nil {
				return nil, err
			}
			state = stateAttempting

		case stateWaitingServerError:
			wait := time.Duration(attempt) * c.policy.ServerErrorBackoff
			if err := c.clock.Sleep(ctx, wait); err != nil {
				return nil, err
			}
			state = stateAttempting

		case stateWaitingTransport:
			if err := c.clock.Sleep(ctx, c.policy.TransportBackoff); err != nil {
				return nil, err
			}
			state = stateAttempting

		case stateExhausted:
			return nil, apperrors.NewTransientError(endpoint, attempt, lastErr)
		}
	}
}

// GetPaginated drains a paginated endpoint, concatenating every page's
// items in arrival order. The response's pagination cursor, when present
// and non-empty, is fed back as a request parameter; page requests are
// paced to avoid hammering the service.
func (c *Client) GetPaginated(ctx context.Context, endpoint, itemsKey string, params url.Values) ([]json.RawMessage, error) {
	merged := url.Values{}
	for k, vs := range params {
		merged[k] = vs
	}

	var items []json.RawMessage
	for {
		if err := c.pageLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := c.Get(ctx, endpoint, merged)
		if err != nil {
			return nil, err
		}

		if raw, ok := body[itemsKey]; ok {
			var page []json.RawMessage
			if err := json.Unmarshal(raw, &page); err != nil {
				return nil, fmt.Errorf("malformed %q array [%s]: %w", itemsKey, endpoint, err)
			}
			items = append(items, page...)
		}

		cursor := paginationCursor(body)
		if cursor == "" {
			return items, nil
		}
		merged.Set("pagination_key", cursor)
	}
}

// do issues a single HTTP attempt and returns the status and body.
// Transport failures (timeouts included) are returned as errors; any
// response, whatever its status, is returned for the caller to classify.
func (c *Client) do(ctx context.Context, endpoint string, params url.Values) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.policy.RequestTimeout)
	defer cancel()

	target := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.session.BearerToken())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func paginationCursor(body map[string]json.RawMessage) string {
	raw, ok := body["pagination_key"]
	if !ok {
		return ""
	}
	var cursor string
	if err := json.Unmarshal(raw, &cursor); err != nil {
		return ""
	}
	return cursor
}
