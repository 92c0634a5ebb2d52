package jquants

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"jqscreen/internal/config"
	apperrors "jqscreen/internal/errors"
)

// Session holds the bearer credential for one run. The token is immutable
// after authentication. The subscription boundary is set at most once, by
// the trading-date search, when the service reveals that the caller's tier
// stops serving data before today.
type Session struct {
	idToken string

	mu       sync.Mutex
	boundary *time.Time
}

// BearerToken returns the credential attached to every request.
func (s *Session) BearerToken() string { return s.idToken }

// SubscriptionBoundary returns the newest date the service guarantees data
// for under the caller's tier, when one has been detected.
func (s *Session) SubscriptionBoundary() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.boundary == nil {
		return time.Time{}, false
	}
	return *s.boundary, true
}

func (s *Session) setSubscriptionBoundary(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boundary = &t
}

// Authenticate performs the two-step credential exchange: account
// credentials for a refresh token, then the refresh token for a bearer
// token. Failures are non-transient and are never retried, so credential
// and entitlement problems surface immediately.
func Authenticate(ctx context.Context, cfg config.JQuantsConfig, httpc *http.Client, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	refreshToken, err := fetchRefreshToken(ctx, cfg, httpc)
	if err != nil {
		return nil, apperrors.NewAuthError("auth_user", err)
	}

	idToken, err := fetchIDToken(ctx, cfg.BaseURL, refreshToken, httpc)
	if err != nil {
		return nil, apperrors.NewAuthError("auth_refresh", err)
	}

	logger.Info("authenticated with data service")
	return &Session{idToken: idToken}, nil
}

func fetchRefreshToken(ctx context.Context, cfg config.JQuantsConfig, httpc *http.Client) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"mailaddress": cfg.Email,
		"password":    cfg.Password,
	})
	if err != nil {
		return "", err
	}

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := postJSON(ctx, httpc, cfg.BaseURL+"/token/auth_user", bytes.NewReader(payload), &body); err != nil {
		return "", err
	}
	if body.RefreshToken == "" {
		return "", fmt.Errorf("response carried no refresh token")
	}
	return body.RefreshToken, nil
}

func fetchIDToken(ctx context.Context, baseURL, refreshToken string, httpc *http.Client) (string, error) {
	endpoint := baseURL + "/token/auth_refresh?" + url.Values{"refreshtoken": {refreshToken}}.Encode()

	var body struct {
		IDToken string `json:"idToken"`
	}
	if err := postJSON(ctx, httpc, endpoint, nil, &body); err != nil {
		return "", err
	}
	if body.IDToken == "" {
		return "", fmt.Errorf("response carried no id token")
	}
	return body.IDToken, nil
}

func postJSON(ctx context.Context, httpc *http.Client, endpoint string, payload io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncateBody(data))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("malformed response body: %w", err)
	}
	return nil
}

func truncateBody(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
