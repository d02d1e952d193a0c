// Package auth caches OAuth2 client-credentials bearer tokens for
// token-protected open-data sources.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/opendata-tw/roadwatch/config"
	"github.com/opendata-tw/roadwatch/internal/telemetry"
)

// AuthError reports a failed credential exchange. It is fatal for the
// surrounding request and must never be surfaced verbatim to users.
type AuthError struct {
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("token exchange failed with status %d", e.Status)
	}
	return fmt.Sprintf("token exchange failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Manager owns the process-wide token cache. A valid cached token is
// returned immediately; otherwise exactly one exchange runs regardless of
// concurrent callers, all of whom await its result.
type Manager struct {
	cfg    config.AuthConfig
	client *http.Client
	logger *log.Logger

	group singleflight.Group
	now   func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewManager creates a token manager for the configured credentials.
func NewManager(cfg config.AuthConfig) *Manager {
	return &Manager{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: log.New(log.Writer(), "[AUTH] ", log.LstdFlags),
		now:    time.Now,
	}
}

// GetToken returns a bearer token, refreshing the cache when the stored
// token is absent or inside the expiry safety margin.
func (m *Manager) GetToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.token != "" && m.now().Before(m.expiry.Add(-m.cfg.SafetyMargin)) {
		token := m.token
		m.mu.Unlock()
		telemetry.RecordTokenCache(true)
		return token, nil
	}
	m.mu.Unlock()
	telemetry.RecordTokenCache(false)

	v, err, _ := m.group.Do("token", func() (interface{}, error) {
		return m.exchange(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token, forcing a refresh on the next call.
// Called when a dependent request comes back 401.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.expiry = time.Time{}
	m.mu.Unlock()
}

func (m *Manager) exchange(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", m.cfg.ClientID)
	form.Set("client_secret", m.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	started := m.now()
	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Printf("token exchange error after %s: %v", time.Since(started), err)
		return "", &AuthError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		m.logger.Printf("token exchange status %d after %s: %s", resp.StatusCode, time.Since(started), string(body))
		return "", &AuthError{Status: resp.StatusCode}
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &AuthError{Err: fmt.Errorf("decoding token response: %w", err)}
	}
	if payload.AccessToken == "" {
		return "", &AuthError{Err: fmt.Errorf("token response missing access_token")}
	}

	m.mu.Lock()
	m.token = payload.AccessToken
	m.expiry = m.now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	m.mu.Unlock()

	telemetry.RecordTokenRefresh()
	m.logger.Printf("token refreshed, expires in %ds", payload.ExpiresIn)
	return payload.AccessToken, nil
}
