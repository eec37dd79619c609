// Package auth manages the upstream OAuth2 client-credentials token
// lifecycle: acquisition, caching, proactive refresh and invalidation.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrAuthentication wraps every token acquisition failure. A failed result
// is never cached — the next caller triggers a fresh exchange.
var ErrAuthentication = errors.New("upstream authentication failed")

// defaultSafetyMargin is subtracted from the issued expiry so a token handed
// to a caller always has headroom before the upstream rejects it.
const defaultSafetyMargin = 60 * time.Second

// Credentials is the immutable client-credentials configuration.
type Credentials struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

type cachedToken struct {
	token     string
	expiresAt time.Time // issued expiry minus safety margin
}

// Manager acquires and caches upstream access tokens. Concurrent callers
// during a refresh share a single in-flight token request.
//
// Instantiate one Manager per upstream dependency and inject it — the cache
// is internal state, not a package global, so tests can run independent
// managers side by side.
type Manager struct {
	creds  Credentials
	margin time.Duration
	client *http.Client
	log    *logrus.Entry

	mu     sync.Mutex
	cached *cachedToken

	group singleflight.Group
	now   func() time.Time
}

// NewManager constructs a Manager. httpTimeout bounds the token-endpoint
// call so an abandoned single-flight refresh cannot hang indefinitely.
func NewManager(creds Credentials, httpTimeout time.Duration, log *logrus.Entry) *Manager {
	return &Manager{
		creds:  creds,
		margin: defaultSafetyMargin,
		client: &http.Client{Timeout: httpTimeout},
		log:    log,
		now:    time.Now,
	}
}

// Token returns a valid access token, refreshing when the cached one is
// missing or inside the safety margin of expiry. A caller whose context is
// cancelled returns promptly; the shared refresh keeps running for the
// remaining callers, bounded by the HTTP client timeout.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if tok, ok := m.cachedValid(); ok {
		return tok, nil
	}

	ch := m.group.DoChan("token", func() (interface{}, error) {
		return m.refresh()
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token. The upstream client calls this when a
// request comes back 401 so the retry runs with a fresh token.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.cached = nil
	m.mu.Unlock()
}

func (m *Manager) cachedValid() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached == nil || !m.now().Before(m.cached.expiresAt) {
		return "", false
	}
	return m.cached.token, true
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (m *Manager) refresh() (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", m.creds.ClientID)
	form.Set("client_secret", m.creds.ClientSecret)

	req, err := http.NewRequest(http.MethodPost, m.creds.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: token endpoint returned %d: %s",
			ErrAuthentication, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decoding token response: %v", ErrAuthentication, err)
	}
	if parsed.AccessToken == "" || parsed.ExpiresIn <= 0 {
		return "", fmt.Errorf("%w: token endpoint returned empty token", ErrAuthentication)
	}

	expiresAt := m.now().Add(time.Duration(parsed.ExpiresIn)*time.Second - m.margin)
	m.mu.Lock()
	m.cached = &cachedToken{token: parsed.AccessToken, expiresAt: expiresAt}
	m.mu.Unlock()

	m.log.WithField("expires_at", expiresAt).Debug("access token refreshed")
	return parsed.AccessToken, nil
}
