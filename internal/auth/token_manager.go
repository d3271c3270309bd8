// Package auth implements the brokerage OAuth2 client-credentials token
// manager: refresh-before-expiry, plus Invalidate, which the REST transport
// calls on a 401 before its single retry of the request. Grounded in
// original_source's schwab_auth.py refresh_access_token flow, narrowed
// from its interactive authorization-code flow (this agent runs
// unattended) to the client-credentials grant a headless service uses.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// expiryMargin is how far ahead of the reported expiry a cached token is
// treated as stale, so a request never races a token that expires mid-flight.
const expiryMargin = 60 * time.Second

// TokenManager caches an access token and refreshes it on demand.
// Concurrency-safe: the core driver is single-threaded, but callers of
// the REST transport (A5) may read through this manager from their own
// goroutines.
type TokenManager struct {
	httpClient   *http.Client
	tokenURL     string
	clientID     string
	clientSecret string

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// New constructs a TokenManager for the given client-credentials grant.
func New(httpClient *http.Client, tokenURL, clientID, clientSecret string) *TokenManager {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TokenManager{
		httpClient:   httpClient,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token returns a valid access token, refreshing it first if the cached
// one is missing or within expiryMargin of expiring.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && time.Now().Add(expiryMargin).Before(m.expiresAt) {
		return m.token, nil
	}
	return m.refreshLocked(ctx)
}

// Invalidate forces the next Token call to refresh, used after a 401
// response so a transport retry does not reuse a rejected token.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
}

func (m *TokenManager) refreshLocked(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", m.clientID)
	form.Set("client_secret", m.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("auth: building token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth: token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth: token endpoint returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("auth: decoding token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("auth: token response missing access_token")
	}

	m.token = tr.AccessToken
	m.expiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return m.token, nil
}
