// Package broker adapts a Schwab-style brokerage REST API to the core
// decision engine's Broker (C3) and MarketData (C2) ports. Requests carry
// io.LimitReader-capped error bodies, a context-aware http.Request, and an
// OAuth2 bearer token maintained by internal/auth.TokenManager.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eliywilner/spxspread/internal/auth"
)

// APIError represents a non-2xx response from the brokerage API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("broker API error %d: %s", e.Status, e.Body)
}

// Unauthorized reports whether the error is a 401, the one status the
// transport retries itself (after forcing a token refresh) rather than
// handing to internal/retry.
func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// transport is the low-level HTTP client shared by the market-data and
// order-submission halves of the adapter.
type transport struct {
	client    *http.Client
	baseURL   string
	accountID string
	tokens    *auth.TokenManager
}

func newTransport(client *http.Client, baseURL, accountID string, tokens *auth.TokenManager) *transport {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &transport{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		accountID: accountID,
		tokens:    tokens,
	}
}

// doJSON issues method against path (relative to baseURL), decoding a JSON
// response into out. A single 401 triggers one forced token refresh and
// retry.
func (t *transport) doJSON(ctx context.Context, method, path string, form url.Values, out any) error {
	err := t.doJSONOnce(ctx, method, path, form, out)
	var apiErr *APIError
	if err != nil && asAPIError(err, &apiErr) && apiErr.Unauthorized() {
		t.tokens.Invalidate()
		err = t.doJSONOnce(ctx, method, path, form, out)
	}
	return err
}

func asAPIError(err error, target **APIError) bool {
	ae, ok := err.(*APIError)
	if ok {
		*target = ae
	}
	return ok
}

func (t *transport) doJSONOnce(ctx context.Context, method, path string, form url.Values, out any) error {
	endpoint := t.baseURL + path

	var req *http.Request
	var err error
	if method == http.MethodPost && form != nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, http.NoBody)
		if err != nil {
			return err
		}
	}

	token, err := t.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("broker: obtaining access token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "spxspread-agent/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated &&
		resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)) // 64KB cap
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	if resp.StatusCode == http.StatusNoContent || out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// postForLocation issues a POST and returns the raw response so the caller
// can inspect both the body (which may be empty) and the Location header,
// since some order-submission responses carry the new order id only in the
// Location header rather than in the body.
func (t *transport) postForLocation(ctx context.Context, path string, form url.Values) (status int, location string, body []byte, err error) {
	endpoint := t.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, "", nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	token, err := t.tokens.Token(ctx)
	if err != nil {
		return 0, "", nil, fmt.Errorf("broker: obtaining access token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "spxspread-agent/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, "", nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated &&
		resp.StatusCode != http.StatusAccepted {
		return resp.StatusCode, "", respBody, &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	return resp.StatusCode, resp.Header.Get("Location"), respBody, nil
}

// decodeOrderBody unmarshals a raw order-submission response body.
func decodeOrderBody(body []byte, out *orderResponse) error {
	return json.Unmarshal(body, out)
}

// orderIDFromLocation extracts the trailing numeric id from a Location
// header of the form ".../orders/{id}". Returns "" if none is found.
func orderIDFromLocation(location string) string {
	if location == "" {
		return ""
	}
	i := strings.LastIndex(location, "/")
	if i < 0 || i+1 >= len(location) {
		return ""
	}
	id := strings.TrimSpace(location[i+1:])
	for _, c := range id {
		if c < '0' || c > '9' {
			return ""
		}
	}
	return id
}
