package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// tokenSkew renews the app token this long before the platform says it
// expires.
const tokenSkew = 5 * time.Minute

// Errcodes both platforms return for a revoked or expired app token.
var tokenRejectedCodes = map[int]bool{
	40014: true, // invalid access_token
	42001: true, // access_token expired
}

// apiResponse is the envelope every platform endpoint shares.
type apiResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (r apiResponse) status() (int, string) { return r.ErrCode, r.ErrMsg }

type enveloped interface {
	status() (int, string)
}

// apiClient carries the transport and the cached app access token shared by
// both providers.
type apiClient struct {
	provider   string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func newAPIClient(provider, baseURL string, hc *http.Client) *apiClient {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &apiClient{
		provider:   provider,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: hc,
		now:        time.Now,
	}
}

func (c *apiClient) fail(op string, err error) *Error {
	return &Error{Provider: c.provider, Op: op, Err: err}
}

// accessToken returns the cached app token, fetching a new one with fetch
// when it is missing or about to expire.
func (c *apiClient) accessToken(ctx context.Context, fetch func(ctx context.Context) (string, time.Duration, error)) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, nil
	}

	token, ttl, err := fetch(ctx)
	if err != nil {
		return "", err
	}
	c.token = token
	c.expiresAt = c.now().Add(ttl - tokenSkew)
	return token, nil
}

// dropToken forgets token if it is still the cached one, so the next call
// fetches a new token instead of reusing a rejected one.
func (c *apiClient) dropToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == token {
		c.token = ""
		c.expiresAt = time.Time{}
	}
}

// call sends a request and decodes the JSON envelope into out. A non-zero
// errcode is returned as *Error.
func (c *apiClient) call(ctx context.Context, op, method, path string, query url.Values, body any, out enveloped) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return c.fail(op, fmt.Errorf("failed to encode request: %w", err))
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return c.fail(op, fmt.Errorf("failed to create request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(op, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return c.fail(op, fmt.Errorf("failed to read response body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return c.fail(op, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return c.fail(op, fmt.Errorf("failed to decode response: %w", err))
	}

	if code, msg := out.status(); code != 0 {
		if tokenRejectedCodes[code] {
			if token := query.Get("access_token"); token != "" {
				c.dropToken(token)
			}
		}
		return &Error{Provider: c.provider, Op: op, Code: code, Message: msg}
	}
	return nil
}
