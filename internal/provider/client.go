package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Request headers carrying the session on authenticated calls.
const (
	headerToken    = "X-OESP-Token"
	headerUsername = "X-OESP-Username"
)

// maxResponseSize caps how much of a response body is read (8MB; the
// channel list is the largest response).
const maxResponseSize = 8 << 20

// defaultTimeout is used when Options.Timeout is zero.
const defaultTimeout = 10 * time.Second

// Session is the authenticated session returned by CreateSession.
type Session struct {
	HouseholdID string
	AccessToken string
}

// Options configures a Client.
type Options struct {
	// BaseURL is the API root, e.g. https://web-api-prod-obo.horizon.tv/oesp/v3/NL/nld/web.
	BaseURL string

	// PersonalizationURL is the box enumeration endpoint containing "{household_id}".
	PersonalizationURL string

	// Username is sent with authenticated requests.
	Username string

	// Timeout bounds each request.
	Timeout time.Duration

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client calls the operator HTTP services.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - SetSession may be called while lookups are in flight.
type Client struct {
	baseURL            string
	personalizationURL string
	username           string
	http               *http.Client

	mu      sync.RWMutex
	session Session
}

// New creates a Client.
//
// Returns:
//   - *Client: Ready for use
//   - error: If BaseURL is empty
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL is required", ErrConnection)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:            strings.TrimRight(opts.BaseURL, "/"),
		personalizationURL: opts.PersonalizationURL,
		username:           opts.Username,
		http:               hc,
	}, nil
}

// SetSession stores the session used for authenticated requests.
func (c *Client) SetSession(s Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// currentSession returns the stored session.
func (c *Client) currentSession() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// getJSON performs an authenticated GET and decodes a 200 response into out.
// Every metadata endpoint requires the session header pair.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: building request: %w", ErrConnection, err)
	}
	req.Header.Set("Accept", "application/json")

	s := c.currentSession()
	if s.AccessToken == "" {
		return ErrNotAuthenticated
	}
	req.Header.Set(headerToken, s.AccessToken)
	req.Header.Set(headerUsername, c.username)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s returned %d", ErrConnection, redactQuery(url), resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", ErrConnection, err)
	}
	return nil
}

// redactQuery strips the query string from url for error messages.
func redactQuery(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}
