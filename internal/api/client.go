// Package api fetches documents from the lecture platform on behalf of an authenticated user.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/alanbriolat/lecture-archiver/internal/cookies"
)

var (
	ErrAuth        = errors.New("not authorized (are your cookies up to date?)")
	ErrBadResponse = errors.New("bad response (are your cookies up to date?)")
)

const jsonContentType = "application/json"

// A Client issues requests against a single platform origin, attaching the user's cookies to each one.
type Client struct {
	origin  string
	cookies map[string]string
	http    *http.Client
	log     *zap.SugaredLogger
}

// NewClient creates a Client for origin (scheme://host). A nil httpClient means http.DefaultClient.
func NewClient(origin string, cookies map[string]string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		origin:  strings.TrimRight(origin, "/"),
		cookies: cookies,
		http:    httpClient,
		log:     zap.S().Named("api"),
	}
}

func (c *Client) Origin() string {
	return c.origin
}

// URL builds an absolute URL from path segments, escaping each one.
func (c *Client) URL(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.origin + "/" + strings.Join(escaped, "/")
}

// NewRequest creates a GET request carrying the user's cookies.
func (c *Client) NewRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for _, cookie := range cookies.HTTPCookies(c.cookies) {
		req.AddCookie(cookie)
	}
	return req, nil
}

// Do executes a request with the Client's underlying http.Client.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.http.Do(req)
}

// GetJSON fetches rawURL and decodes the JSON body into v. Anything other than a 2xx JSON response is
// ErrBadResponse (or ErrAuth), because the platform answers stale sessions with a login page.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v interface{}) error {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != jsonContentType {
		return fmt.Errorf("%w: GET %s: unexpected content type %q", ErrBadResponse, rawURL, resp.Header.Get("Content-Type"))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: GET %s: could not parse response: %v", ErrBadResponse, rawURL, err)
	}
	return nil
}

// GetPage fetches rawURL and returns the raw body, whatever its declared content type.
func (c *Client) GetPage(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET %s: failed to read response: %w", rawURL, err)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := c.NewRequest(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	c.log.Debugf("GET %s", rawURL)
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	if err := CheckStatus(resp); err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %w", rawURL, err)
	}
	return resp, nil
}

// CheckStatus maps a non-2xx response to ErrAuth or ErrBadResponse.
func CheckStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %s", ErrAuth, resp.Status)
	default:
		return fmt.Errorf("%w: HTTP %s", ErrBadResponse, resp.Status)
	}
}
