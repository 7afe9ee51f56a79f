// Package client talks to the lost-and-found REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// SessionCookie is the name of the credential cookie set by the API.
const SessionCookie = "jwt"

// maxBodySize caps how much of a response body is read.
const maxBodySize = 5 << 20

// ErrUnauthorized is matched by any API error carrying a 401 status.
var ErrUnauthorized = errors.New("unauthorized")

// ErrMalformedResponse is returned when a 2xx body lacks the expected shape.
var ErrMalformedResponse = errors.New("malformed response")

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Message string
	Code    int
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: unexpected status %d", e.Status)
}

// Is makes errors.Is(err, ErrUnauthorized) true for 401 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// Client is a credentialed API client. Cookies set by the API (the session
// credential included) are kept in the client's jar and sent back on every
// request, so one Client corresponds to one browsing identity.
type Client struct {
	base *url.URL
	http HTTPClient
	jar  http.CookieJar
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport. Requests sent through h do not
// consult the client's jar.
func WithHTTPClient(h HTTPClient) Option {
	return func(c *Client) {
		c.http = h
	}
}

// New creates a client for the API rooted at baseURL
// (e.g. http://localhost:4000/api/v1).
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing api url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api url %q must be absolute", baseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	c := &Client{
		base: base,
		jar:  jar,
		http: &http.Client{Jar: jar, Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// SessionToken returns the credential cookie currently held, or "".
func (c *Client) SessionToken() string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == SessionCookie {
			return ck.Value
		}
	}
	return ""
}

// SetSessionToken seeds the jar with a credential obtained elsewhere, for
// example from a browser cookie. An empty token clears the credential.
func (c *Client) SetSessionToken(token string) {
	ck := &http.Cookie{Name: SessionCookie, Value: token, Path: "/"}
	if token == "" {
		ck.MaxAge = -1
	}
	c.jar.SetCookies(c.base, []*http.Cookie{ck})
}

// ResolveURL turns an image reference returned by the API into an absolute
// URL. Absolute references are returned unchanged.
func (c *Client) ResolveURL(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if u.IsAbs() {
		return ref
	}
	if !strings.HasPrefix(ref, "/") {
		return c.base.JoinPath(ref).String()
	}
	return c.base.ResolveReference(u).String()
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, nil), r)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends req and decodes a 2xx body into target (skipped when nil).
// Non-2xx responses are returned as *APIError.
func (c *Client) do(req *http.Request, target any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, body)
	}

	if target == nil {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

type errorBody struct {
	Message string `json:"message"`
	Error   *struct {
		Code json.RawMessage `json:"code"`
	} `json:"error"`
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return apiErr
	}
	apiErr.Message = eb.Message
	if eb.Error != nil && len(eb.Error.Code) > 0 {
		raw := strings.Trim(string(eb.Error.Code), `"`)
		if code, err := strconv.Atoi(raw); err == nil {
			apiErr.Code = code
		}
	}
	return apiErr
}
