package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default timeouts for hub REST operations.
const (
	defaultFetchTimeout   = 10 * time.Second
	defaultCommandTimeout = 10 * time.Second
	defaultEffectsTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	// maxResponseSize caps how much of a hub response body is read (4MB).
	maxResponseSize = 4 << 20
)

// REST paths on the hub.
const (
	pathRoot    = "/"
	pathDevices = "/api/devices"
	pathEffects = "/api/effects"
)

// ClientConfig configures a REST Client.
type ClientConfig struct {
	// BaseURL is the hub root, e.g. "http://192.168.1.20:5000".
	BaseURL string

	// FetchTimeout bounds a device list request. Zero uses 10s.
	FetchTimeout time.Duration

	// CommandTimeout bounds a state command. Zero uses 10s.
	CommandTimeout time.Duration

	// HTTPClient overrides the underlying client, mainly for tests.
	HTTPClient *http.Client
}

// Client issues REST requests against the hub.
//
// Every request carries its own timeout so a hung hub cannot stall the caller
// past the configured bound.
type Client struct {
	baseURL        string
	http           *http.Client
	fetchTimeout   time.Duration
	commandTimeout time.Duration
}

// NewClient creates a REST client for the hub at cfg.BaseURL.
//
// Parameters:
//   - cfg: Base URL and timeouts
//
// Returns:
//   - *Client: Client ready for use (no request is made)
//   - error: ErrInvalidURL if the base URL is not an absolute http(s) URL
func NewClient(cfg ClientConfig) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	c := &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		http:           cfg.HTTPClient,
		fetchTimeout:   cfg.FetchTimeout,
		commandTimeout: cfg.CommandTimeout,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = defaultFetchTimeout
	}
	if c.commandTimeout <= 0 {
		c.commandTimeout = defaultCommandTimeout
	}
	return c, nil
}

// BaseURL returns the hub root URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchDevices retrieves the raw device list body from GET /api/devices.
//
// Parameters:
//   - ctx: Context for cancellation; the fetch timeout is applied on top
//
// Returns:
//   - []byte: Response body, undecoded
//   - error: ErrUnreachable on network failure, ErrBadStatus on a non-2xx answer
func (c *Client) FetchDevices(ctx context.Context) ([]byte, error) {
	body, status, err := c.do(ctx, c.fetchTimeout, http.MethodGet, pathDevices, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("%w: %w", ErrBadStatus, &StatusError{Method: http.MethodGet, Path: pathDevices, StatusCode: status})
	}
	return body, nil
}

// SendCommand sends a partial state to PUT /api/devices/{id}/state.
//
// The hub must answer 200; any other status is reported and not retried.
// The command never changes local state: the hub echoes accepted changes
// back through the stream.
//
// Parameters:
//   - ctx: Context for cancellation; the command timeout is applied on top
//   - deviceID: Hub device identifier
//   - partial: Device-specific fields, e.g. {"state": true}
//
// Returns:
//   - error: nil on 200, otherwise wrapped ErrCommand
func (c *Client) SendCommand(ctx context.Context, deviceID string, partial map[string]any) error {
	if deviceID == "" {
		return fmt.Errorf("%w: device id is required", ErrCommand)
	}

	payload, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("%w: encoding body: %w", ErrCommand, err)
	}

	path := pathDevices + "/" + url.PathEscape(deviceID) + "/state"
	_, status, err := c.do(ctx, c.commandTimeout, http.MethodPut, path, payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCommand, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: %w", ErrCommand, &StatusError{Method: http.MethodPut, Path: path, StatusCode: status})
	}
	return nil
}

// FetchEffects retrieves the animation catalogue from GET /api/effects.
//
// Returns:
//   - map[string]string: animation name → display name
//   - error: ErrUnreachable, ErrBadStatus or ErrDecode
func (c *Client) FetchEffects(ctx context.Context) (map[string]string, error) {
	body, status, err := c.do(ctx, defaultEffectsTimeout, http.MethodGet, pathEffects, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: %w", ErrBadStatus, &StatusError{Method: http.MethodGet, Path: pathEffects, StatusCode: status})
	}

	effects := make(map[string]string)
	if err := json.Unmarshal(body, &effects); err != nil {
		return nil, fmt.Errorf("%w: effects: %w", ErrDecode, err)
	}
	return effects, nil
}

// Ping checks that the hub answers GET / with 200.
func (c *Client) Ping(ctx context.Context) error {
	_, status, err := c.do(ctx, defaultPingTimeout, http.MethodGet, pathRoot, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: %w", ErrBadStatus, &StatusError{Method: http.MethodGet, Path: pathRoot, StatusCode: status})
	}
	return nil
}

// do performs a single request with its own timeout and returns the body and status.
func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, payload []byte) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s %s: %w", ErrUnreachable, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, resp.StatusCode, fmt.Errorf("%w: %s %s: %w", ErrUnreachable, method, path, err)
		}
		return nil, resp.StatusCode, fmt.Errorf("%w: reading body: %w", ErrDecode, err)
	}
	return data, resp.StatusCode, nil
}
