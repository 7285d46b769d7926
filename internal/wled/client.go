package wled

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrDisabled is returned by calls that need a device when no base URL is configured.
var ErrDisabled = errors.New("wled: device url not configured")

// Client talks to the WLED JSON API over HTTP.
// A Client with an empty base URL is disabled and never touches the network.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the device at baseURL, e.g. "http://192.168.1.50".
// A bare host or IP is accepted and gets an http:// scheme.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    normalizeBaseURL(baseURL),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func normalizeBaseURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	u = strings.TrimRight(u, "/")
	if !strings.Contains(u, "://") {
		u = "http://" + u
	}
	return u
}

// Enabled reports whether a device URL is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

// BaseURL returns the normalized device URL ("" when disabled).
func (c *Client) BaseURL() string {
	if c == nil {
		return ""
	}
	return c.baseURL
}

// Send POSTs st to {baseURL}/json/state. It is a no-op when the client is disabled.
func (c *Client) Send(ctx context.Context, st State) error {
	if !c.Enabled() {
		return nil
	}

	body, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/json/state", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("wled error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Info is the subset of /json/info the dashboard shows.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"ver"`
	LEDs    struct {
		Count int `json:"count"`
	} `json:"leds"`
	FXCount int `json:"fxcount"`
}

// Info fetches {baseURL}/json/info.
func (c *Client) Info(ctx context.Context) (*Info, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/json/info", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("wled error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var info Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode info: %w", err)
	}
	return &info, nil
}
