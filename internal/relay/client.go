package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultClientTimeout = 10 * time.Second

// WithHTTPClient sets the HTTP client used for requests
func WithHTTPClient(c *http.Client) func(*Client) {
	return func(cl *Client) {
		cl.http = c
	}
}

// Client requests readings from a relay
type Client struct {
	url  string
	http *http.Client
}

// NewClient creates a client for the relay at baseURL, e.g. http://127.0.0.1:8090
func NewClient(baseURL string, options ...func(*Client)) *Client {
	c := Client{
		url:  strings.TrimRight(baseURL, "/") + Path,
		http: &http.Client{Timeout: DefaultClientTimeout},
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// Magnitude returns the raw reading, which is BadData when the relay could
// not read the instrument
func (c *Client) Magnitude(ctx context.Context) (string, error) {
	body, err := json.Marshal(ValueSet{KeyMagnitude: "GIMME"})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting magnitude: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("requesting magnitude: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var vs ValueSet
	if err := json.NewDecoder(resp.Body).Decode(&vs); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	data, ok := vs[KeyMagnitude]
	if !ok {
		return "", fmt.Errorf("response has no %s value", KeyMagnitude)
	}
	return data, nil
}

// ReadMagnitude requests and parses a reading. A relay side instrument
// failure is reported as ErrBadData.
func (c *Client) ReadMagnitude(ctx context.Context) (float64, error) {
	data, err := c.Magnitude(ctx)
	if err != nil {
		return 0, err
	}
	return ParseMagnitude(data)
}
