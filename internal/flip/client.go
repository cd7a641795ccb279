package flip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/flip-id/flip-checkout-service/internal/obs"
	"github.com/flip-id/flip-checkout-service/internal/resilience"
)

// Response is the raw outcome of a provider API call after the transport layer
// has drained the body.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client is the low-level signed transport for the Flip API. Every call is
// recorded in full on the api-request audit sink.
type Client struct {
	BaseURL   string
	SecretKey string
	HTTP      resilience.HTTPClient
	Audit     obs.Audit
}

// NewClient builds a client for the given host and secret with the provided
// resilience settings.
func NewClient(baseURL, secretKey string, httpClient resilience.HTTPClient, audit obs.Audit) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		SecretKey: secretKey,
		HTTP:      httpClient,
		Audit:     audit,
	}
}

// Send issues a request against the given API endpoint and returns the parsed
// transport outcome. body may be nil for GET requests.
func (c *Client) Send(ctx context.Context, method, endpoint string, body any) (*Response, error) {
	if c == nil {
		return nil, errors.New("flip: client not configured")
	}
	url := c.BaseURL + "/" + strings.TrimLeft(endpoint, "/")

	var payload []byte
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("flip: encode request body: %w", err)
		}
		payload = encoded
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("flip: build request: %w", err)
	}
	req.Header.Set("Authorization", c.authHeader())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		c.Audit.Error("flip.Client.Send", err)
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("flip: read response body: %w", err)
	}

	c.Audit.APIRequest(method, url, payload, raw, resp.StatusCode)

	return &Response{StatusCode: resp.StatusCode, Body: raw}, nil
}

// authHeader derives the basic-auth header from the API secret. Flip uses the
// secret as the username with an empty password.
func (c *Client) authHeader() string {
	token := base64.StdEncoding.EncodeToString([]byte(c.SecretKey + ":"))
	return "Basic " + token
}
