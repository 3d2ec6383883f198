package ups

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client issues tracking lookups against the UPS track API. It performs no
// retries and raises nothing for expected failure classes: every failure
// comes back as a classified *QueryError for the batch processor to route.
type Client struct {
	trackingURL    string
	transactionSrc string
	httpClient     *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient creates a tracking client. trackingURL is the details endpoint
// the tracking number is appended to.
func NewClient(trackingURL, transactionSrc string, opts ...ClientOption) (*Client, error) {
	trackingURL = strings.TrimSpace(trackingURL)
	if trackingURL == "" {
		return nil, fmt.Errorf("ups: tracking url required")
	}
	if !strings.HasSuffix(trackingURL, "/") {
		trackingURL += "/"
	}
	transactionSrc = strings.TrimSpace(transactionSrc)
	if transactionSrc == "" {
		transactionSrc = "labelscan"
	}
	client := &Client{
		trackingURL:    trackingURL,
		transactionSrc: transactionSrc,
		httpClient:     &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Track fetches the tracking record for one identifier using the supplied
// bearer token. On success the decoded document is returned; every failure
// is classified into a *QueryError.
func (c *Client) Track(ctx context.Context, trackingNumber string, token Token) (map[string]any, *QueryError) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, &QueryError{Kind: KindProtocolError, Message: "empty tracking number"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.trackingURL+trackingNumber, nil)
	if err != nil {
		return nil, &QueryError{Kind: KindProtocolError, Message: fmt.Sprintf("build request: %v", err), Err: err}
	}
	req.Header.Set("transId", uuid.NewString())
	req.Header.Set("transactionSrc", c.transactionSrc)
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, &QueryError{
			Kind:    KindNetworkError,
			Message: fmt.Sprintf("execute request (latency=%v): %v", latency, err),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &QueryError{
			Kind:       KindRateLimited,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("tracking api rate limited (latency=%v)", latency),
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &QueryError{
			Kind:       KindHTTPError,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("tracking api returned %d (latency=%v)", resp.StatusCode, latency),
		}
	}

	var record map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, &QueryError{
			Kind:       KindProtocolError,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("decode tracking response: %v", err),
			Err:        err,
		}
	}
	return record, nil
}
