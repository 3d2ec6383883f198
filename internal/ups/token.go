package ups

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"labelscan/internal/credentials"
)

// Token is a bearer credential for the tracking API, always paired with the
// credential pair that produced it. Tokens are replaced, never mutated.
type Token struct {
	AccessToken string
	IssuedAt    time.Time
	PairLabel   string
}

// Stale reports whether the token's age exceeds the validity window. The
// window is deliberately shorter than the nominal grant lifetime so a token
// never expires mid-batch.
func (t Token) Stale(now time.Time, validity time.Duration) bool {
	if t.AccessToken == "" {
		return true
	}
	return now.Sub(t.IssuedAt) > validity
}

// TokenIssuer exchanges a credential pair for a fresh token.
type TokenIssuer interface {
	Issue(ctx context.Context, pair credentials.Pair) (Token, error)
}

// TokenSource issues tokens via the UPS OAuth client-credentials grant.
type TokenSource struct {
	authURL    string
	httpClient *http.Client
	attempts   uint64
	interval   time.Duration
	now        func() time.Time
}

// TokenSourceOption configures a TokenSource.
type TokenSourceOption func(*TokenSource)

// WithTokenHTTPClient overrides the default HTTP client.
func WithTokenHTTPClient(client *http.Client) TokenSourceOption {
	return func(s *TokenSource) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithTokenRetry sets the bounded retry budget for one issue call.
func WithTokenRetry(attempts int, interval time.Duration) TokenSourceOption {
	return func(s *TokenSource) {
		if attempts > 0 {
			s.attempts = uint64(attempts)
		}
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithTokenClock overrides the clock, for tests.
func WithTokenClock(now func() time.Time) TokenSourceOption {
	return func(s *TokenSource) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenSource creates a token issuer for the given auth endpoint.
func NewTokenSource(authURL string, opts ...TokenSourceOption) (*TokenSource, error) {
	authURL = strings.TrimSpace(authURL)
	if authURL == "" {
		return nil, fmt.Errorf("ups: auth url required")
	}
	source := &TokenSource{
		authURL:    authURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		attempts:   3,
		interval:   500 * time.Millisecond,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(source)
	}
	return source, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   string `json:"expires_in"`
}

// Issue performs the client-credentials exchange for one pair. A 401/403
// response fails immediately with ErrAuthRejected; transient failures are
// retried with a short fixed backoff, and exhaustion of the retry budget is
// also reported as ErrAuthRejected so the batch loop treats an unreachable
// auth endpoint like a rejected pair.
func (s *TokenSource) Issue(ctx context.Context, pair credentials.Pair) (Token, error) {
	var token Token

	operation := func() error {
		issued, err := s.issueOnce(ctx, pair)
		if err != nil {
			return err
		}
		token = issued
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.interval), s.attempts-1),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		if errors.Is(err, ErrAuthRejected) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Token{}, err
		}
		return Token{}, fmt.Errorf("%w: pair %q: auth endpoint unreachable after %d attempts: %v",
			ErrAuthRejected, pair.Label, s.attempts, err)
	}
	return token, nil
}

func (s *TokenSource) issueOnce(ctx context.Context, pair credentials.Pair) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, backoff.Permanent(fmt.Errorf("build token request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("x-merchant-id", pair.ClientID)
	req.SetBasicAuth(pair.ClientID, pair.ClientSecret)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("execute token request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return Token{}, backoff.Permanent(fmt.Errorf("%w: pair %q: auth endpoint returned %d",
			ErrAuthRejected, pair.Label, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return Token{}, fmt.Errorf("auth endpoint returned %d", resp.StatusCode)
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Token{}, fmt.Errorf("decode token response: %w", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return Token{}, backoff.Permanent(fmt.Errorf("%w: pair %q: token response missing access_token",
			ErrAuthRejected, pair.Label))
	}

	return Token{
		AccessToken: payload.AccessToken,
		IssuedAt:    s.now(),
		PairLabel:   pair.Label,
	}, nil
}

// TokenCache holds the single live token. Issuing a token for any pair
// discards the previous one, so a token can never outlive the rotation that
// replaced its pair.
type TokenCache struct {
	issuer   TokenIssuer
	validity time.Duration
	now      func() time.Time
	current  *Token
}

// NewTokenCache builds a cache around the given issuer and validity window.
func NewTokenCache(issuer TokenIssuer, validity time.Duration) *TokenCache {
	if validity <= 0 {
		validity = 50 * time.Minute
	}
	return &TokenCache{
		issuer:   issuer,
		validity: validity,
		now:      time.Now,
	}
}

// WithClock overrides the cache clock, for tests.
func (c *TokenCache) WithClock(now func() time.Time) *TokenCache {
	if now != nil {
		c.now = now
	}
	return c
}

// EnsureValid returns a valid token for the pair, issuing a new one when the
// cache is empty, holds another pair's token, or the cached token is stale.
// The second return reports whether a refresh happened.
func (c *TokenCache) EnsureValid(ctx context.Context, pair credentials.Pair) (Token, bool, error) {
	if c.current != nil && c.current.PairLabel == pair.Label && !c.current.Stale(c.now(), c.validity) {
		return *c.current, false, nil
	}

	issued, err := c.issuer.Issue(ctx, pair)
	if err != nil {
		return Token{}, false, err
	}
	c.current = &issued
	return issued, true, nil
}

// Invalidate drops the cached token. Used after rotation so the retry path
// cannot accidentally reuse a token belonging to a non-active pair.
func (c *TokenCache) Invalidate() {
	c.current = nil
}
