package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"labelscan/internal/credentials"
	"labelscan/internal/filter"
	"labelscan/internal/logging"
	"labelscan/internal/ups"
)

// TrackClient is the query surface the processor drives. *ups.Client
// satisfies it; tests substitute fakes.
type TrackClient interface {
	Track(ctx context.Context, trackingNumber string, token ups.Token) (map[string]any, *ups.QueryError)
}

// TokenProvider hands out valid tokens for the active pair and reports
// refreshes. *ups.TokenCache satisfies it.
type TokenProvider interface {
	EnsureValid(ctx context.Context, pair credentials.Pair) (ups.Token, bool, error)
	Invalidate()
}

// Processor runs the scan: one identifier in flight at a time, a fixed
// pacing delay between lookups, and a rotate-then-retry-once policy when
// the active credential pair fails. It owns all mutable run state; nothing
// here is package-level.
type Processor struct {
	creds   *credentials.Manager
	tokens  TokenProvider
	client  TrackClient
	rules   filter.Rules
	limiter *rate.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

// New builds a processor. delay is the fixed inter-request spacing; zero
// disables pacing (tests).
func New(creds *credentials.Manager, tokens TokenProvider, client TrackClient, rules filter.Rules, delay time.Duration, logger *slog.Logger) *Processor {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Processor{
		creds:   creds,
		tokens:  tokens,
		client:  client,
		rules:   rules,
		limiter: limiter,
		logger:  logging.WithComponent(logger, "batch"),
		now:     time.Now,
	}
}

// WithClock overrides the processor clock, for tests.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	if now != nil {
		p.now = now
	}
	return p
}

// Run processes the identifiers in order. It returns partial outcomes with
// accurate statistics when the context is cancelled, and fails outright only
// for a first-token auth rejection: every other failure is captured as an
// Outcome and the batch continues.
func (p *Processor) Run(ctx context.Context, identifiers []Identifier) (*Result, error) {
	result := &Result{
		Outcomes: make([]Outcome, 0, len(identifiers)),
		Started:  p.now(),
	}

	p.logger.Info("scan started",
		slog.Int("identifiers", len(identifiers)),
		slog.String("credential_pair", p.creds.Label()))

	tokenEverIssued := false
	for i, id := range identifiers {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("scan cancelled",
				slog.Int("processed", len(result.Outcomes)),
				slog.Int("remaining", len(identifiers)-i))
			result.Finished = p.now()
			return result, err
		}

		p.logger.Debug("processing identifier",
			slog.Int("position", i+1),
			slog.Int("total", len(identifiers)),
			slog.String("tracking_number", id.TrackingNumber))

		outcome, issued, err := p.processOne(ctx, id, tokenEverIssued, &result.Stats)
		tokenEverIssued = tokenEverIssued || issued
		if err != nil {
			result.Finished = p.now()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, err
			}
			// First-token auth rejection: nothing was processed, abort.
			return result, fmt.Errorf("obtain first token: %w", err)
		}

		result.Stats.Attempted++
		switch outcome.Status {
		case StatusLabelOnly:
			result.Stats.LabelOnly++
			p.logger.Info("label-only match",
				slog.String("tracking_number", id.TrackingNumber),
				slog.String("reason", outcome.Reason))
		case StatusExcluded:
			result.Stats.Excluded++
			p.logger.Debug("excluded",
				slog.String("tracking_number", id.TrackingNumber),
				slog.String("reason", outcome.Reason))
		case StatusError:
			result.Stats.Errors++
			p.logger.Warn("lookup failed",
				slog.String("tracking_number", id.TrackingNumber),
				slog.String("kind", string(outcome.ErrorKind)),
				slog.String("reason", outcome.Reason))
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	result.Finished = p.now()
	p.logger.Info("scan finished",
		slog.Int("attempted", result.Stats.Attempted),
		slog.Int("label_only", result.Stats.LabelOnly),
		slog.Int("excluded", result.Stats.Excluded),
		slog.Int("errors", result.Stats.Errors),
		slog.Int("token_refreshes", result.Stats.TokenRefreshes),
		slog.Int("credential_rotations", result.Stats.CredentialRotations))
	return result, nil
}

// processOne drives one identifier through the state machine. The returned
// error is non-nil only for cancellation or a fatal first-token rejection;
// every expected failure becomes a terminal Outcome instead. The bool
// reports whether a token was successfully issued at any point.
func (p *Processor) processOne(ctx context.Context, id Identifier, tokenEverIssued bool, stats *Stats) (Outcome, bool, error) {
	pair := p.creds.Current()
	token, refreshed, err := p.tokens.EnsureValid(ctx, pair)
	if refreshed {
		stats.TokenRefreshes++
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, tokenEverIssued, ctxErr
		}
		if !tokenEverIssued {
			// No pair has ever produced a token: the whole run is
			// misconfigured, not one unlucky identifier.
			return Outcome{}, false, err
		}
		return p.rotateAndRetry(ctx, id, authFailure(err), stats), true, nil
	}
	tokenEverIssued = true

	record, qerr := p.track(ctx, id, token)
	if qerr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Outcome{}, true, ctxErr
		}
		return p.rotateAndRetry(ctx, id, qerr, stats), true, nil
	}
	return p.classify(id, record), true, nil
}

// rotateAndRetry applies the failover policy: advance to the next pair and
// re-issue the same identifier's query exactly once. Exhaustion, a token
// failure on the new pair, or a failed retry all terminate the identifier
// with an error outcome; the batch itself continues either way.
func (p *Processor) rotateAndRetry(ctx context.Context, id Identifier, cause *ups.QueryError, stats *Stats) Outcome {
	if err := p.creds.Advance(); err != nil {
		p.logger.Warn("credential pool exhausted, recording terminal error",
			slog.String("tracking_number", id.TrackingNumber),
			slog.String("cause", cause.Error()))
		return p.errorOutcome(id, cause)
	}
	stats.CredentialRotations++
	p.tokens.Invalidate()

	pair := p.creds.Current()
	p.logger.Info("rotated credential pair",
		slog.String("pair", pair.Label),
		slog.String("cause", string(cause.Kind)))

	token, refreshed, err := p.tokens.EnsureValid(ctx, pair)
	if refreshed {
		stats.TokenRefreshes++
	}
	if err != nil {
		return p.errorOutcome(id, authFailure(err))
	}

	record, qerr := p.track(ctx, id, token)
	if qerr != nil {
		return p.errorOutcome(id, qerr)
	}
	return p.classify(id, record)
}

func (p *Processor) track(ctx context.Context, id Identifier, token ups.Token) (map[string]any, *ups.QueryError) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &ups.QueryError{Kind: ups.KindNetworkError, Message: err.Error(), Err: err}
	}
	return p.client.Track(ctx, id.TrackingNumber, token)
}

func (p *Processor) classify(id Identifier, record map[string]any) Outcome {
	decision := p.rules.Classify(record)

	status := StatusExcluded
	if decision.Verdict == filter.VerdictLabelOnly {
		status = StatusLabelOnly
	}
	return Outcome{
		TrackingNumber: id.TrackingNumber,
		AccountNumber:  id.AccountNumber,
		Status:         status,
		Reason:         decision.Reason,
		Description:    decision.Description,
		Code:           decision.Code,
		Type:           decision.Type,
		Raw:            record,
		ProcessedAt:    p.now(),
	}
}

func (p *Processor) errorOutcome(id Identifier, cause *ups.QueryError) Outcome {
	return Outcome{
		TrackingNumber: id.TrackingNumber,
		AccountNumber:  id.AccountNumber,
		Status:         StatusError,
		Reason:         cause.Message,
		ErrorKind:      cause.Kind,
		HTTPStatus:     cause.StatusCode,
		ProcessedAt:    p.now(),
	}
}

func authFailure(err error) *ups.QueryError {
	return &ups.QueryError{Kind: ups.KindAuthError, Message: err.Error(), Err: err}
}
