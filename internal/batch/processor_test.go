package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"labelscan/internal/config"
	"labelscan/internal/credentials"
	"labelscan/internal/filter"
	"labelscan/internal/ups"
)

const matchDescription = "Shipper created a label, UPS has not received the package yet. "

func testRules() filter.Rules {
	return filter.RulesFromConfig(config.Default().Filter)
}

func testManager(t *testing.T, labels ...string) *credentials.Manager {
	t.Helper()
	creds := make([]config.Credential, 0, len(labels))
	for _, label := range labels {
		creds = append(creds, config.Credential{
			Label:        label,
			ClientID:     "id-" + label,
			ClientSecret: "secret-" + label,
		})
	}
	manager, err := credentials.NewManager(creds)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return manager
}

// fakeTokens mimics the single-slot cache: a token is reused until the pair
// changes or Invalidate discards it. deny, when set, can reject a call
// before the cache is consulted.
type fakeTokens struct {
	deny          func(pair credentials.Pair, call int) error
	calls         int
	issues        int
	invalidations int
	current       string
}

func (f *fakeTokens) EnsureValid(_ context.Context, pair credentials.Pair) (ups.Token, bool, error) {
	f.calls++
	if f.deny != nil {
		if err := f.deny(pair, f.calls); err != nil {
			return ups.Token{}, false, err
		}
	}
	if f.current == pair.Label {
		return ups.Token{AccessToken: "tok-" + pair.Label, PairLabel: pair.Label}, false, nil
	}
	f.current = pair.Label
	f.issues++
	return ups.Token{AccessToken: "tok-" + pair.Label, PairLabel: pair.Label}, true, nil
}

func (f *fakeTokens) Invalidate() {
	f.current = ""
	f.invalidations++
}

type fakeClient struct {
	fn func(trackingNumber string, token ups.Token) (map[string]any, *ups.QueryError)
}

func (f *fakeClient) Track(_ context.Context, trackingNumber string, token ups.Token) (map[string]any, *ups.QueryError) {
	return f.fn(trackingNumber, token)
}

func trackDoc(activities ...map[string]any) map[string]any {
	entries := make([]any, 0, len(activities))
	for _, activity := range activities {
		entries = append(entries, activity)
	}
	return map[string]any{
		"trackResponse": map[string]any{
			"shipment": []any{
				map[string]any{
					"package": []any{
						map[string]any{"activity": entries},
					},
				},
			},
		},
	}
}

func activity(description, code, typ string) map[string]any {
	return map[string]any{
		"status": map[string]any{
			"description": description,
			"code":        code,
			"type":        typ,
		},
	}
}

func labelOnlyActivity() map[string]any {
	return activity(matchDescription, "MP", "M")
}

func rateLimited() *ups.QueryError {
	return &ups.QueryError{Kind: ups.KindRateLimited, StatusCode: 429, Message: "rate limited (HTTP 429)"}
}

func TestRunRotatesOnRateLimitAndStaysOnNewPair(t *testing.T) {
	manager := testManager(t, "pair-1", "pair-2")
	tokens := &fakeTokens{}
	client := &fakeClient{fn: func(trackingNumber string, token ups.Token) (map[string]any, *ups.QueryError) {
		switch {
		case token.PairLabel == "pair-1" && trackingNumber == "1ZA":
			return trackDoc(labelOnlyActivity()), nil
		case token.PairLabel == "pair-1":
			return nil, rateLimited()
		case trackingNumber == "1ZB":
			return trackDoc(labelOnlyActivity(), labelOnlyActivity(), labelOnlyActivity()), nil
		case trackingNumber == "1ZC":
			return trackDoc(activity("Delivered", "KB", "D")), nil
		}
		t.Fatalf("unexpected lookup %s with pair %s", trackingNumber, token.PairLabel)
		return nil, nil
	}}

	processor := New(manager, tokens, client, testRules(), 0, nil)
	result, err := processor.Run(context.Background(), []Identifier{
		{TrackingNumber: "1ZA", AccountNumber: "A1"},
		{TrackingNumber: "1ZB", AccountNumber: "A2"},
		{TrackingNumber: "1ZC", AccountNumber: "A3"},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(result.Outcomes))
	}

	if result.Outcomes[0].Status != StatusLabelOnly {
		t.Errorf("first outcome = %s, want %s", result.Outcomes[0].Status, StatusLabelOnly)
	}
	if result.Outcomes[1].Status != StatusExcluded {
		t.Errorf("second outcome = %s, want %s", result.Outcomes[1].Status, StatusExcluded)
	}
	if result.Outcomes[1].Reason != "3 activity records, expected exactly 1" {
		t.Errorf("second outcome reason = %q", result.Outcomes[1].Reason)
	}
	if result.Outcomes[2].Status != StatusExcluded {
		t.Errorf("third outcome = %s, want %s", result.Outcomes[2].Status, StatusExcluded)
	}
	if result.Outcomes[2].Reason != "status description mismatch" {
		t.Errorf("third outcome reason = %q", result.Outcomes[2].Reason)
	}

	stats := result.Stats
	if stats.Attempted != 3 || stats.LabelOnly != 1 || stats.Excluded != 2 || stats.Errors != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.CredentialRotations != 1 {
		t.Errorf("rotations = %d, want 1", stats.CredentialRotations)
	}
	if stats.TokenRefreshes != 2 {
		t.Errorf("token refreshes = %d, want 2", stats.TokenRefreshes)
	}
	if manager.Label() != "pair-2" {
		t.Errorf("active pair after run = %s, want pair-2", manager.Label())
	}
	if tokens.invalidations != 1 {
		t.Errorf("invalidations = %d, want 1", tokens.invalidations)
	}
}

func TestRunExhaustedPoolRecordsErrorAndContinues(t *testing.T) {
	manager := testManager(t, "only")
	tokens := &fakeTokens{}
	client := &fakeClient{fn: func(trackingNumber string, _ ups.Token) (map[string]any, *ups.QueryError) {
		if trackingNumber == "1ZFAIL" {
			return nil, rateLimited()
		}
		return trackDoc(labelOnlyActivity()), nil
	}}

	processor := New(manager, tokens, client, testRules(), 0, nil)
	result, err := processor.Run(context.Background(), []Identifier{
		{TrackingNumber: "1ZFAIL", AccountNumber: "A1"},
		{TrackingNumber: "1ZOK", AccountNumber: "A2"},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(result.Outcomes))
	}

	failed := result.Outcomes[0]
	if failed.Status != StatusError {
		t.Fatalf("first outcome = %s, want %s", failed.Status, StatusError)
	}
	if failed.ErrorKind != ups.KindRateLimited || failed.HTTPStatus != 429 {
		t.Errorf("error detail = %s/%d", failed.ErrorKind, failed.HTTPStatus)
	}
	if failed.TrackingNumber != "1ZFAIL" || failed.AccountNumber != "A1" {
		t.Errorf("identifier not preserved: %s/%s", failed.TrackingNumber, failed.AccountNumber)
	}
	if result.Outcomes[1].Status != StatusLabelOnly {
		t.Errorf("second outcome = %s, want %s", result.Outcomes[1].Status, StatusLabelOnly)
	}
	if result.Stats.CredentialRotations != 0 {
		t.Errorf("rotations = %d, want 0", result.Stats.CredentialRotations)
	}
	if result.Stats.Errors != 1 || result.Stats.LabelOnly != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}
}

func TestRunRetryFailureTerminatesIdentifierAfterOneRotation(t *testing.T) {
	manager := testManager(t, "pair-1", "pair-2")
	tokens := &fakeTokens{}
	client := &fakeClient{fn: func(string, ups.Token) (map[string]any, *ups.QueryError) {
		return nil, rateLimited()
	}}

	processor := New(manager, tokens, client, testRules(), 0, nil)
	result, err := processor.Run(context.Background(), []Identifier{
		{TrackingNumber: "1ZA"},
		{TrackingNumber: "1ZB"},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Stats.Errors != 2 {
		t.Fatalf("errors = %d, want 2", result.Stats.Errors)
	}
	// The pool is exhausted after the first identifier's single rotation.
	if result.Stats.CredentialRotations != 1 {
		t.Errorf("rotations = %d, want 1", result.Stats.CredentialRotations)
	}
	for i, outcome := range result.Outcomes {
		if outcome.Status != StatusError {
			t.Errorf("outcome %d = %s, want %s", i, outcome.Status, StatusError)
		}
	}
}

func TestRunMidBatchAuthFailureRotates(t *testing.T) {
	manager := testManager(t, "pair-1", "pair-2")
	tokens := &fakeTokens{}
	tokens.deny = func(pair credentials.Pair, call int) error {
		if pair.Label == "pair-1" && call > 1 {
			return ups.ErrAuthRejected
		}
		return nil
	}
	client := &fakeClient{fn: func(string, ups.Token) (map[string]any, *ups.QueryError) {
		return trackDoc(labelOnlyActivity()), nil
	}}

	processor := New(manager, tokens, client, testRules(), 0, nil)
	result, err := processor.Run(context.Background(), []Identifier{
		{TrackingNumber: "1ZA"},
		{TrackingNumber: "1ZB"},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Stats.LabelOnly != 2 || result.Stats.Errors != 0 {
		t.Fatalf("stats = %+v", result.Stats)
	}
	if result.Stats.CredentialRotations != 1 {
		t.Errorf("rotations = %d, want 1", result.Stats.CredentialRotations)
	}
	if manager.Label() != "pair-2" {
		t.Errorf("active pair = %s, want pair-2", manager.Label())
	}
}

func TestRunFirstTokenRejectionIsFatal(t *testing.T) {
	manager := testManager(t, "only")
	tokens := &fakeTokens{deny: func(credentials.Pair, int) error {
		return ups.ErrAuthRejected
	}}
	client := &fakeClient{fn: func(string, ups.Token) (map[string]any, *ups.QueryError) {
		t.Fatal("Track should not be called without a token")
		return nil, nil
	}}

	processor := New(manager, tokens, client, testRules(), 0, nil)
	result, err := processor.Run(context.Background(), []Identifier{{TrackingNumber: "1ZA"}})
	if err == nil {
		t.Fatal("expected fatal error for first-token rejection")
	}
	if !errors.Is(err, ups.ErrAuthRejected) {
		t.Errorf("error = %v, want ErrAuthRejected in chain", err)
	}
	if len(result.Outcomes) != 0 || result.Stats.Attempted != 0 {
		t.Errorf("expected empty result, got %d outcomes, stats %+v", len(result.Outcomes), result.Stats)
	}
}

func TestRunCancellationReturnsPartialResult(t *testing.T) {
	manager := testManager(t, "only")
	tokens := &fakeTokens{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := &fakeClient{fn: func(string, ups.Token) (map[string]any, *ups.QueryError) {
		cancel()
		return trackDoc(labelOnlyActivity()), nil
	}}

	processor := New(manager, tokens, client, testRules(), 0, nil)
	result, err := processor.Run(ctx, []Identifier{
		{TrackingNumber: "1ZA"},
		{TrackingNumber: "1ZB"},
		{TrackingNumber: "1ZC"},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(result.Outcomes) != 1 {
		t.Fatalf("expected 1 partial outcome, got %d", len(result.Outcomes))
	}
	if result.Stats.Attempted != 1 {
		t.Errorf("attempted = %d, want 1", result.Stats.Attempted)
	}
	if result.Finished.IsZero() {
		t.Error("Finished not set on cancellation")
	}
}

func TestRunTimestampsAndOrder(t *testing.T) {
	manager := testManager(t, "only")
	tokens := &fakeTokens{}
	client := &fakeClient{fn: func(string, ups.Token) (map[string]any, *ups.QueryError) {
		return trackDoc(labelOnlyActivity()), nil
	}}

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	processor := New(manager, tokens, client, testRules(), 0, nil).WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})

	ids := []Identifier{{TrackingNumber: "1ZA"}, {TrackingNumber: "1ZB"}}
	result, err := processor.Run(context.Background(), ids)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	for i, outcome := range result.Outcomes {
		if outcome.TrackingNumber != ids[i].TrackingNumber {
			t.Errorf("outcome %d out of order: %s", i, outcome.TrackingNumber)
		}
		if outcome.ProcessedAt.IsZero() {
			t.Errorf("outcome %d missing ProcessedAt", i)
		}
	}
	if !result.Finished.After(result.Started) {
		t.Errorf("Finished %v not after Started %v", result.Finished, result.Started)
	}
}
