package ups_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"labelscan/internal/ups"
)

func testToken() ups.Token {
	return ups.Token{AccessToken: "tok-abc", IssuedAt: time.Now(), PairLabel: "primary"}
}

func TestTrackReturnsDecodedRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-abc" {
			t.Fatalf("unexpected authorization header: %q", got)
		}
		if r.Header.Get("transId") == "" {
			t.Fatal("expected transId header")
		}
		if got := r.Header.Get("transactionSrc"); got != "labelscan-test" {
			t.Fatalf("unexpected transactionSrc: %q", got)
		}
		if r.URL.Path != "/api/track/v1/details/1Z999" {
			t.Fatalf("unexpected path: %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"trackResponse":{"shipment":[{"package":[{"activity":[]}]}]}}`))
	}))
	t.Cleanup(server.Close)

	client, err := ups.NewClient(server.URL+"/api/track/v1/details/", "labelscan-test")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	record, qerr := client.Track(context.Background(), "1Z999", testToken())
	if qerr != nil {
		t.Fatalf("Track returned error: %v", qerr)
	}
	if _, ok := record["trackResponse"]; !ok {
		t.Fatalf("decoded record missing trackResponse: %v", record)
	}
}

func TestTrackClassifiesFailures(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		body       string
		wantKind   ups.ErrorKind
		wantStatus int
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, wantKind: ups.KindRateLimited, wantStatus: 429},
		{name: "server error", status: http.StatusInternalServerError, body: `{}`, wantKind: ups.KindHTTPError, wantStatus: 500},
		{name: "not found", status: http.StatusNotFound, body: `{}`, wantKind: ups.KindHTTPError, wantStatus: 404},
		{name: "unparseable success", status: http.StatusOK, body: `<html>maintenance</html>`, wantKind: ups.KindProtocolError, wantStatus: 200},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(server.Close)

			client, err := ups.NewClient(server.URL+"/details/", "labelscan-test")
			if err != nil {
				t.Fatalf("NewClient returned error: %v", err)
			}

			record, qerr := client.Track(context.Background(), "1Z999", testToken())
			if record != nil {
				t.Fatalf("expected no record, got %v", record)
			}
			if qerr == nil {
				t.Fatal("expected classified error")
			}
			if qerr.Kind != tc.wantKind {
				t.Fatalf("kind: got %q want %q", qerr.Kind, tc.wantKind)
			}
			if qerr.StatusCode != tc.wantStatus {
				t.Fatalf("status: got %d want %d", qerr.StatusCode, tc.wantStatus)
			}
		})
	}
}

func TestTrackClassifiesNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client, err := ups.NewClient(server.URL+"/details/", "labelscan-test")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	_, qerr := client.Track(context.Background(), "1Z999", testToken())
	if qerr == nil || qerr.Kind != ups.KindNetworkError {
		t.Fatalf("expected network error, got %v", qerr)
	}
}

func TestTrackRejectsEmptyIdentifier(t *testing.T) {
	client, err := ups.NewClient("https://example.com/details/", "labelscan-test")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	_, qerr := client.Track(context.Background(), "  ", testToken())
	if qerr == nil || qerr.Kind != ups.KindProtocolError {
		t.Fatalf("expected protocol error for empty identifier, got %v", qerr)
	}
}
