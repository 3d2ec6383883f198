package batch

import (
	"time"

	"labelscan/internal/ups"
)

// Identifier is one tracking number to scan, with the originating account
// when the source store knows it.
type Identifier struct {
	TrackingNumber string
	AccountNumber  string
}

// Status buckets one identifier's final outcome.
type Status string

const (
	// StatusLabelOnly marks a confirmed label-only shipment.
	StatusLabelOnly Status = "label_only"
	// StatusExcluded marks a shipment the filter ruled out.
	StatusExcluded Status = "excluded"
	// StatusError marks an identifier whose lookup failed terminally.
	StatusError Status = "error"
)

// Outcome is the single classified result for one identifier. Every
// identifier in a run yields exactly one Outcome, in input order.
type Outcome struct {
	TrackingNumber string
	AccountNumber  string
	Status         Status
	Reason         string

	// Observed status fields, populated when a single activity entry was
	// compared.
	Description string
	Code        string
	Type        string

	// Error detail, populated for StatusError.
	ErrorKind  ups.ErrorKind
	HTTPStatus int

	// Raw is the decoded tracking document for successful lookups.
	Raw map[string]any

	ProcessedAt time.Time
}

// Stats are the run counters. They are written only by the scan loop's
// single goroutine and read once at completion.
type Stats struct {
	Attempted           int
	LabelOnly           int
	Excluded            int
	Errors              int
	TokenRefreshes      int
	CredentialRotations int
}

// Result is the complete output of one run: outcomes in input order plus
// final statistics. Zero successes is a valid result, not a failure.
type Result struct {
	Outcomes []Outcome
	Stats    Stats
	Started  time.Time
	Finished time.Time
}

// ByStatus partitions the outcomes into the three public buckets.
func (r *Result) ByStatus() (labelOnly, excluded, failed []Outcome) {
	for _, outcome := range r.Outcomes {
		switch outcome.Status {
		case StatusLabelOnly:
			labelOnly = append(labelOnly, outcome)
		case StatusExcluded:
			excluded = append(excluded, outcome)
		default:
			failed = append(failed, outcome)
		}
	}
	return labelOnly, excluded, failed
}
