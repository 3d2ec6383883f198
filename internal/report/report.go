package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"labelscan/internal/batch"
)

// Entry is one identifier's outcome in serializable form.
type Entry struct {
	TrackingNumber string `json:"tracking_number"`
	AccountNumber  string `json:"account_number,omitempty"`
	Status         string `json:"status"`
	Reason         string `json:"reason,omitempty"`
	Description    string `json:"status_description,omitempty"`
	Code           string `json:"status_code,omitempty"`
	Type           string `json:"status_type,omitempty"`
	ErrorKind      string `json:"error_kind,omitempty"`
	HTTPStatus     int    `json:"http_status,omitempty"`
	ProcessedAt    string `json:"date_processed"`
}

// Summary mirrors the run counters.
type Summary struct {
	Attempted           int `json:"attempted"`
	LabelOnly           int `json:"label_only"`
	Excluded            int `json:"excluded"`
	Errors              int `json:"errors"`
	TokenRefreshes      int `json:"token_refreshes"`
	CredentialRotations int `json:"credential_rotations"`
}

// Report is the complete serializable output of one scan run.
type Report struct {
	RunID     string    `json:"run_id"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
	Summary   Summary   `json:"summary"`
	LabelOnly []Entry   `json:"label_only"`
	Excluded  []Entry   `json:"excluded"`
	Errors    []Entry   `json:"errors"`
}

const timestampLayout = "20060102_150405"

// Build assembles a report from a finished run.
func Build(runID string, result *batch.Result) *Report {
	labelOnly, excluded, failed := result.ByStatus()
	return &Report{
		RunID:    runID,
		Started:  result.Started,
		Finished: result.Finished,
		Summary: Summary{
			Attempted:           result.Stats.Attempted,
			LabelOnly:           result.Stats.LabelOnly,
			Excluded:            result.Stats.Excluded,
			Errors:              result.Stats.Errors,
			TokenRefreshes:      result.Stats.TokenRefreshes,
			CredentialRotations: result.Stats.CredentialRotations,
		},
		LabelOnly: entries(labelOnly),
		Excluded:  entries(excluded),
		Errors:    entries(failed),
	}
}

func entries(outcomes []batch.Outcome) []Entry {
	converted := make([]Entry, 0, len(outcomes))
	for _, outcome := range outcomes {
		converted = append(converted, Entry{
			TrackingNumber: outcome.TrackingNumber,
			AccountNumber:  outcome.AccountNumber,
			Status:         string(outcome.Status),
			Reason:         outcome.Reason,
			Description:    outcome.Description,
			Code:           outcome.Code,
			Type:           outcome.Type,
			ErrorKind:      string(outcome.ErrorKind),
			HTTPStatus:     outcome.HTTPStatus,
			ProcessedAt:    outcome.ProcessedAt.Format(time.RFC3339),
		})
	}
	return converted
}

// WriteJSON writes the full report under dir with a timestamped name and
// returns the file path.
func (r *Report) WriteJSON(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, "label_scan_results_"+r.Finished.Format(timestampLayout)+".json")

	payload, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// WriteCSV writes the label-only matches as a flat CSV under dir and
// returns the file path. Excluded and failed identifiers stay in the JSON
// report; the CSV is the hand-off artifact and carries confirmed matches
// only.
func (r *Report) WriteCSV(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, "label_scan_matches_"+r.Finished.Format(timestampLayout)+".csv")

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{
		"tracking_number",
		"account_number",
		"status_description",
		"status_code",
		"status_type",
		"date_processed",
	}
	if err := writer.Write(header); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, entry := range r.LabelOnly {
		row := []string{
			entry.TrackingNumber,
			entry.AccountNumber,
			entry.Description,
			entry.Code,
			entry.Type,
			entry.ProcessedAt,
		}
		if err := writer.Write(row); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return path, nil
}
