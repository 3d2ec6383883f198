package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"labelscan/internal/batch"
)

// ReadCSV loads identifiers from a CSV file: tracking number in the first
// column, optional account number in the second. A header row is detected
// and skipped, blank rows are ignored, and duplicate tracking numbers keep
// their first occurrence.
func ReadCSV(path string) ([]batch.Identifier, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open identifier csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var identifiers []batch.Identifier
	seen := make(map[string]struct{})
	first := true
	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read identifier csv: %w", readErr)
		}
		if first {
			first = false
			if looksLikeHeader(record) {
				continue
			}
		}
		if len(record) == 0 {
			continue
		}
		tracking := strings.TrimSpace(record[0])
		if tracking == "" {
			continue
		}
		if _, dup := seen[tracking]; dup {
			continue
		}
		seen[tracking] = struct{}{}

		account := ""
		if len(record) > 1 {
			account = strings.TrimSpace(record[1])
		}
		identifiers = append(identifiers, batch.Identifier{
			TrackingNumber: tracking,
			AccountNumber:  account,
		})
	}
	return identifiers, nil
}

func looksLikeHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(record[0]))
	return strings.Contains(first, "track")
}
