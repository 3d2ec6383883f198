package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"labelscan/internal/batch"
	"labelscan/internal/config"
)

// ErrNoDatabase reports a db_path that does not exist. The source store is
// read-only; opening must never create an empty database.
var ErrNoDatabase = errors.New("source database does not exist")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store reads tracking identifiers out of an invoice SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// Query selects which rows become identifiers. Table and column names come
// from configuration and are validated before interpolation.
type Query struct {
	Table          string
	TrackingColumn string
	AccountColumn  string
	DateColumn     string
	TrackingPrefix string
	StartDate      string
	EndDate        string
	Limit          int
}

// QueryFromConfig maps the source configuration section onto a Query.
func QueryFromConfig(cfg config.Source) Query {
	return Query{
		Table:          cfg.Table,
		TrackingColumn: cfg.TrackingColumn,
		AccountColumn:  cfg.AccountColumn,
		DateColumn:     cfg.DateColumn,
		TrackingPrefix: cfg.TrackingPrefix,
		StartDate:      cfg.StartDate,
		EndDate:        cfg.EndDate,
		Limit:          cfg.Limit,
	}
}

// Open connects to an existing invoice database.
func Open(path string) (*Store, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("expand db path: %w", err)
	}
	if _, statErr := os.Stat(expanded); statErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDatabase, expanded)
	}

	db, err := sql.Open("sqlite", expanded)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA query_only = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	return &Store{db: db, path: expanded}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the resolved database location.
func (s *Store) Path() string {
	return s.path
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func quoteIdent(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

// Identifiers returns the distinct tracking numbers matching the query, in
// tracking-number order, paired with the billing account when an account
// column is configured.
func (s *Store) Identifiers(ctx context.Context, q Query) ([]batch.Identifier, error) {
	stmt, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	if err := retryOnBusy(ctx, func() error {
		var queryErr error
		rows, queryErr = s.db.QueryContext(ctx, stmt, args...)
		return queryErr
	}); err != nil {
		return nil, fmt.Errorf("query identifiers: %w", err)
	}
	defer rows.Close()

	var identifiers []batch.Identifier
	for rows.Next() {
		var tracking string
		var account sql.NullString
		if q.AccountColumn != "" {
			err = rows.Scan(&tracking, &account)
		} else {
			err = rows.Scan(&tracking)
		}
		if err != nil {
			return nil, fmt.Errorf("scan identifier row: %w", err)
		}
		tracking = strings.TrimSpace(tracking)
		if tracking == "" {
			continue
		}
		identifiers = append(identifiers, batch.Identifier{
			TrackingNumber: tracking,
			AccountNumber:  strings.TrimSpace(account.String),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identifier rows: %w", err)
	}
	return identifiers, nil
}

func buildQuery(q Query) (string, []any, error) {
	table, err := quoteIdent(q.Table)
	if err != nil {
		return "", nil, fmt.Errorf("source table: %w", err)
	}
	trackingCol, err := quoteIdent(q.TrackingColumn)
	if err != nil {
		return "", nil, fmt.Errorf("tracking column: %w", err)
	}

	columns := trackingCol
	if q.AccountColumn != "" {
		accountCol, quoteErr := quoteIdent(q.AccountColumn)
		if quoteErr != nil {
			return "", nil, fmt.Errorf("account column: %w", quoteErr)
		}
		columns += ", " + accountCol
	}

	var sb strings.Builder
	var args []any
	fmt.Fprintf(&sb, "SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL", columns, table, trackingCol)
	if q.TrackingPrefix != "" {
		fmt.Fprintf(&sb, " AND %s LIKE ?", trackingCol)
		args = append(args, q.TrackingPrefix+"%")
	}
	if q.StartDate != "" || q.EndDate != "" {
		dateCol, quoteErr := quoteIdent(q.DateColumn)
		if quoteErr != nil {
			return "", nil, fmt.Errorf("date column: %w", quoteErr)
		}
		if q.StartDate != "" {
			fmt.Fprintf(&sb, " AND date(%s) >= date(?)", dateCol)
			args = append(args, q.StartDate)
		}
		if q.EndDate != "" {
			fmt.Fprintf(&sb, " AND date(%s) <= date(?)", dateCol)
			args = append(args, q.EndDate)
		}
	}
	fmt.Fprintf(&sb, " ORDER BY %s", trackingCol)
	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return sb.String(), args, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
