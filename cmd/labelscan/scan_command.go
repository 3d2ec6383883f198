package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"labelscan/internal/batch"
	"labelscan/internal/config"
	"labelscan/internal/credentials"
	"labelscan/internal/filter"
	"labelscan/internal/logging"
	"labelscan/internal/report"
	"labelscan/internal/source"
	"labelscan/internal/ups"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var csvPath string
	var dbPath string
	var startDate string
	var endDate string
	var limit int
	var listOnly bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan tracking numbers for label-only shipments",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			overrides := scanOverrides{
				csvPath:   csvPath,
				dbPath:    dbPath,
				startDate: startDate,
				endDate:   endDate,
				limit:     limit,
				listOnly:  listOnly,
			}
			return runScan(cmd, cfg, overrides)
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Read identifiers from a CSV file instead of the invoice database")
	cmd.Flags().StringVar(&dbPath, "db", "", "Invoice database path (overrides config)")
	cmd.Flags().StringVar(&startDate, "start-date", "", "Earliest invoice date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "Latest invoice date to include (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum identifiers to process (0 = no limit)")
	cmd.Flags().BoolVar(&listOnly, "list", false, "List the selected identifiers without querying UPS")
	return cmd
}

type scanOverrides struct {
	csvPath   string
	dbPath    string
	startDate string
	endDate   string
	limit     int
	listOnly  bool
}

func runScan(cmd *cobra.Command, cfg *config.Config, overrides scanOverrides) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	lockPath := filepath.Join(cfg.Logging.Dir, "labelscan.lock")
	lock := flock.New(lockPath)
	held, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !held {
		return fmt.Errorf("another labelscan run is already in progress (lock %s)", lockPath)
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			logger.Warn("release run lock", slog.String("error", unlockErr.Error()))
		}
	}()

	identifiers, err := loadIdentifiers(signalCtx, cfg, overrides)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(identifiers) == 0 {
		fmt.Fprintln(out, "No tracking numbers matched the selection; nothing to scan.")
		return nil
	}
	if overrides.listOnly {
		return renderIdentifierList(out, identifiers)
	}

	processor, err := buildProcessor(cfg, logger)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger.Info("starting scan",
		slog.String("run_id", runID),
		slog.Int("identifiers", len(identifiers)))

	result, runErr := processor.Run(signalCtx, identifiers)
	if runErr != nil && len(result.Outcomes) == 0 {
		return runErr
	}

	rpt := report.Build(runID, result)
	jsonPath, err := rpt.WriteJSON(cfg.Output.Dir)
	if err != nil {
		return err
	}
	csvPath, err := rpt.WriteCSV(cfg.Output.Dir)
	if err != nil {
		return err
	}
	logger.Info("reports written",
		slog.String("json", jsonPath),
		slog.String("csv", csvPath))

	renderSummary(out, rpt, jsonPath, csvPath)
	if runErr != nil {
		fmt.Fprintln(out, "Scan interrupted; results above are partial.")
		return runErr
	}
	return nil
}

func loadIdentifiers(ctx context.Context, cfg *config.Config, overrides scanOverrides) ([]batch.Identifier, error) {
	if overrides.csvPath != "" {
		return source.ReadCSV(overrides.csvPath)
	}

	dbPath := cfg.Source.DBPath
	if overrides.dbPath != "" {
		dbPath = overrides.dbPath
	}
	if dbPath == "" {
		return nil, fmt.Errorf("no identifier source: set source.db_path in the config, or pass --db or --csv")
	}
	store, err := source.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	query := source.QueryFromConfig(cfg.Source)
	if overrides.startDate != "" {
		query.StartDate = overrides.startDate
	}
	if overrides.endDate != "" {
		query.EndDate = overrides.endDate
	}
	if overrides.limit > 0 {
		query.Limit = overrides.limit
	}
	return store.Identifiers(ctx, query)
}

func buildProcessor(cfg *config.Config, logger *slog.Logger) (*batch.Processor, error) {
	manager, err := credentials.NewManager(cfg.Credentials)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout()}
	issuer, err := ups.NewTokenSource(cfg.UPS.AuthURL,
		ups.WithTokenHTTPClient(httpClient),
		ups.WithTokenRetry(cfg.UPS.AuthRetryAttempts, cfg.AuthRetryBackoff()))
	if err != nil {
		return nil, err
	}
	tokens := ups.NewTokenCache(issuer, cfg.TokenValidity())

	client, err := ups.NewClient(cfg.UPS.TrackingURL, cfg.UPS.TransactionSrc,
		ups.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	rules := filter.RulesFromConfig(cfg.Filter)
	return batch.New(manager, tokens, client, rules, cfg.RequestDelay(), logger), nil
}

func renderIdentifierList(out io.Writer, identifiers []batch.Identifier) error {
	rows := make([][]string, 0, len(identifiers))
	for _, id := range identifiers {
		rows = append(rows, []string{id.TrackingNumber, id.AccountNumber})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Tracking Number", "Account"},
		rows,
		[]columnAlignment{alignLeft, alignLeft},
	))
	fmt.Fprintf(out, "%d identifiers selected\n", len(identifiers))
	return nil
}

func renderSummary(out io.Writer, rpt *report.Report, jsonPath, csvPath string) {
	rows := [][]string{
		{"Attempted", strconv.Itoa(rpt.Summary.Attempted)},
		{"Label-only", strconv.Itoa(rpt.Summary.LabelOnly)},
		{"Excluded", strconv.Itoa(rpt.Summary.Excluded)},
		{"Errors", strconv.Itoa(rpt.Summary.Errors)},
		{"Token refreshes", strconv.Itoa(rpt.Summary.TokenRefreshes)},
		{"Credential rotations", strconv.Itoa(rpt.Summary.CredentialRotations)},
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Metric", "Count"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
	fmt.Fprintf(out, "Full report: %s\nMatches CSV: %s\n", jsonPath, csvPath)
}
