// Package logging builds the slog loggers used across labelscan.
//
// Two handler formats are supported: a compact console format for
// interactive runs and JSON for capture. When no format is configured the
// package picks console on a terminal and JSON otherwise. Output can fan
// out to stdout plus a log file under the configured log directory.
package logging
