// Package source loads the tracking identifiers a scan will process.
// Identifiers come either from a SQLite invoice database (distinct tracking
// numbers with their billing accounts, optionally windowed by invoice date)
// or from a plain CSV file for ad-hoc runs.
package source
