// Package report serializes finished scan runs: a full JSON document with
// all three outcome buckets and run statistics, plus a flat CSV of the
// confirmed label-only matches for hand-off.
package report
