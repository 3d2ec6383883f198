// Package batch orchestrates a scan run: it walks the identifier list one
// lookup at a time, keeps the active credential pair's token valid, rotates
// pairs on failure with a single retry per rotation, classifies successful
// lookups through the filter engine, and accumulates run statistics.
//
// The loop is deliberately sequential. Rate limits are per credential pair,
// so concurrent fan-out would only complicate rotation semantics; shared
// state (active pair, cached token, counters) is touched by one goroutine
// and needs no locking.
package batch
