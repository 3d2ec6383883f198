// Package filter decides whether a UPS tracking record is "label-only":
// a shipping label was generated but no physical carrier handoff was ever
// recorded. The decision is a pure structural predicate over the nested
// tracking document, driven entirely by configured contract constants.
package filter
