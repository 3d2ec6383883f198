// Package config loads, normalizes, and validates labelscan configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// UPS_CLIENT_ID/UPS_CLIENT_SECRET. The Config type centralizes every knob the
// CLI needs: the ordered credential pool, UPS endpoints, the label-only match
// constants, batch pacing, and the historical store the tracking numbers are
// extracted from.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, a non-empty credential pool, and clear validation errors.
package config
