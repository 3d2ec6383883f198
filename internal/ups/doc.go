// Package ups wraps the two UPS API calls labelscan makes: the OAuth
// client-credentials token exchange and the per-identifier tracking lookup.
//
// The token side pairs every issued token with the credential pair that
// produced it and keeps at most one live token; the tracking side classifies
// each failure (rate limit, HTTP status, network, unparseable body) without
// retrying, leaving failover policy to the batch processor.
package ups
