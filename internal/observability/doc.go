// Package observability builds the zap logger and the OpenTelemetry counters
// shared by the auth and token client packages.
//
// Metrics:
//   - auth.verifications: one per key set attempt, by endpoint and outcome
//   - auth.jwks.fetches: remote key set fetches, by endpoint and outcome
//   - auth.token.refreshes: client grants, by grant type and outcome
package observability
