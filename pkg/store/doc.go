// Package store provides the shared counter store used by the rate limiter and
// the API key registry.
//
// The CounterStore interface is deliberately small: plain string values,
// atomic decrement, expiry, and prefix scans. Two implementations exist:
//
//   - RedisStore: backed by Redis through go-redis. This is the production
//     backend; all gateway replicas share one Redis so limits and keys are
//     consistent across processes.
//
//   - MemoryStore: a process-local map with per-key expiry. It is meant for
//     unit tests and single-instance development.
//
// # Errors
//
// Connectivity problems, timeouts, and cancelled contexts are returned wrapped
// in ErrUnavailable, so callers can test for them with errors.Is while still
// inspecting the underlying cause (for example context.DeadlineExceeded).
// A missing key is never an error: Get reports it through its found result.
//
// # Timeouts
//
// RedisStore bounds every call with a timeout (default 2s, see WithTimeout) in
// addition to any deadline already carried by the caller's context.
package store
