package core

import "errors"

// These sentinels model the abstract error kinds of spec §7. They are never
// a typed exception hierarchy — callers match with errors.Is and wrap with
// %w to attach context.
var (
	// ErrConfig: missing template, missing API credential, invalid provider
	// kind. Surfaced to the caller of create_execution/run. Not retried.
	ErrConfig = errors.New("config error")

	// ErrProviderTransient: network failure, HTTP 5xx, rate limit. Retried
	// with backoff up to a phase's max_retries.
	ErrProviderTransient = errors.New("provider transient error")

	// ErrProviderFatal: 4xx other than 429, malformed response. Not
	// retried; consult failure_behavior.
	ErrProviderFatal = errors.New("provider fatal error")

	// ErrTimeout: phase exceeded its deadline. Not retried; eligible for
	// FALLBACK_PROVIDER.
	ErrTimeout = errors.New("phase timeout")

	// ErrBudgetExceeded: fails the phase and transitions the execution to
	// BUDGET_EXCEEDED.
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrApprovalRejected: transitions execution to PAUSED with a reason;
	// resumable.
	ErrApprovalRejected = errors.New("approval rejected")

	// ErrCancelled: terminal; no further events beyond status_update(CANCELLED).
	ErrCancelled = errors.New("cancelled")

	// ErrNotFound is returned by store lookups for a missing id.
	ErrNotFound = errors.New("not found")
)
