package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown provider or format.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Runs cannot start without a generative rewrite provider.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrResearchUnavailable indicates no grounded research provider is configured.
	ErrResearchUnavailable = errors.New("research provider unavailable")

	// ErrProviderFailure indicates a research or rewrite call failed
	// (network, authentication, malformed response). It aborts the run.
	ErrProviderFailure = errors.New("provider failure")

	// ErrCostLimitExceeded indicates the cost budget would be exceeded by
	// the next external call. It is a policy stop, not an infrastructure fault.
	ErrCostLimitExceeded = errors.New("cost limit exceeded")

	// ErrRateLimited indicates the provider rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")
)
