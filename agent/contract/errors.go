package contract

import "errors"

var (
	ErrModelInvoke     = errors.New("model invoke failed")
	ErrSchemaViolation = errors.New("model response violates schema")
	ErrPromptMissing   = errors.New("required prompt is missing")
	ErrValidation      = errors.New("validation failed")

	// ErrInferenceUnavailable marks a recoverable failure of the inference port
	// (unreachable, erroring or timed out) at router, specialist or formatter.
	ErrInferenceUnavailable = errors.New("inference unavailable")
	// ErrIdentity marks a request that references a customer other than the
	// session owner.
	ErrIdentity = errors.New("customer identity mismatch")
	// ErrUnknownDecision is returned by the graph when a decision has no edge.
	ErrUnknownDecision = errors.New("unknown routing decision")
)
