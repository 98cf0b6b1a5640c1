package service

import "errors"

// Service layer errors. Handlers map these onto HTTP statuses.
var (
	// ErrInvalidInput: the request is malformed, nothing was persisted.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientCredits: the balance does not cover the generation cost.
	// Raised before any project row exists.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrDuplicateSubmission: this idempotency token was already used within
	// the dedup window.
	ErrDuplicateSubmission = errors.New("duplicate submission")

	ErrProjectNotFound = errors.New("project not found")
	ErrObjectNotFound  = errors.New("object not found")

	// Terminal generation failures, distinguished so the client can tell the
	// user whose fault it was.
	ErrContentBlocked      = errors.New("content blocked by safety filter")
	ErrImageMissing        = errors.New("model returned no image")
	ErrEmptyResponse       = errors.New("model returned an empty response")
	ErrUpstreamUnavailable = errors.New("image generation service unavailable")
)
