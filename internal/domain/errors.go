package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidJobType      = errors.New("invalid job type")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrNotCancellable      = errors.New("job is no longer cancellable")
)
