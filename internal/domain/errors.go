package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrEmptyDataset       = errors.New("dataset is empty or unreadable")
	ErrLockHeld           = errors.New("lock already held")
	ErrServiceUnavailable = errors.New("external service unavailable")
	ErrMalformedResponse  = errors.New("malformed service response")
	ErrContextDone        = errors.New("context cancelled")
)
