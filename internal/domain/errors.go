package domain

import "errors"

var (
	ErrNotFound                  = errors.New("not found")
	ErrInvalidConfig             = errors.New("invalid generation config")
	ErrInvalidCharacter          = errors.New("invalid character")
	ErrInvalidTemplate           = errors.New("invalid template")
	ErrInvalidTransition         = errors.New("invalid job status transition")
	ErrJobNotCompleted           = errors.New("job not completed")
	ErrJobFailed                 = errors.New("job failed")
	ErrCredentialUnavailable     = errors.New("credential unavailable")
	ErrCredentialInvalidated     = errors.New("credential invalidated")
	ErrHostCapabilityUnavailable = errors.New("host credential capability unavailable")
)

// Notice codes raised into the session-level notice slot.
const (
	NoticeCredentialInvalidated = "credential_invalidated"
	NoticeSelectorFailed        = "credential_selector_failed"
)
