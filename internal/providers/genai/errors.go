package genai

import (
	"errors"
	"strings"
)

// ErrMissingAPIKey is returned when no key is available for an outbound call.
var ErrMissingAPIKey = errors.New("api key is not configured")

// RemoteError is a failure reported by (or on the way to) the generation API.
// Error returns the upstream message verbatim so it can be shown on the job.
type RemoteError struct {
	StatusCode int
	Status     string
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "remote generation error"
}

func (e *RemoteError) Unwrap() error { return e.Err }

// The API answers "Requested entity was not found." when the key belongs to a
// project without access to the model, or has been revoked.
var credentialInvalidMarkers = []string{
	"requested entity was not found",
	"entity was not found",
	"entity not found",
}

// IsCredentialInvalid reports whether err signals an invalid or expired
// credential rather than an ordinary failure. Matching is on the message so
// errors that were re-wrapped on the way up still classify.
func IsCredentialInvalid(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMissingAPIKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range credentialInvalidMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
