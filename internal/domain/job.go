package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusGenerating JobStatus = "generating"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusGenerating, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a job may move from one status to another.
// Staying in the same non-terminal status is allowed (progress updates).
func CanTransition(from, to JobStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from.Terminal() {
		return false
	}
	switch from {
	case JobStatusPending:
		return to != JobStatusCompleted
	case JobStatusGenerating:
		return to != JobStatusPending
	}
	return false
}

// Job is one video generation request tracked for the session.
//
// Progress is an estimate derived from the number of status polls; it only
// reaches 100 once the remote operation reports completion.
type Job struct {
	ID             string      `json:"id"`
	BatchID        string      `json:"batch_id"`
	Prompt         string      `json:"prompt"`
	Status         JobStatus   `json:"status"`
	Progress       int         `json:"progress"`
	ResultLocation string      `json:"result_location,omitempty"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	AspectRatio    AspectRatio `json:"aspect_ratio"`
	WatermarkText  string      `json:"watermark_text,omitempty"`
	CharacterID    string      `json:"character_id,omitempty"`
	Model          string      `json:"model"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
