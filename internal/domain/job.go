package domain

import "time"

// JobType enumerates the asynchronous work a generation can carry.
type JobType string

const (
	JobTypeVisionExtract JobType = "vision_extract"
	JobTypeImageGenerate JobType = "image_generate"
	JobTypeImageEdit     JobType = "image_edit"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one unit of asynchronous work bound to a generation. At most one
// non-terminal job may exist per generation at any time.
type Job struct {
	ID           string
	GenerationID string
	Type         JobType
	Status       JobStatus
	Progress     int
	Attempts     int
	LastError    string
	UserMessage  string
	QueuedAt     time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// GenerationStatusFor maps a job status onto the generation mirror field.
func GenerationStatusFor(s JobStatus) GenerationStatus {
	switch s {
	case JobStatusQueued:
		return GenerationStatusQueued
	case JobStatusProcessing:
		return GenerationStatusProcessing
	case JobStatusCompleted:
		return GenerationStatusCompleted
	case JobStatusFailed:
		return GenerationStatusFailed
	default:
		return GenerationStatusDraft
	}
}
