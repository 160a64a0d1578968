package domain

import (
	"encoding/json"
	"time"
)

// JobType enumerates supported generation job categories.
type JobType string

const (
	JobTypeProduct   JobType = "product"
	JobTypeTryon     JobType = "tryon"
	JobTypeFreestyle JobType = "freestyle"
	JobTypeWorkflow  JobType = "workflow"
	JobTypeVideo     JobType = "video"
)

// ValidJobType reports whether the given type is one of the five supported categories.
func ValidJobType(t JobType) bool {
	switch t {
	case JobTypeProduct, JobTypeTryon, JobTypeFreestyle, JobTypeWorkflow, JobTypeVideo:
		return true
	}
	return false
}

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status can never change again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Quality selects the cost tier of a generation request.
type Quality string

const (
	QualityStandard Quality = "standard"
	QualityHigh     Quality = "high"
)

// Job encapsulates the lifecycle of one queued unit of generation work. Rows
// are never deleted; terminal jobs remain as the audit record.
type Job struct {
	ID              string
	UserID          string
	Type            JobType
	Status          JobStatus
	Payload         json.RawMessage
	ImageCount      int
	Quality         Quality
	PriorityScore   int64
	CreditsReserved int64
	CreditsRefunded int64
	Result          json.RawMessage
	ErrorMessage    string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// JobResult is the structured output written on terminal success. Errors holds
// per-attempt failure strings for partial freestyle runs.
type JobResult struct {
	Images []string `json:"images"`
	Errors []string `json:"errors,omitempty"`
}
