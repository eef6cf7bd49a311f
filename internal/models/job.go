package models

import "time"

// JobState tracks a pipeline invocation through its state machine.
// Every non-terminal state may transition to JobFailed; only
// JobCommitted produces a VideoAsset.
type JobState string

const (
	JobReceived         JobState = "received"
	JobValidated        JobState = "validated"
	JobProbed           JobState = "probed"
	JobPlanned          JobState = "planned"
	JobEncoding         JobState = "encoding"
	JobEncoded          JobState = "encoded"
	JobThumbnailPending JobState = "thumbnail_pending"
	JobCommitted        JobState = "committed"
	JobFailed           JobState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s JobState) Terminal() bool {
	return s == JobCommitted || s == JobFailed
}

// EncodeJob is one pipeline invocation. The scheduler owns the job for
// its lifetime; callers hold only the job id and a completion handle.
type EncodeJob struct {
	JobID       string        `json:"job_id" redis:"job_id" validate:"required"`
	UserID      string        `json:"user_id" redis:"user_id" validate:"omitempty"`
	FileName    string        `json:"file_name" redis:"file_name" validate:"required,lte=255"`
	SourcePath  string        `json:"-" redis:"-"`
	Plan        EncodePlan    `json:"plan" redis:"plan"`
	Metadata    MediaMetadata `json:"metadata" redis:"metadata"`
	State       JobState      `json:"state" redis:"state"`
	Error       string        `json:"error,omitempty" redis:"error"`
	StartedAt   time.Time     `json:"started_at" redis:"started_at"`
	CompletedAt time.Time     `json:"completed_at,omitempty" redis:"completed_at"`
}
