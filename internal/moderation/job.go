package moderation

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one safe-search check of an item's photo. ItemID doubles as the
// idempotency key: re-publishing a check for the same item resolves to
// the existing job.
type Job struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	ItemID   string `gorm:"size:26;uniqueIndex;not null"`
	ImageURL string `gorm:"type:varchar(512);not null"`

	Status JobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when succeeded
	Safe *bool

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Job) TableName() string { return "moderation_jobs" }
