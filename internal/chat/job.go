package chat

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// SaveJob is one queued conversation save. Payload carries the JSON snapshot
// of the transcript taken when the job was created, so the worker replays
// exactly what the client saw.
type SaveJob struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	UserID      string `gorm:"size:64;index;not null"`
	CharacterID string `gorm:"size:26;index;not null"`

	Payload string `gorm:"type:text;not null"`

	Status JobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SaveJob) TableName() string { return "save_jobs" }
