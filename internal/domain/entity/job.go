package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// ExportJob tracks one export run from request to composited output. Each
// job is attempted exactly once; a failed job goes straight to the DLQ.
type ExportJob struct {
	ID            uuid.UUID
	UserID        string
	BackgroundKey string
	OutputKey     string
	Status        JobStatus
	MoveCount     int
	FailedStage   string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func NewExportJob(userID, backgroundKey string, moveCount int) *ExportJob {
	now := time.Now().UTC()
	return &ExportJob{
		ID:            uuid.New(),
		UserID:        userID,
		BackgroundKey: backgroundKey,
		Status:        JobStatusPending,
		MoveCount:     moveCount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (j *ExportJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.UpdatedAt = time.Now().UTC()
}

func (j *ExportJob) MarkCompleted(outputKey string) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.OutputKey = outputKey
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *ExportJob) MarkFailed(stage, errMsg string) {
	j.Status = JobStatusFailed
	j.FailedStage = stage
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}
