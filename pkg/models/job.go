package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus は関連付けジョブの状態を表します
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusError      JobStatus = "error"
)

// Terminal はジョブが終了状態（再開不可）かどうかを返します
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// CorrelationJob はパイプライン1回分の実行状況を表します
// 作成時はpending、バックグラウンド実行がprocessing以降へ遷移させます
type CorrelationJob struct {
	ID             uuid.UUID  `json:"jobId"`
	SeedASIN       string     `json:"seedAsin"`
	OwnerID        string     `json:"ownerId"`
	Status         JobStatus  `json:"status"`
	TotalCount     int        `json:"totalCount"`
	ProcessedCount int        `json:"processedCount"`
	ApprovedCount  int        `json:"approvedCount"`
	RejectedCount  int        `json:"rejectedCount"`
	ErrorMessage   string     `json:"errorMessage,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}
