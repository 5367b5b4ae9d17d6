package models

import (
	"time"
)

// CampaignLog is the immutable audit record of one dispatch run.
// ProgramID is nil for runs spanning programs, such as the birthday job.
type CampaignLog struct {
	ID             int64       `db:"id" json:"id"`
	ProgramID      *int64      `db:"program_id" json:"programId,omitempty"`
	CampaignName   string      `db:"campaign_name" json:"campaignName"`
	RecipientCount int         `db:"recipient_count" json:"recipientCount"`
	SuccessCount   int         `db:"success_count" json:"successCount"`
	FailureCount   int         `db:"failure_count" json:"failureCount"`
	MessageBody    string      `db:"message_body" json:"messageBody"`
	TargetSegment  SegmentName `db:"target_segment" json:"targetSegment"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
}
