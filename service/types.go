package service

import (
	"time"

	"loyaltycast/models"
)

const (
	// MinMessageLength is the shortest message body a broadcast accepts
	MinMessageLength = 5

	// MaxSampleRecipients bounds the samples returned by previews
	MaxSampleRecipients = 5
)

// BroadcastRequest describes a preview or send against a validated program
type BroadcastRequest struct {
	Program      *models.Program
	Segment      models.SegmentName
	Config       models.SegmentConfig
	Message      string
	CampaignName string
	DryRun       bool
}

// RecipientSample identifies one recipient in a preview
type RecipientSample struct {
	MemberID         int64  `json:"memberId"`
	ExternalID       string `json:"externalId"`
	WalletInternalID string `json:"walletInternalId"`
	FirstName        string `json:"firstName,omitempty"`
}

// BroadcastResult is returned by both previews and sends. Failed recipients on a
// send are reported through FailedCount, never as an error.
type BroadcastResult struct {
	Success            bool              `json:"success"`
	DryRun             bool              `json:"dryRun"`
	TotalRecipients    int               `json:"totalRecipients"`
	SuccessCount       int               `json:"successCount"`
	FailedCount        int               `json:"failedCount"`
	SegmentDescription string            `json:"segmentDescription"`
	SampleRecipients   []RecipientSample `json:"sampleRecipients,omitempty"`
	CampaignLogID      *int64            `json:"campaignLogId,omitempty"`
}

// BirthdayRunOptions controls one birthday job invocation
type BirthdayRunOptions struct {
	DryRun bool

	// Date overrides today's date. Only its calendar date is used.
	Date *time.Time

	// IncludeDetails returns per-member outcomes on live runs. Dry runs always include them.
	IncludeDetails bool
}

// BirthdayRunResult aggregates one birthday job run. Counts are always complete;
// Details is capped and DetailsTruncated reports when entries were dropped.
type BirthdayRunResult struct {
	RunID            string                   `json:"runId"`
	Date             time.Time                `json:"date"`
	DryRun           bool                     `json:"dryRun"`
	ProgramsScanned  int                      `json:"programsScanned"`
	Eligible         int                      `json:"eligible"`
	Succeeded        int                      `json:"succeeded"`
	Skipped          int                      `json:"skipped"`
	Failed           int                      `json:"failed"`
	Notified         int                      `json:"notified"`
	Interrupted      bool                     `json:"interrupted,omitempty"`
	Details          []models.BirthdayOutcome `json:"details,omitempty"`
	DetailsTruncated bool                     `json:"detailsTruncated,omitempty"`
	CampaignLogID    *int64                   `json:"campaignLogId,omitempty"`
}

func sampleOf(m *models.Member) RecipientSample {
	s := RecipientSample{
		MemberID:         m.ID,
		ExternalID:       m.ExternalID,
		WalletInternalID: m.WalletInternalID,
	}
	if m.Profile != nil {
		s.FirstName = m.Profile.FirstName
	}
	return s
}

func samplesOf(members []*models.Member) []RecipientSample {
	n := min(len(members), MaxSampleRecipients)
	out := make([]RecipientSample, 0, n)
	for _, m := range members[:n] {
		out = append(out, sampleOf(m))
	}
	return out
}
