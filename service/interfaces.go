package service

import (
	"context"
	"time"

	"loyaltycast/events"
	"loyaltycast/models"
)

// ProgramRepository defines the interface for program lookups
type ProgramRepository interface {
	// GetByTenantAndWalletID retrieves a program by tenant and wallet provider program id.
	// Returns nil, nil when no program matches the pair.
	GetByTenantAndWalletID(ctx context.Context, tenantID, walletProgramID string) (*models.Program, error)

	// ListBirthdayEnabled returns all membership programs opted into birthday rewards
	ListBirthdayEnabled(ctx context.Context) ([]*models.Program, error)
}

// MemberRepository defines the member directory queries the engine needs
type MemberRepository interface {
	// ListEligible returns installed, active members of the program whose protocol matches
	ListEligible(ctx context.Context, programID int64, protocol models.Protocol) ([]*models.Member, error)

	// ListWithBirthDates returns installed, active membership members with a profile birth date
	ListWithBirthDates(ctx context.Context, programID int64) ([]*models.Member, error)
}

// CampaignLogRepository defines the append-only campaign audit store
type CampaignLogRepository interface {
	// Append writes a new entry and returns its id
	Append(ctx context.Context, entry *models.CampaignLog) (int64, error)

	// Query returns the newest entries, optionally restricted to one program
	Query(ctx context.Context, programID *int64, limit int) ([]*models.CampaignLog, error)
}

// BirthdayClaimRepository defines the (member, year) idempotency store
type BirthdayClaimRepository interface {
	// Claim inserts the claim row. Returns false, nil when the row already exists.
	Claim(ctx context.Context, memberID int64, year int) (bool, error)

	// Release deletes the claim row so a later run may retry
	Release(ctx context.Context, memberID int64, year int) error
}

// PointsGranter defines the balance mutation used by the birthday job
type PointsGranter interface {
	GrantPoints(ctx context.Context, memberID int64, amount int64, description string, metadata map[string]any) error
}

// WalletGateway defines the push-notification gateway
type WalletGateway interface {
	// SendMessage pushes text to one wallet pass
	SendMessage(ctx context.Context, walletInternalID, walletProgramID, text string) error
}

// EstimateCache stores segment estimated counts
type EstimateCache interface {
	// Get returns the cached count and whether it was present
	Get(ctx context.Context, key string) (int, bool, error)
	Set(ctx context.Context, key string, count int, ttl time.Duration) error
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// NotificationService is the caller-facing broadcast surface
type NotificationService interface {
	// ValidateProgram resolves a program by tenant and wallet program id and checks its protocol
	ValidateProgram(ctx context.Context, tenantID, walletProgramID string, protocol models.Protocol) (*models.Program, error)

	// ListSegments returns the segments available to the program, with estimates where cheap
	ListSegments(ctx context.Context, program *models.Program) ([]models.SegmentDefinition, error)

	// PreviewSegment resolves the audience without sending or logging anything
	PreviewSegment(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error)

	// SendBroadcast dispatches the message to the segment, or previews when req.DryRun is set
	SendBroadcast(ctx context.Context, req BroadcastRequest) (*BroadcastResult, error)

	// GetCampaignLogs returns the newest campaign log entries
	GetCampaignLogs(ctx context.Context, programID *int64, limit int) ([]*models.CampaignLog, error)
}

// BirthdayService runs the annual birthday reward job
type BirthdayService interface {
	RunBirthdayJob(ctx context.Context, opts BirthdayRunOptions) (*BirthdayRunResult, error)
}
