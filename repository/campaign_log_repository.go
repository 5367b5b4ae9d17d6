package repository

import (
	"context"
	"fmt"

	"loyaltycast/database"
	"loyaltycast/models"
)

// CampaignLogRepository implements the append-only campaign log store
type CampaignLogRepository struct {
	q queryable
}

// NewCampaignLogRepository creates a new campaign log repository
func NewCampaignLogRepository(db *database.DB) *CampaignLogRepository {
	return &CampaignLogRepository{q: db.Pool}
}

// Append writes a campaign log entry and returns its id
func (r *CampaignLogRepository) Append(ctx context.Context, entry *models.CampaignLog) (int64, error) {
	query := `
		INSERT INTO campaign_logs (
			program_id, campaign_name, recipient_count, success_count,
			failure_count, message_body, target_segment
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		entry.ProgramID,
		entry.CampaignName,
		entry.RecipientCount,
		entry.SuccessCount,
		entry.FailureCount,
		entry.MessageBody,
		entry.TargetSegment,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to append campaign log %q: %w", entry.CampaignName, err)
	}

	return entry.ID, nil
}

// Query returns the newest entries first. A nil programID matches every program,
// including cross-program entries.
func (r *CampaignLogRepository) Query(ctx context.Context, programID *int64, limit int) ([]*models.CampaignLog, error) {
	query := `
		SELECT id, program_id, campaign_name, recipient_count, success_count,
		       failure_count, message_body, target_segment, created_at
		FROM campaign_logs
		WHERE $1::bigint IS NULL OR program_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, programID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaign logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.CampaignLog
	for rows.Next() {
		var e models.CampaignLog
		err := rows.Scan(
			&e.ID,
			&e.ProgramID,
			&e.CampaignName,
			&e.RecipientCount,
			&e.SuccessCount,
			&e.FailureCount,
			&e.MessageBody,
			&e.TargetSegment,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign log: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating campaign logs: %w", err)
	}

	return entries, nil
}
