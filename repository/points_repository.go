package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"loyaltycast/database"
	"loyaltycast/models"

	"github.com/jackc/pgx/v5"
)

// PointsRepository mutates membership balances and records each change in the points ledger
type PointsRepository struct {
	db *database.DB
}

// NewPointsRepository creates a new points repository
func NewPointsRepository(db *database.DB) *PointsRepository {
	return &PointsRepository{db: db}
}

// GrantPoints credits amount to the member's balance and writes a ledger row in one transaction
func (r *PointsRepository) GrantPoints(ctx context.Context, memberID int64, amount int64, description string, metadata map[string]any) error {
	if amount <= 0 {
		return fmt.Errorf("grant amount must be positive, got %d", amount)
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger metadata: %w", err)
	}
	if metadata == nil {
		metadataJSON = []byte("{}")
	}

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var before int64
		err := tx.QueryRow(ctx, `
			SELECT points_balance
			FROM membership_records
			WHERE member_id = $1
			FOR UPDATE`,
			memberID,
		).Scan(&before)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("member %d has no membership record", memberID)
		}
		if err != nil {
			return fmt.Errorf("failed to lock balance for member %d: %w", memberID, err)
		}

		after := before + amount
		if _, err := tx.Exec(ctx, `
			UPDATE membership_records
			SET points_balance = $1
			WHERE member_id = $2`,
			after, memberID,
		); err != nil {
			return fmt.Errorf("failed to update balance for member %d: %w", memberID, err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO points_ledger (member_id, balance_before, balance_after, change_amount, description, metadata)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			memberID, before, after, amount, description, metadataJSON,
		); err != nil {
			return fmt.Errorf("failed to record ledger entry for member %d: %w", memberID, err)
		}

		return nil
	})
}

// GetLedger returns the member's newest ledger entries first
func (r *PointsRepository) GetLedger(ctx context.Context, memberID int64, limit int) ([]*models.PointsLedgerEntry, error) {
	query := `
		SELECT id, member_id, balance_before, balance_after, change_amount,
		       description, metadata, created_at
		FROM points_ledger
		WHERE member_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger for member %d: %w", memberID, err)
	}
	defer rows.Close()

	var entries []*models.PointsLedgerEntry
	for rows.Next() {
		var e models.PointsLedgerEntry
		var metadataJSON []byte
		err := rows.Scan(
			&e.ID,
			&e.MemberID,
			&e.BalanceBefore,
			&e.BalanceAfter,
			&e.ChangeAmount,
			&e.Description,
			&metadataJSON,
			&e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal ledger metadata: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}
