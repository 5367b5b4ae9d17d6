package repository

import (
	"context"
	"errors"
	"fmt"

	"loyaltycast/database"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation               = "23505"
	birthdayClaimUniqueConstraint = "birthday_claims_member_year_unique"
)

// BirthdayClaimRepository stores (member, year) claims. The table's unique
// constraint is the only guard against double issuance.
type BirthdayClaimRepository struct {
	q queryable
}

// NewBirthdayClaimRepository creates a new birthday claim repository
func NewBirthdayClaimRepository(db *database.DB) *BirthdayClaimRepository {
	return &BirthdayClaimRepository{q: db.Pool}
}

// Claim inserts the claim row. It returns false, nil when the member was already claimed for year.
func (r *BirthdayClaimRepository) Claim(ctx context.Context, memberID int64, year int) (bool, error) {
	query := `
		INSERT INTO birthday_claims (member_id, claim_year)
		VALUES ($1, $2)
	`

	_, err := r.q.Exec(ctx, query, memberID, year)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == birthdayClaimUniqueConstraint {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim birthday for member %d in %d: %w", memberID, year, err)
	}

	return true, nil
}

// Release deletes the claim row so a later run may retry the member
func (r *BirthdayClaimRepository) Release(ctx context.Context, memberID int64, year int) error {
	query := `
		DELETE FROM birthday_claims
		WHERE member_id = $1 AND claim_year = $2
	`

	if _, err := r.q.Exec(ctx, query, memberID, year); err != nil {
		return fmt.Errorf("failed to release birthday claim for member %d in %d: %w", memberID, year, err)
	}
	return nil
}

// Exists reports whether the member has been claimed for year
func (r *BirthdayClaimRepository) Exists(ctx context.Context, memberID int64, year int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM birthday_claims WHERE member_id = $1 AND claim_year = $2
		)
	`

	var exists bool
	if err := r.q.QueryRow(ctx, query, memberID, year).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check birthday claim for member %d in %d: %w", memberID, year, err)
	}
	return exists, nil
}
