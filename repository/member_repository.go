package repository

import (
	"context"
	"fmt"
	"time"

	"loyaltycast/database"
	"loyaltycast/models"

	"github.com/jackc/pgx/v5"
)

const memberSelect = `
	SELECT
		m.id, m.program_id, m.protocol, m.wallet_internal_id, m.external_id,
		m.status, m.active, m.created_at,
		mr.member_id IS NOT NULL, COALESCE(mr.points_balance, 0), COALESCE(mr.tier_points, 0),
		mr.last_activity, mr.postal_code,
		cr.member_id IS NOT NULL, cr.redeemed_at, cr.expires_at,
		er.member_id IS NOT NULL, er.checked_in_at,
		p.member_id IS NOT NULL, COALESCE(p.first_name, ''), p.birth_date, p.postal_code
	FROM members m
	LEFT JOIN membership_records mr ON mr.member_id = m.id
	LEFT JOIN coupon_records cr ON cr.member_id = m.id
	LEFT JOIN event_ticket_records er ON er.member_id = m.id
	LEFT JOIN member_profiles p ON p.member_id = m.id`

// MemberRepository implements the member directory over PostgreSQL
type MemberRepository struct {
	db *database.DB
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *database.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// ListEligible returns installed, active members of the program with the given protocol
func (r *MemberRepository) ListEligible(ctx context.Context, programID int64, protocol models.Protocol) ([]*models.Member, error) {
	query := memberSelect + `
		WHERE m.program_id = $1
		  AND m.protocol = $2
		  AND m.status = 'INSTALLED'
		  AND m.active
		ORDER BY m.id`

	members, err := r.query(ctx, query, programID, protocol)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible members for program %d: %w", programID, err)
	}
	return members, nil
}

// ListWithBirthDates returns installed, active membership members whose profile has a birth date
func (r *MemberRepository) ListWithBirthDates(ctx context.Context, programID int64) ([]*models.Member, error) {
	query := memberSelect + `
		WHERE m.program_id = $1
		  AND m.protocol = 'MEMBERSHIP'
		  AND m.status = 'INSTALLED'
		  AND m.active
		  AND p.birth_date IS NOT NULL
		ORDER BY m.id`

	members, err := r.query(ctx, query, programID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members with birth dates for program %d: %w", programID, err)
	}
	return members, nil
}

// GetByID retrieves a member with its record and profile
func (r *MemberRepository) GetByID(ctx context.Context, id int64) (*models.Member, error) {
	members, err := r.query(ctx, memberSelect+` WHERE m.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get member %d: %w", id, err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	return members[0], nil
}

// Create inserts a member together with its protocol record and optional profile
func (r *MemberRepository) Create(ctx context.Context, member *models.Member, protocol models.Protocol) error {
	if member.Record != nil && member.Record.Protocol() != protocol {
		return fmt.Errorf("record protocol %s does not match member protocol %s", member.Record.Protocol(), protocol)
	}
	if member.Status == "" {
		member.Status = models.MemberStatusInstalled
	}

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO members (program_id, protocol, wallet_internal_id, external_id, status, active)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at`,
			member.ProgramID, protocol, member.WalletInternalID, member.ExternalID, member.Status, member.Active,
		).Scan(&member.ID, &member.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert member %s: %w", member.WalletInternalID, err)
		}

		if err := insertRecord(ctx, tx, member.ID, member.Record); err != nil {
			return err
		}

		if p := member.Profile; p != nil {
			_, err := tx.Exec(ctx, `
				INSERT INTO member_profiles (member_id, first_name, birth_date, postal_code)
				VALUES ($1, $2, $3, $4)`,
				member.ID, p.FirstName, p.BirthDate, p.PostalCode,
			)
			if err != nil {
				return fmt.Errorf("failed to insert profile for member %d: %w", member.ID, err)
			}
		}
		return nil
	})
}

func insertRecord(ctx context.Context, tx pgx.Tx, memberID int64, record models.ProtocolRecord) error {
	var err error
	switch rec := record.(type) {
	case nil:
		return nil
	case models.MembershipRecord:
		_, err = tx.Exec(ctx, `
			INSERT INTO membership_records (member_id, points_balance, tier_points, last_activity, postal_code)
			VALUES ($1, $2, $3, $4, $5)`,
			memberID, rec.PointsBalance, rec.TierPoints, rec.LastActivity, rec.PostalCode,
		)
	case models.CouponRecord:
		_, err = tx.Exec(ctx, `
			INSERT INTO coupon_records (member_id, redeemed_at, expires_at)
			VALUES ($1, $2, $3)`,
			memberID, rec.RedeemedAt, rec.ExpiresAt,
		)
	case models.EventTicketRecord:
		_, err = tx.Exec(ctx, `
			INSERT INTO event_ticket_records (member_id, checked_in_at)
			VALUES ($1, $2)`,
			memberID, rec.CheckedInAt,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to insert %s record for member %d: %w", record.Protocol(), memberID, err)
	}
	return nil
}

func (r *MemberRepository) query(ctx context.Context, query string, args ...any) ([]*models.Member, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}

func scanMember(row pgx.Row) (*models.Member, error) {
	var (
		m        models.Member
		protocol models.Protocol

		hasMembership bool
		membership    models.MembershipRecord

		hasCoupon bool
		coupon    models.CouponRecord

		hasTicket bool
		ticket    models.EventTicketRecord

		hasProfile bool
		profile    models.MemberProfile
		birthDate  *time.Time
	)

	err := row.Scan(
		&m.ID, &m.ProgramID, &protocol, &m.WalletInternalID, &m.ExternalID,
		&m.Status, &m.Active, &m.CreatedAt,
		&hasMembership, &membership.PointsBalance, &membership.TierPoints,
		&membership.LastActivity, &membership.PostalCode,
		&hasCoupon, &coupon.RedeemedAt, &coupon.ExpiresAt,
		&hasTicket, &ticket.CheckedInAt,
		&hasProfile, &profile.FirstName, &birthDate, &profile.PostalCode,
	)
	if err != nil {
		return nil, err
	}

	// The record matching the member's protocol wins; a missing one leaves Record nil
	switch {
	case protocol == models.ProtocolMembership && hasMembership:
		m.Record = membership
	case protocol == models.ProtocolCoupon && hasCoupon:
		m.Record = coupon
	case protocol == models.ProtocolEventTicket && hasTicket:
		m.Record = ticket
	}

	if hasProfile {
		profile.BirthDate = birthDate
		m.Profile = &profile
	}

	return &m, nil
}
