package repository

import (
	"context"
	"errors"
	"fmt"

	"loyaltycast/database"
	"loyaltycast/models"

	"github.com/jackc/pgx/v5"
)

const programColumns = `
	id, tenant_id, wallet_program_id, name, protocol,
	tier_bronze_max, tier_silver_max, tier_gold_max,
	birthday_enabled, birthday_reward_points, birthday_message,
	created_at`

// ProgramRepository implements the ProgramRepository interface
type ProgramRepository struct {
	q queryable
}

// NewProgramRepository creates a new program repository
func NewProgramRepository(db *database.DB) *ProgramRepository {
	return &ProgramRepository{q: db.Pool}
}

// GetByTenantAndWalletID retrieves a program by the tenant and wallet program id pair
func (r *ProgramRepository) GetByTenantAndWalletID(ctx context.Context, tenantID, walletProgramID string) (*models.Program, error) {
	query := `SELECT ` + programColumns + `
		FROM programs
		WHERE tenant_id = $1 AND wallet_program_id = $2`

	program, err := scanProgram(r.q.QueryRow(ctx, query, tenantID, walletProgramID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get program %s for tenant %s: %w", walletProgramID, tenantID, err)
	}
	return program, nil
}

// ListBirthdayEnabled returns membership programs with the birthday reward switched on
func (r *ProgramRepository) ListBirthdayEnabled(ctx context.Context) ([]*models.Program, error) {
	query := `SELECT ` + programColumns + `
		FROM programs
		WHERE birthday_enabled AND protocol = 'MEMBERSHIP'
		ORDER BY id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list birthday programs: %w", err)
	}
	defer rows.Close()

	var programs []*models.Program
	for rows.Next() {
		program, err := scanProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan program: %w", err)
		}
		programs = append(programs, program)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating programs: %w", err)
	}

	return programs, nil
}

// Create inserts a program and fills in its id and creation time
func (r *ProgramRepository) Create(ctx context.Context, program *models.Program) error {
	query := `
		INSERT INTO programs (
			tenant_id, wallet_program_id, name, protocol,
			tier_bronze_max, tier_silver_max, tier_gold_max,
			birthday_enabled, birthday_reward_points, birthday_message
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		program.TenantID,
		program.WalletProgramID,
		program.Name,
		program.Protocol,
		program.Tiers.BronzeMax,
		program.Tiers.SilverMax,
		program.Tiers.GoldMax,
		program.Birthday.Enabled,
		program.Birthday.RewardPoints,
		program.Birthday.Message,
	).Scan(&program.ID, &program.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create program %s: %w", program.WalletProgramID, err)
	}

	return nil
}

func scanProgram(row pgx.Row) (*models.Program, error) {
	var p models.Program
	err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.WalletProgramID,
		&p.Name,
		&p.Protocol,
		&p.Tiers.BronzeMax,
		&p.Tiers.SilverMax,
		&p.Tiers.GoldMax,
		&p.Birthday.Enabled,
		&p.Birthday.RewardPoints,
		&p.Birthday.Message,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
