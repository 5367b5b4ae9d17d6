package service

import (
	"context"
	"strings"

	"loyaltycast/models"

	log "github.com/sirupsen/logrus"
)

// Validator resolves a (tenant, program, protocol) triple to a program record
type Validator struct {
	programs ProgramRepository
}

// NewValidator creates a new program validator
func NewValidator(programs ProgramRepository) *Validator {
	return &Validator{programs: programs}
}

// Validate looks a program up by tenant id and wallet program id together, so a wallet
// program id alone never reaches another tenant's program, then checks the declared protocol.
func (v *Validator) Validate(ctx context.Context, tenantID, walletProgramID string, protocol models.Protocol) (*models.Program, error) {
	tenantID = strings.TrimSpace(tenantID)
	walletProgramID = strings.TrimSpace(walletProgramID)

	if tenantID == "" {
		return nil, validationError("tenant id is required")
	}
	if walletProgramID == "" {
		return nil, validationError("program id is required")
	}
	if !protocol.Valid() {
		return nil, validationError("unknown protocol %q", protocol)
	}

	program, err := v.programs.GetByTenantAndWalletID(ctx, tenantID, walletProgramID)
	if err != nil {
		return nil, systemFailure(err, "failed to look up program")
	}
	if program == nil {
		return nil, &Error{Code: CodeNotFound, Message: "program not found for tenant"}
	}

	if program.Protocol != protocol {
		log.WithFields(log.Fields{
			"tenantId":  tenantID,
			"programId": program.ID,
			"declared":  protocol,
			"stored":    program.Protocol,
		}).Warn("Program protocol mismatch")
		return nil, &Error{
			Code:    CodeProtocolMismatch,
			Message: "program uses protocol " + string(program.Protocol) + ", not " + string(protocol),
		}
	}

	return program, nil
}
