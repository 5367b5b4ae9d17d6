package testutil

import (
	"fmt"
	"time"

	"loyaltycast/models"
)

// CreateTestProgram creates a membership program with default tiers and birthday rewards on
func CreateTestProgram(tenantID, walletProgramID string) *models.Program {
	return &models.Program{
		TenantID:        tenantID,
		WalletProgramID: walletProgramID,
		Name:            "Test Program " + walletProgramID,
		Protocol:        models.ProtocolMembership,
		Tiers: models.TierThresholds{
			BronzeMax: 999,
			SilverMax: 4999,
			GoldMax:   14999,
		},
		Birthday: models.BirthdayConfig{
			Enabled:      true,
			RewardPoints: 100,
			Message:      "Happy birthday {name}!",
		},
	}
}

// CreateTestProgramWithProtocol creates a program of the given protocol without birthday rewards
func CreateTestProgramWithProtocol(tenantID, walletProgramID string, protocol models.Protocol) *models.Program {
	program := CreateTestProgram(tenantID, walletProgramID)
	program.Protocol = protocol
	program.Birthday = models.BirthdayConfig{}
	return program
}

// CreateTestMember creates an installed, active member carrying record
func CreateTestMember(programID int64, n int, record models.ProtocolRecord) *models.Member {
	return &models.Member{
		ProgramID:        programID,
		WalletInternalID: fmt.Sprintf("pass-%d-%d", programID, n),
		ExternalID:       fmt.Sprintf("EXT-%d", n),
		Status:           models.MemberStatusInstalled,
		Active:           true,
		Record:           record,
	}
}

// CreateTestMembershipMember creates a membership member with the given balances
func CreateTestMembershipMember(programID int64, n int, balance, tierPoints int64) *models.Member {
	return CreateTestMember(programID, n, models.MembershipRecord{
		PointsBalance: balance,
		TierPoints:    tierPoints,
	})
}

// WithProfile attaches a profile with a birth date to member
func WithProfile(member *models.Member, firstName string, birthDate time.Time) *models.Member {
	member.Profile = &models.MemberProfile{
		FirstName: firstName,
		BirthDate: &birthDate,
	}
	return member
}

// CreateTestCampaignLog creates a campaign log entry for programID
func CreateTestCampaignLog(programID *int64, name string) *models.CampaignLog {
	return &models.CampaignLog{
		ProgramID:      programID,
		CampaignName:   name,
		RecipientCount: 10,
		SuccessCount:   9,
		FailureCount:   1,
		MessageBody:    "Test message body",
		TargetSegment:  models.SegmentAllActive,
	}
}
