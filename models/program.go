package models

import (
	"time"
)

// Protocol is the loyalty program type. It never changes after a program is created.
type Protocol string

const (
	ProtocolMembership  Protocol = "MEMBERSHIP"
	ProtocolCoupon      Protocol = "COUPON"
	ProtocolEventTicket Protocol = "EVENT_TICKET"
)

// Valid reports whether p is one of the known protocols
func (p Protocol) Valid() bool {
	switch p {
	case ProtocolMembership, ProtocolCoupon, ProtocolEventTicket:
		return true
	}
	return false
}

// TierThresholds holds the upper point bound of the three lower tiers, ascending.
// Points above GoldMax fall into the open-ended platinum tier.
type TierThresholds struct {
	BronzeMax int64 `db:"tier_bronze_max" json:"bronzeMax"`
	SilverMax int64 `db:"tier_silver_max" json:"silverMax"`
	GoldMax   int64 `db:"tier_gold_max" json:"goldMax"`
}

// BirthdayConfig controls the annual birthday reward for a membership program
type BirthdayConfig struct {
	Enabled      bool   `db:"birthday_enabled" json:"enabled"`
	RewardPoints int64  `db:"birthday_reward_points" json:"rewardPoints"`
	Message      string `db:"birthday_message" json:"message"`
}

// Program is a tenant's loyalty program as registered with the wallet provider
type Program struct {
	ID              int64          `db:"id" json:"id"`
	TenantID        string         `db:"tenant_id" json:"tenantId"`
	WalletProgramID string         `db:"wallet_program_id" json:"walletProgramId"`
	Name            string         `db:"name" json:"name"`
	Protocol        Protocol       `db:"protocol" json:"protocol"`
	Tiers           TierThresholds `json:"tiers"`
	Birthday        BirthdayConfig `json:"birthday"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
}
