package models

import (
	"strings"
	"time"
)

// MemberStatus is the wallet pass installation state
type MemberStatus string

const (
	MemberStatusInstalled   MemberStatus = "INSTALLED"
	MemberStatusUninstalled MemberStatus = "UNINSTALLED"
)

// ProtocolRecord is the protocol-specific part of a member record.
// The set of implementations is closed: MembershipRecord, CouponRecord and EventTicketRecord.
type ProtocolRecord interface {
	Protocol() Protocol
	isProtocolRecord()
}

// MembershipRecord carries points and activity for membership programs
type MembershipRecord struct {
	PointsBalance int64      `db:"points_balance" json:"pointsBalance"`
	TierPoints    int64      `db:"tier_points" json:"tierPoints"`
	LastActivity  *time.Time `db:"last_activity" json:"lastActivity,omitempty"`
	PostalCode    *string    `db:"postal_code" json:"postalCode,omitempty"`
}

func (MembershipRecord) Protocol() Protocol { return ProtocolMembership }
func (MembershipRecord) isProtocolRecord()  {}

// CouponRecord tracks redemption of a single-use offer
type CouponRecord struct {
	RedeemedAt *time.Time `db:"redeemed_at" json:"redeemedAt,omitempty"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
}

func (CouponRecord) Protocol() Protocol { return ProtocolCoupon }
func (CouponRecord) isProtocolRecord()  {}

// EventTicketRecord tracks admission for an event pass
type EventTicketRecord struct {
	CheckedInAt *time.Time `db:"checked_in_at" json:"checkedInAt,omitempty"`
}

func (EventTicketRecord) Protocol() Protocol { return ProtocolEventTicket }
func (EventTicketRecord) isProtocolRecord()  {}

// MemberProfile is the optional person record linked to a pass
type MemberProfile struct {
	FirstName  string     `db:"first_name" json:"firstName"`
	BirthDate  *time.Time `db:"birth_date" json:"birthDate,omitempty"`
	PostalCode *string    `db:"postal_code" json:"postalCode,omitempty"`
}

// Member is one wallet pass holder of a program
type Member struct {
	ID               int64          `db:"id" json:"id"`
	ProgramID        int64          `db:"program_id" json:"programId"`
	WalletInternalID string         `db:"wallet_internal_id" json:"walletInternalId"`
	ExternalID       string         `db:"external_id" json:"externalId"`
	Status           MemberStatus   `db:"status" json:"status"`
	Active           bool           `db:"active" json:"active"`
	Record           ProtocolRecord `json:"record"`
	Profile          *MemberProfile `json:"profile,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
}

// Eligible reports whether the member can receive dispatches
func (m *Member) Eligible() bool {
	return m.Status == MemberStatusInstalled && m.Active
}

// PostalCode resolves the member's postal code. Membership records carry their own,
// other protocols fall back to the linked profile.
func (m *Member) PostalCode() string {
	if rec, ok := m.Record.(MembershipRecord); ok && rec.PostalCode != nil {
		return strings.TrimSpace(*rec.PostalCode)
	}
	if m.Profile != nil && m.Profile.PostalCode != nil {
		return strings.TrimSpace(*m.Profile.PostalCode)
	}
	return ""
}

// BirthDate returns the linked profile's birth date, if any
func (m *Member) BirthDate() *time.Time {
	if m.Profile == nil {
		return nil
	}
	return m.Profile.BirthDate
}
