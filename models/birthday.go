package models

import (
	"time"
)

// BirthdayClaim marks a member as gifted for a calendar year.
// Its existence is the idempotency lock; rows are inserted or deleted, never updated.
type BirthdayClaim struct {
	ID        int64     `db:"id"`
	MemberID  int64     `db:"member_id"`
	Year      int       `db:"claim_year"`
	CreatedAt time.Time `db:"created_at"`
}

// BirthdayOutcomeStatus is the terminal state of one member in a birthday run
type BirthdayOutcomeStatus string

const (
	BirthdayOutcomeSuccess BirthdayOutcomeStatus = "SUCCESS"
	BirthdayOutcomeSkipped BirthdayOutcomeStatus = "SKIPPED"
	BirthdayOutcomeFailed  BirthdayOutcomeStatus = "FAILED"
)

// BirthdayOutcome is a per-member detail entry of a birthday run
type BirthdayOutcome struct {
	ProgramID        int64                 `json:"programId"`
	MemberID         int64                 `json:"memberId"`
	WalletInternalID string                `json:"walletInternalId"`
	Status           BirthdayOutcomeStatus `json:"status"`
	Reason           string                `json:"reason,omitempty"`
	Notified         bool                  `json:"notified"`
}
