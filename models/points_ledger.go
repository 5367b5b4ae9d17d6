package models

import (
	"time"
)

// PointsLedgerEntry records a points balance change made by this service
type PointsLedgerEntry struct {
	ID            int64          `db:"id"`
	MemberID      int64          `db:"member_id"`
	BalanceBefore int64          `db:"balance_before"`
	BalanceAfter  int64          `db:"balance_after"`
	ChangeAmount  int64          `db:"change_amount"`
	Description   string         `db:"description"`
	Metadata      map[string]any `db:"metadata"`
	CreatedAt     time.Time      `db:"created_at"`
}
