package funding

import (
	"errors"
	"time"
)

var (
	// ErrOverfund: the contribution would push fundedAmount past principal.
	// Rejected in full; no partial fill.
	ErrOverfund = errors.New("contribution exceeds remaining loan capacity")
	// ErrInvalidAmount: contributions must be strictly positive.
	ErrInvalidAmount = errors.New("contribution amount must be positive")
	// ErrNotFundable: loan has left the fundable states.
	ErrNotFundable = errors.New("loan no longer accepts contributions")
)

// Contribution is immutable once accepted.
type Contribution struct {
	ID             uint64    `gorm:"primaryKey;column:id" json:"-"`
	ContributionID string    `gorm:"size:32;uniqueIndex:ux_contributions_public_id" json:"contribution_id"`
	LoanID         uint64    `gorm:"column:loan_id;not null;index:idx_contributions_loan" json:"-"`
	LenderAddress  string    `gorm:"size:64;index:idx_contributions_lender" json:"lender_address"`
	Amount         float64   `gorm:"type:decimal(18,4)" json:"amount"`
	AcceptedAt     time.Time `gorm:"column:accepted_at" json:"accepted_at"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"-"`
}

func (Contribution) TableName() string { return "funding_contributions" }
