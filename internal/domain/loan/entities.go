package loan

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Status string

const (
	StatusRequested       Status = "requested"
	StatusPartiallyFunded Status = "partially_funded"
	StatusFullyFunded     Status = "fully_funded"
	StatusDisbursing      Status = "disbursing"
	StatusActive          Status = "active"
	StatusCompleted       Status = "completed"
	StatusDefaulted       Status = "defaulted"
)

// Fundable reports whether the loan can still accept contributions.
func (s Status) Fundable() bool {
	return s == StatusRequested || s == StatusPartiallyFunded
}

// Terminal states admit no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusDefaulted
}

var (
	ErrNotFound          = errors.New("loan not found")
	ErrInvalidTransition = errors.New("invalid loan state transition")
	ErrTerminalState     = errors.New("loan is in a terminal state")
	ErrNotActive         = errors.New("loan is not active")
)

type Loan struct {
	ID              uint64         `gorm:"primaryKey;column:id" json:"-"`
	LoanID          string         `gorm:"size:32;uniqueIndex:ux_loans_loan_id_active" json:"loan_id"`
	BorrowerAddress string         `gorm:"size:64;index:idx_loans_borrower" json:"borrower_address"`
	Principal       float64        `gorm:"type:decimal(18,4)" json:"principal"`
	RatePct         float64        `gorm:"type:decimal(6,3)" json:"rate_pct"`
	DurationMonths  int            `gorm:"column:duration_months" json:"duration_months"`
	Purpose         string         `gorm:"size:64" json:"purpose"`
	Description     string         `gorm:"type:text" json:"description"`
	RiskScore       string         `gorm:"size:8" json:"risk_score"`
	Status          Status         `gorm:"type:enum('requested','partially_funded','fully_funded','disbursing','active','completed','defaulted');default:'requested'" json:"status"`
	FundedAmount    float64        `gorm:"type:decimal(18,4);default:0" json:"funded_amount"`
	StatusUpdatedAt time.Time      `gorm:"autoCreateTime" json:"status_updated_at"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Loan) TableName() string { return "loans" }

// Remaining is the capacity still open to contributions.
func (l *Loan) Remaining() float64 { return l.Principal - l.FundedAmount }
