package installment

import (
	"errors"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusLate    Status = "late"
	StatusMissed  Status = "missed"
)

// Payable reports whether a repayment can still be applied to this entry.
func (s Status) Payable() bool { return s == StatusPending || s == StatusLate }

var ErrNoneOutstanding = errors.New("no outstanding installment")

// Installment is one line of the repayment schedule, materialized in full at
// disbursement time and mutated only by the settlement layer on confirmed
// repayments.
type Installment struct {
	ID             uint64     `gorm:"primaryKey;column:id" json:"-"`
	LoanID         uint64     `gorm:"column:loan_id;not null;uniqueIndex:ux_installments_loan_seq" json:"-"`
	SequenceNumber int        `gorm:"column:sequence_number;uniqueIndex:ux_installments_loan_seq" json:"sequence_number"`
	DueAmount      float64    `gorm:"type:decimal(18,4)" json:"due_amount"`
	PaidAmount     float64    `gorm:"type:decimal(18,4);default:0" json:"paid_amount"`
	DueAt          time.Time  `gorm:"column:due_at" json:"due_at"`
	PaidAt         *time.Time `gorm:"column:paid_at" json:"paid_at,omitempty"`
	Status         Status     `gorm:"type:enum('pending','paid','late','missed');default:'pending'" json:"status"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"-"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"-"`
}

func (Installment) TableName() string { return "repayment_installments" }
