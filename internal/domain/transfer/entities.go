package transfer

import (
	"errors"
	"fmt"
	"time"
)

type Direction string

const (
	DirectionDisbursement Direction = "disbursement"
	DirectionRepayment    Direction = "repayment"
	DirectionTestFunding  Direction = "test_funding"
)

type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeFailed    Outcome = "failed"
	OutcomeSimulated Outcome = "simulated"
)

// Settled reports whether value actually moved (or is treated as moved).
func (o Outcome) Settled() bool { return o == OutcomeConfirmed || o == OutcomeSimulated }

var ErrNotFound = errors.New("transfer record not found")

// Record is the local, append-only settlement ledger entry for one transfer
// attempt. The idempotency key admits at most one confirmed record; a retry
// under the same key returns the prior record instead of resubmitting.
type Record struct {
	ID                  uint64     `gorm:"primaryKey;column:id" json:"-"`
	IdempotencyKey      string     `gorm:"size:80;uniqueIndex:ux_transfers_idem_key" json:"idempotency_key"`
	Direction           Direction  `gorm:"type:enum('disbursement','repayment','test_funding')" json:"direction"`
	LoanID              uint64     `gorm:"column:loan_id;index:idx_transfers_loan" json:"-"`
	InstallmentSequence int        `gorm:"column:installment_sequence" json:"installment_sequence,omitempty"`
	CounterpartyAddress string     `gorm:"size:64;index:idx_transfers_counterparty" json:"counterparty_address"`
	Amount              float64    `gorm:"type:decimal(18,4)" json:"amount"`
	LedgerReference     string     `gorm:"size:128;index:idx_transfers_ref" json:"ledger_reference,omitempty"`
	Outcome             Outcome    `gorm:"type:enum('pending','confirmed','failed','simulated');default:'pending'" json:"outcome"`
	Attempts            int        `gorm:"default:0" json:"-"`
	FailureReason       string     `gorm:"type:text" json:"failure_reason,omitempty"`
	AttemptedAt         time.Time  `gorm:"column:attempted_at" json:"attempted_at"`
	AppliedAt           *time.Time `gorm:"column:applied_at" json:"-"`
	ResolvedAt          *time.Time `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	CreatedAt           time.Time  `gorm:"autoCreateTime" json:"-"`
	UpdatedAt           time.Time  `gorm:"autoUpdateTime" json:"-"`
}

func (Record) TableName() string { return "transfer_records" }

// DisburseKey and RepayKey derive the idempotency keys the loan state
// machine uses, so a crashed and retried caller lands on the same record.
func DisburseKey(loanID string) string { return "disburse:" + loanID }

func RepayKey(loanID string, seq int) string { return fmt.Sprintf("repay:%s:%d", loanID, seq) }

func TestFundingKey(address string, at time.Time) string {
	return fmt.Sprintf("faucet:%s:%d", address, at.UnixMilli())
}
