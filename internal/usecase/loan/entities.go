package loan

import (
	"time"

	domainFunding "microfi-backend/internal/domain/funding"
)

type CreateLoanInput struct {
	BorrowerAddress string  `json:"borrower_address"`
	Principal       float64 `json:"principal"`
	RatePct         float64 `json:"rate_pct"`
	DurationMonths  int     `json:"duration_months"`
	Purpose         string  `json:"purpose"`
	Description     string  `json:"description"`
}

type LoanDTO struct {
	LoanID          string    `json:"loan_id"`
	BorrowerAddress string    `json:"borrower_address"`
	Principal       float64   `json:"principal"`
	RatePct         float64   `json:"rate_pct"`
	DurationMonths  int       `json:"duration_months"`
	Purpose         string    `json:"purpose"`
	Description     string    `json:"description,omitempty"`
	RiskScore       string    `json:"risk_score"`
	Status          string    `json:"status"`
	FundedAmount    float64   `json:"funded_amount"`
	MonthlyPayment  float64   `json:"monthly_payment"`
	CreatedAt       time.Time `json:"created_at"`
}

type InstallmentDTO struct {
	SequenceNumber int        `json:"sequence_number"`
	DueAmount      float64    `json:"due_amount"`
	PaidAmount     float64    `json:"paid_amount"`
	DueAt          time.Time  `json:"due_at"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	Status         string     `json:"status"`
}

type TransferDTO struct {
	IdempotencyKey      string     `json:"idempotency_key"`
	Direction           string     `json:"direction"`
	CounterpartyAddress string     `json:"counterparty_address"`
	Amount              float64    `json:"amount"`
	LedgerReference     string     `json:"ledger_reference,omitempty"`
	Outcome             string     `json:"outcome"`
	ExplorerURL         string     `json:"explorer_url,omitempty"`
	AttemptedAt         time.Time  `json:"attempted_at"`
	ResolvedAt          *time.Time `json:"resolved_at,omitempty"`
}

type LoanDetailDTO struct {
	LoanDTO
	Installments  []InstallmentDTO              `json:"installments"`
	Contributions []domainFunding.Contribution  `json:"contributions"`
	Transfers     []TransferDTO                 `json:"transfers"`
}
