package funding

import (
	"context"
	"time"

	"go.uber.org/zap"

	domainFunding "microfi-backend/internal/domain/funding"
	domainLoan "microfi-backend/internal/domain/loan"
	"microfi-backend/internal/domain/uow"
	"microfi-backend/pkg/id"
)

// amountEps absorbs float noise when comparing funded amounts to capacity.
const amountEps = 1e-9

type Usecase struct {
	uow   uow.UnitOfWork
	locks *loanLocks
	log   *zap.Logger

	// onFullyFunded fires after the accepting tx commits, exactly once per
	// loan (the commit that closes the last gap is unique under the lock).
	onFullyFunded func(loanID string)
}

func NewUsecase(tx uow.UnitOfWork, log *zap.Logger) *Usecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{uow: tx, locks: newLoanLocks(), log: log}
}

// SetFullyFundedHook registers the loan state machine's disbursement trigger.
func (u *Usecase) SetFullyFundedHook(fn func(loanID string)) { u.onFullyFunded = fn }

type ContributeInput struct {
	LoanID        string  `json:"loan_id"`
	LenderAddress string  `json:"lender_address"`
	Amount        float64 `json:"amount"`
}

type ContributionDTO struct {
	ContributionID string    `json:"contribution_id"`
	LoanID         string    `json:"loan_id"`
	LenderAddress  string    `json:"lender_address"`
	Amount         float64   `json:"amount"`
	FundedAmount   float64   `json:"funded_amount"`
	LoanStatus     string    `json:"loan_status"`
	AcceptedAt     time.Time `json:"accepted_at"`
}

// Contribute accepts a contribution against the loan's remaining capacity.
// The accept decision and the fundedAmount mutation are one critical section
// per loan: an in-process lock serializes local callers and the row lock
// inside WithinLoanTx serializes across processes. A contribution that does
// not fit the remaining capacity is rejected in full; the caller retries
// with a smaller amount.
func (u *Usecase) Contribute(ctx context.Context, in ContributeInput) (*ContributionDTO, error) {
	if in.Amount <= 0 {
		return nil, domainFunding.ErrInvalidAmount
	}
	if in.LoanID == "" || in.LenderAddress == "" {
		return nil, domainFunding.ErrInvalidAmount
	}

	unlock := u.locks.lock(in.LoanID)
	defer unlock()

	var (
		dto         *ContributionDTO
		fullyFunded bool
	)
	err := u.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, l *domainLoan.Loan) error {
		if !l.Status.Fundable() {
			return domainFunding.ErrNotFundable
		}

		// The contribution rows are the authoritative ledger; the loan's
		// fundedAmount is a running total that must agree with them. On
		// drift, the accept decision follows the rows.
		sum, err := r.Contributions.SumByLoanID(ctx, l.ID)
		if err != nil {
			return err
		}
		if diff := sum - l.FundedAmount; diff > amountEps || diff < -amountEps {
			u.log.Warn("funded amount drifted from contribution ledger",
				zap.String("loan_id", l.LoanID),
				zap.Float64("funded_amount", l.FundedAmount),
				zap.Float64("contribution_sum", sum),
				zap.String("operator_alert", "funding_drift"))
			l.FundedAmount = sum
		}

		if in.Amount > l.Remaining()+amountEps {
			return domainFunding.ErrOverfund
		}

		c := &domainFunding.Contribution{
			ContributionID: id.NewID32(),
			LoanID:         l.ID,
			LenderAddress:  in.LenderAddress,
			Amount:         in.Amount,
			AcceptedAt:     time.Now().UTC(),
		}
		if err := r.Contributions.Create(ctx, c); err != nil {
			return err
		}

		l.FundedAmount += in.Amount
		if l.Remaining() <= amountEps {
			l.FundedAmount = l.Principal
			l.Status = domainLoan.StatusFullyFunded
			fullyFunded = true
		} else {
			l.Status = domainLoan.StatusPartiallyFunded
		}
		l.StatusUpdatedAt = time.Now().UTC()
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}

		dto = &ContributionDTO{
			ContributionID: c.ContributionID,
			LoanID:         l.LoanID,
			LenderAddress:  c.LenderAddress,
			Amount:         c.Amount,
			FundedAmount:   l.FundedAmount,
			LoanStatus:     string(l.Status),
			AcceptedAt:     c.AcceptedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if fullyFunded {
		u.log.Info("loan fully funded", zap.String("loan_id", in.LoanID))
		if u.onFullyFunded != nil {
			u.onFullyFunded(in.LoanID)
		}
	}
	return dto, nil
}
