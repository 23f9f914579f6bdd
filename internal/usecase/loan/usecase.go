package loan

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	domainInstallment "microfi-backend/internal/domain/installment"
	domainLoan "microfi-backend/internal/domain/loan"
	domainTransfer "microfi-backend/internal/domain/transfer"
	"microfi-backend/internal/domain/uow"
	"microfi-backend/internal/settlement"
	"microfi-backend/pkg/amortize"
	"microfi-backend/pkg/id"
)

// Transferer is the slice of the settlement engine the state machine needs.
type Transferer interface {
	Transfer(ctx context.Context, req settlement.Request) (*domainTransfer.Record, error)
}

// DelinquencyPolicy decides whether an overdue loan moves to defaulted.
// The platform ships no policy of its own; default transitions happen only
// when a collections collaborator supplies one.
type DelinquencyPolicy interface {
	ShouldDefault(ctx context.Context, l *domainLoan.Loan, overdue []domainInstallment.Installment) bool
}

type Usecase struct {
	uow      uow.UnitOfWork
	loans    domainLoan.Repository
	engine   Transferer
	risk     amortize.RiskEngine
	log      *zap.Logger
	explorer func(reference string) string
}

func NewUsecase(tx uow.UnitOfWork, loans domainLoan.Repository, engine Transferer, risk amortize.RiskEngine, log *zap.Logger) *Usecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{uow: tx, loans: loans, engine: engine, risk: risk, log: log}
}

// SetExplorerURL registers the renderer for public explorer links on
// transfer DTOs.
func (u *Usecase) SetExplorerURL(fn func(reference string) string) { u.explorer = fn }

func (u *Usecase) Create(ctx context.Context, in CreateLoanInput) (*LoanDTO, error) {
	if in.BorrowerAddress == "" {
		return nil, amortize.ErrInvalidTerm
	}
	payment, err := amortize.Payment(in.Principal, in.RatePct, in.DurationMonths)
	if err != nil {
		return nil, err
	}
	risk := u.risk.Assess(in.Principal, in.RatePct, in.DurationMonths, in.Purpose)

	l := &domainLoan.Loan{
		LoanID:          id.NewID32(),
		BorrowerAddress: in.BorrowerAddress,
		Principal:       in.Principal,
		RatePct:         in.RatePct,
		DurationMonths:  in.DurationMonths,
		Purpose:         in.Purpose,
		Description:     in.Description,
		RiskScore:       string(risk),
		Status:          domainLoan.StatusRequested,
		StatusUpdatedAt: time.Now().UTC(),
	}
	if err := u.loans.Create(ctx, l); err != nil {
		return nil, err
	}
	dto := toLoanDTO(l, payment)
	return &dto, nil
}

func (u *Usecase) Get(ctx context.Context, loanID string) (*LoanDetailDTO, error) {
	var detail *LoanDetailDTO
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		l, err := r.Loans.GetByLoanID(ctx, loanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainLoan.ErrNotFound
			}
			return err
		}
		payment, _ := amortize.Payment(l.Principal, l.RatePct, l.DurationMonths)

		installments, err := r.Installments.ListByLoanID(ctx, l.ID)
		if err != nil {
			return err
		}
		contributions, err := r.Contributions.ListByLoanID(ctx, l.ID)
		if err != nil {
			return err
		}
		transfers, err := r.Transfers.ListByLoanID(ctx, l.ID)
		if err != nil {
			return err
		}

		d := &LoanDetailDTO{LoanDTO: toLoanDTO(l, payment)}
		for _, i := range installments {
			d.Installments = append(d.Installments, InstallmentDTO{
				SequenceNumber: i.SequenceNumber,
				DueAmount:      i.DueAmount,
				PaidAmount:     i.PaidAmount,
				DueAt:          i.DueAt,
				PaidAt:         i.PaidAt,
				Status:         string(i.Status),
			})
		}
		d.Contributions = contributions
		for i := range transfers {
			d.Transfers = append(d.Transfers, u.toTransferDTO(&transfers[i]))
		}
		detail = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (u *Usecase) ListOpen(ctx context.Context) ([]LoanDTO, error) {
	loans, err := u.loans.ListFundable(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]LoanDTO, 0, len(loans))
	for i := range loans {
		payment, _ := amortize.Payment(loans[i].Principal, loans[i].RatePct, loans[i].DurationMonths)
		out = append(out, toLoanDTO(&loans[i], payment))
	}
	return out, nil
}

// Disburse drives FullyFunded→Disbursing→Active. Safe to call again after a
// crash or a confirmation timeout: the idempotency key lands on the same
// transfer record and the status guards make each step single-shot.
func (u *Usecase) Disburse(ctx context.Context, loanID string) (*TransferDTO, error) {
	var (
		numericID uint64
		borrower  string
		amount    float64
	)
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domainLoan.Loan) error {
		switch l.Status {
		case domainLoan.StatusFullyFunded:
			l.Status = domainLoan.StatusDisbursing
			l.StatusUpdatedAt = time.Now().UTC()
			if err := r.Loans.Save(ctx, l); err != nil {
				return err
			}
		case domainLoan.StatusDisbursing:
			// re-drive after crash
		default:
			return domainLoan.ErrInvalidTransition
		}
		numericID, borrower, amount = l.ID, l.BorrowerAddress, l.Principal
		return nil
	})
	if err != nil {
		return nil, err
	}

	rec, err := u.engine.Transfer(ctx, settlement.Request{
		Direction:      domainTransfer.DirectionDisbursement,
		IdempotencyKey: domainTransfer.DisburseKey(loanID),
		Counterparty:   borrower,
		Amount:         amount,
		LoanID:         numericID,
	})
	switch {
	case err == nil && rec.Outcome.Settled():
		if err := u.activate(ctx, loanID); err != nil {
			return nil, err
		}
	case errors.Is(err, settlement.ErrConfirmationTimeout):
		// Submitted but unresolved. The sweep finishes the transition; the
		// loan is parked in Disbursing, never lost.
		u.log.Warn("disbursement awaiting confirmation", zap.String("loan_id", loanID))
	case err != nil:
		u.revertDisbursement(ctx, loanID, err)
		return nil, err
	}
	dto := u.toTransferDTO(rec)
	return &dto, nil
}

func (u *Usecase) activate(ctx context.Context, loanID string) error {
	return u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domainLoan.Loan) error {
		if l.Status != domainLoan.StatusDisbursing {
			// already activated (or reverted); nothing to do
			return nil
		}
		entries, err := amortize.Schedule(l.Principal, l.RatePct, l.DurationMonths, time.Now().UTC())
		if err != nil {
			return err
		}
		batch := make([]domainInstallment.Installment, 0, len(entries))
		for _, e := range entries {
			batch = append(batch, domainInstallment.Installment{
				LoanID:         l.ID,
				SequenceNumber: e.Sequence,
				DueAmount:      e.DueAmount,
				DueAt:          e.DueAt,
				Status:         domainInstallment.StatusPending,
			})
		}
		if err := r.Installments.CreateBatch(ctx, batch); err != nil {
			return err
		}
		l.Status = domainLoan.StatusActive
		l.StatusUpdatedAt = time.Now().UTC()
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		u.log.Info("loan active", zap.String("loan_id", loanID), zap.Int("installments", len(batch)))
		return nil
	})
}

func (u *Usecase) revertDisbursement(ctx context.Context, loanID string, cause error) {
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domainLoan.Loan) error {
		if l.Status != domainLoan.StatusDisbursing {
			return nil
		}
		l.Status = domainLoan.StatusFullyFunded
		l.StatusUpdatedAt = time.Now().UTC()
		return r.Loans.Save(ctx, l)
	})
	if err != nil {
		u.log.Error("revert disbursement", zap.String("loan_id", loanID), zap.Error(err))
	}
	u.log.Error("disbursement failed, loan returned to fully_funded",
		zap.Bool("operator_alert", true),
		zap.String("loan_id", loanID),
		zap.Error(cause))
}

// Repay settles the oldest outstanding installment. The installment to pay
// is picked at apply time, so confirmations landing out of submission order
// still mark installments paid strictly in sequence.
func (u *Usecase) Repay(ctx context.Context, loanID string) (*TransferDTO, error) {
	var (
		numericID uint64
		borrower  string
		seq       int
		due       float64
	)
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domainLoan.Loan) error {
		if l.Status != domainLoan.StatusActive {
			if l.Status.Terminal() {
				return domainLoan.ErrTerminalState
			}
			return domainLoan.ErrNotActive
		}
		inst, err := r.Installments.OldestUnpaid(ctx, l.ID)
		if err != nil {
			return err
		}
		numericID, borrower = l.ID, l.BorrowerAddress
		seq, due = inst.SequenceNumber, inst.DueAmount
		return nil
	})
	if err != nil {
		return nil, err
	}

	rec, err := u.engine.Transfer(ctx, settlement.Request{
		Direction:           domainTransfer.DirectionRepayment,
		IdempotencyKey:      domainTransfer.RepayKey(loanID, seq),
		Counterparty:        borrower,
		Amount:              due,
		LoanID:              numericID,
		InstallmentSequence: seq,
	})
	switch {
	case err == nil && rec.Outcome.Settled():
		if err := u.applyRepayment(ctx, loanID, rec); err != nil {
			return nil, err
		}
	case errors.Is(err, settlement.ErrConfirmationTimeout):
		u.log.Warn("repayment awaiting confirmation",
			zap.String("loan_id", loanID), zap.Int("sequence", seq))
	case err != nil:
		return nil, err
	}
	dto := u.toTransferDTO(rec)
	return &dto, nil
}

// applyRepayment marks the oldest unpaid installment paid for a settled
// repayment record. AppliedAt makes it single-shot per record: a replayed
// transfer or a sweep racing the caller applies the value exactly once.
func (u *Usecase) applyRepayment(ctx context.Context, loanID string, rec *domainTransfer.Record) error {
	return u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domainLoan.Loan) error {
		cur, err := r.Transfers.GetByIdempotencyKey(ctx, rec.IdempotencyKey)
		if err != nil {
			return err
		}
		if cur.AppliedAt != nil {
			return nil
		}

		inst, err := r.Installments.OldestUnpaid(ctx, l.ID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		inst.PaidAmount = cur.Amount
		inst.PaidAt = &now
		inst.Status = domainInstallment.StatusPaid
		if err := r.Installments.Save(ctx, inst); err != nil {
			return err
		}

		cur.AppliedAt = &now
		if err := r.Transfers.Save(ctx, cur); err != nil {
			return err
		}

		left, err := r.Installments.CountUnpaid(ctx, l.ID)
		if err != nil {
			return err
		}
		if left == 0 && l.Status == domainLoan.StatusActive {
			l.Status = domainLoan.StatusCompleted
			l.StatusUpdatedAt = now
			if err := r.Loans.Save(ctx, l); err != nil {
				return err
			}
			u.log.Info("loan completed", zap.String("loan_id", loanID))
		}
		return nil
	})
}

// Reconcile consumes transfer records the background sweep resolved while no
// caller was waiting, and finishes the matching state transition.
func (u *Usecase) Reconcile(ctx context.Context, rec *domainTransfer.Record) error {
	loanID, err := u.publicLoanID(ctx, rec.LoanID)
	if err != nil {
		if rec.Direction == domainTransfer.DirectionTestFunding {
			return nil
		}
		return err
	}
	switch rec.Direction {
	case domainTransfer.DirectionDisbursement:
		if rec.Outcome == domainTransfer.OutcomeConfirmed {
			return u.activate(ctx, loanID)
		}
		if rec.Outcome == domainTransfer.OutcomeFailed {
			u.revertDisbursement(ctx, loanID, errors.New(rec.FailureReason))
		}
	case domainTransfer.DirectionRepayment:
		if rec.Outcome.Settled() {
			return u.applyRepayment(ctx, loanID, rec)
		}
		if rec.Outcome == domainTransfer.OutcomeFailed {
			u.log.Warn("repayment transfer failed, installment remains due",
				zap.String("idempotency_key", rec.IdempotencyKey))
		}
	}
	return nil
}

// MarkOverdue flips past-due pending installments to late. Informational:
// the loan itself stays active and the installments remain collectible.
func (u *Usecase) MarkOverdue(ctx context.Context) (int64, error) {
	var n int64
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		n, err = r.Installments.MarkOverdue(ctx, time.Now().UTC())
		return err
	})
	return n, err
}

// ApplyDelinquencyPolicy lets a collections collaborator decide on default.
// Without a policy no loan ever defaults automatically.
func (u *Usecase) ApplyDelinquencyPolicy(ctx context.Context, policy DelinquencyPolicy, loanID string) error {
	if policy == nil {
		return nil
	}
	return u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domainLoan.Loan) error {
		if l.Status != domainLoan.StatusActive {
			return nil
		}
		installments, err := r.Installments.ListByLoanID(ctx, l.ID)
		if err != nil {
			return err
		}
		var overdue []domainInstallment.Installment
		for _, i := range installments {
			if i.Status == domainInstallment.StatusLate {
				overdue = append(overdue, i)
			}
		}
		if len(overdue) == 0 || !policy.ShouldDefault(ctx, l, overdue) {
			return nil
		}
		now := time.Now().UTC()
		for i := range installments {
			if installments[i].Status.Payable() {
				installments[i].Status = domainInstallment.StatusMissed
				if err := r.Installments.Save(ctx, &installments[i]); err != nil {
					return err
				}
			}
		}
		l.Status = domainLoan.StatusDefaulted
		l.StatusUpdatedAt = now
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		u.log.Error("loan defaulted",
			zap.Bool("operator_alert", true),
			zap.String("loan_id", loanID),
			zap.Int("missed_installments", len(overdue)))
		return nil
	})
}

func (u *Usecase) publicLoanID(ctx context.Context, numericID uint64) (string, error) {
	var loanID string
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		l, err := r.Loans.GetByID(ctx, numericID)
		if err != nil {
			return err
		}
		loanID = l.LoanID
		return nil
	})
	return loanID, err
}

func (u *Usecase) toTransferDTO(rec *domainTransfer.Record) TransferDTO {
	dto := TransferDTO{
		IdempotencyKey:      rec.IdempotencyKey,
		Direction:           string(rec.Direction),
		CounterpartyAddress: rec.CounterpartyAddress,
		Amount:              rec.Amount,
		LedgerReference:     rec.LedgerReference,
		Outcome:             string(rec.Outcome),
		AttemptedAt:         rec.AttemptedAt,
		ResolvedAt:          rec.ResolvedAt,
	}
	if u.explorer != nil {
		dto.ExplorerURL = u.explorer(rec.LedgerReference)
	}
	return dto
}

func toLoanDTO(l *domainLoan.Loan, payment float64) LoanDTO {
	return LoanDTO{
		LoanID:          l.LoanID,
		BorrowerAddress: l.BorrowerAddress,
		Principal:       l.Principal,
		RatePct:         l.RatePct,
		DurationMonths:  l.DurationMonths,
		Purpose:         l.Purpose,
		Description:     l.Description,
		RiskScore:       l.RiskScore,
		Status:          string(l.Status),
		FundedAmount:    l.FundedAmount,
		MonthlyPayment:  payment,
		CreatedAt:       l.CreatedAt,
	}
}
