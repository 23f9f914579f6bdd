package uow

import (
	"context"

	"microfi-backend/internal/domain/funding"
	"microfi-backend/internal/domain/installment"
	"microfi-backend/internal/domain/loan"
	"microfi-backend/internal/domain/transfer"
)

type Repos struct {
	Loans         loan.Repository
	Contributions funding.Repository
	Installments  installment.Repository
	Transfers     transfer.Repository
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// convenience: lock the loan row first, then pass it in
	WithinLoanTx(ctx context.Context, loanID string, fn func(r Repos, l *loan.Loan) error) error
}
