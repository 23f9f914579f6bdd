package loan

import "context"

type Repository interface {
	Create(ctx context.Context, l *Loan) error
	GetByLoanID(ctx context.Context, loanID string) (*Loan, error)
	GetByID(ctx context.Context, id uint64) (*Loan, error)
	// GetByLoanIDForUpdate locks the row for the duration of the enclosing tx.
	GetByLoanIDForUpdate(ctx context.Context, loanID string) (*Loan, error)
	ListFundable(ctx context.Context) ([]Loan, error)
	Save(ctx context.Context, l *Loan) error
}
