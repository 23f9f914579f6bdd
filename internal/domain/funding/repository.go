package funding

import "context"

type Repository interface {
	Create(ctx context.Context, c *Contribution) error
	ListByLoanID(ctx context.Context, loanID uint64) ([]Contribution, error)
	SumByLoanID(ctx context.Context, loanID uint64) (float64, error)
}
