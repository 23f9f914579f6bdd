package transfer

import "context"

type Repository interface {
	Create(ctx context.Context, r *Record) error
	Save(ctx context.Context, r *Record) error
	GetByIdempotencyKey(ctx context.Context, key string) (*Record, error)
	ListByLoanID(ctx context.Context, loanID uint64) ([]Record, error)
	// ListPending feeds the background confirmation sweep.
	ListPending(ctx context.Context, limit int) ([]Record, error)
}
