package installment

import (
	"context"
	"time"
)

type Repository interface {
	CreateBatch(ctx context.Context, batch []Installment) error
	ListByLoanID(ctx context.Context, loanID uint64) ([]Installment, error)
	// OldestUnpaid returns the payable installment with the lowest sequence
	// number, or ErrNoneOutstanding. Repayments are always applied here,
	// never to the installment the caller happened to name.
	OldestUnpaid(ctx context.Context, loanID uint64) (*Installment, error)
	CountUnpaid(ctx context.Context, loanID uint64) (int64, error)
	// MarkOverdue flips pending installments whose dueAt has passed to late.
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
	Save(ctx context.Context, i *Installment) error
}
