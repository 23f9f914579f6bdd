// Package memstore provides an in-memory implementation of the domain
// repositories and unit of work for usecase and settlement tests. It mirrors
// row-lock semantics loosely: WithinLoanTx hands the callback a copy of the
// loan, and Save writes it back, so tests exercise the same read-mutate-save
// flow the gorm repositories do.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"microfi-backend/internal/domain/funding"
	"microfi-backend/internal/domain/installment"
	"microfi-backend/internal/domain/loan"
	"microfi-backend/internal/domain/transfer"
	"microfi-backend/internal/domain/uow"
)

type Store struct {
	mu            sync.Mutex
	nextID        uint64
	loans         map[uint64]*loan.Loan
	contributions []funding.Contribution
	installments  []installment.Installment
	transfers     map[string]*transfer.Record
}

func New() *Store {
	return &Store{
		loans:     make(map[uint64]*loan.Loan),
		transfers: make(map[string]*transfer.Record),
	}
}

var _ uow.UnitOfWork = (*Store)(nil)

// Repos exposes the store's repository views, matching what the gorm unit
// of work hands out.
func (s *Store) Repos() uow.Repos {
	return uow.Repos{
		Loans:         &loanRepo{s},
		Contributions: &fundingRepo{s},
		Installments:  &installmentRepo{s},
		Transfers:     &transferRepo{s},
	}
}

func (s *Store) Loans() loan.Repository            { return &loanRepo{s} }
func (s *Store) Transfers() transfer.Repository    { return &transferRepo{s} }
func (s *Store) Installments() installment.Repository { return &installmentRepo{s} }

func (s *Store) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return fn(s.Repos())
}

func (s *Store) WithinLoanTx(ctx context.Context, loanID string, fn func(r uow.Repos, l *loan.Loan) error) error {
	l, err := (&loanRepo{s}).GetByLoanID(ctx, loanID)
	if err != nil {
		return loan.ErrNotFound
	}
	return fn(s.Repos(), l)
}

func (s *Store) nextSeq() uint64 {
	s.nextID++
	return s.nextID
}

// ---- loan.Repository ----

type loanRepo struct{ s *Store }

var _ loan.Repository = (*loanRepo)(nil)

func (r *loanRepo) Create(ctx context.Context, l *loan.Loan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l.ID = r.s.nextSeq()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	cp := *l
	r.s.loans[l.ID] = &cp
	return nil
}

func (r *loanRepo) Save(ctx context.Context, l *loan.Loan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *l
	r.s.loans[l.ID] = &cp
	return nil
}

func (r *loanRepo) GetByLoanID(ctx context.Context, loanID string) (*loan.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.loans {
		if l.LoanID == loanID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *loanRepo) GetByID(ctx context.Context, id uint64) (*loan.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.loans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *loanRepo) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*loan.Loan, error) {
	return r.GetByLoanID(ctx, loanID)
}

func (r *loanRepo) ListFundable(ctx context.Context) ([]loan.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []loan.Loan
	for _, l := range r.s.loans {
		if l.Status.Fundable() {
			out = append(out, *l)
		}
	}
	// newest first, matching the gorm repository's ordering
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// ---- funding.Repository ----

type fundingRepo struct{ s *Store }

var _ funding.Repository = (*fundingRepo)(nil)

func (r *fundingRepo) Create(ctx context.Context, c *funding.Contribution) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID = r.s.nextSeq()
	r.s.contributions = append(r.s.contributions, *c)
	return nil
}

func (r *fundingRepo) ListByLoanID(ctx context.Context, loanID uint64) ([]funding.Contribution, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []funding.Contribution
	for _, c := range r.s.contributions {
		if c.LoanID == loanID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fundingRepo) SumByLoanID(ctx context.Context, loanID uint64) (float64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var sum float64
	for _, c := range r.s.contributions {
		if c.LoanID == loanID {
			sum += c.Amount
		}
	}
	return sum, nil
}

// ---- installment.Repository ----

type installmentRepo struct{ s *Store }

var _ installment.Repository = (*installmentRepo)(nil)

func (r *installmentRepo) CreateBatch(ctx context.Context, batch []installment.Installment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, i := range batch {
		i.ID = r.s.nextSeq()
		r.s.installments = append(r.s.installments, i)
	}
	return nil
}

func (r *installmentRepo) ListByLoanID(ctx context.Context, loanID uint64) ([]installment.Installment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.installmentsFor(loanID), nil
}

func (s *Store) installmentsFor(loanID uint64) []installment.Installment {
	var out []installment.Installment
	for _, i := range s.installments {
		if i.LoanID == loanID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].SequenceNumber < out[b].SequenceNumber })
	return out
}

func (r *installmentRepo) OldestUnpaid(ctx context.Context, loanID uint64) (*installment.Installment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, i := range r.s.installmentsFor(loanID) {
		if i.Status.Payable() {
			cp := i
			return &cp, nil
		}
	}
	return nil, installment.ErrNoneOutstanding
}

func (r *installmentRepo) CountUnpaid(ctx context.Context, loanID uint64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, i := range r.s.installmentsFor(loanID) {
		if i.Status.Payable() {
			n++
		}
	}
	return n, nil
}

func (r *installmentRepo) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for idx := range r.s.installments {
		i := &r.s.installments[idx]
		if i.Status == installment.StatusPending && i.DueAt.Before(asOf) {
			i.Status = installment.StatusLate
			n++
		}
	}
	return n, nil
}

func (r *installmentRepo) Save(ctx context.Context, i *installment.Installment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for idx := range r.s.installments {
		if r.s.installments[idx].ID == i.ID {
			r.s.installments[idx] = *i
			return nil
		}
	}
	r.s.installments = append(r.s.installments, *i)
	return nil
}

// ---- transfer.Repository ----

type transferRepo struct{ s *Store }

var _ transfer.Repository = (*transferRepo)(nil)

func (r *transferRepo) Create(ctx context.Context, rec *transfer.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec.ID = r.s.nextSeq()
	cp := *rec
	r.s.transfers[rec.IdempotencyKey] = &cp
	return nil
}

func (r *transferRepo) Save(ctx context.Context, rec *transfer.Record) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *rec
	r.s.transfers[rec.IdempotencyKey] = &cp
	return nil
}

func (r *transferRepo) GetByIdempotencyKey(ctx context.Context, key string) (*transfer.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.transfers[key]
	if !ok {
		return nil, transfer.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *transferRepo) ListByLoanID(ctx context.Context, loanID uint64) ([]transfer.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []transfer.Record
	for _, rec := range r.s.transfers {
		if rec.LoanID == loanID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *transferRepo) ListPending(ctx context.Context, limit int) ([]transfer.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []transfer.Record
	for _, rec := range r.s.transfers {
		if rec.Outcome == transfer.OutcomePending {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
