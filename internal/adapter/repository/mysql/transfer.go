package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	transferDomain "microfi-backend/internal/domain/transfer"
)

type TransferRepository struct{ db *gorm.DB }

func NewTransferRepository(db *gorm.DB) *TransferRepository { return &TransferRepository{db: db} }

func (r *TransferRepository) Create(ctx context.Context, rec *transferDomain.Record) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *TransferRepository) Save(ctx context.Context, rec *transferDomain.Record) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *TransferRepository) GetByIdempotencyKey(ctx context.Context, key string) (*transferDomain.Record, error) {
	var out transferDomain.Record
	res := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, transferDomain.ErrNotFound
	}
	return &out, res.Error
}

func (r *TransferRepository) ListByLoanID(ctx context.Context, loanID uint64) ([]transferDomain.Record, error) {
	var out []transferDomain.Record
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("attempted_at ASC, id ASC").
		Find(&out)
	return out, res.Error
}

func (r *TransferRepository) ListPending(ctx context.Context, limit int) ([]transferDomain.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []transferDomain.Record
	res := r.db.WithContext(ctx).
		Where("outcome = ?", transferDomain.OutcomePending).
		Order("attempted_at ASC").
		Limit(limit).
		Find(&out)
	return out, res.Error
}
