package mysql

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	installmentDomain "microfi-backend/internal/domain/installment"
)

type InstallmentRepository struct{ db *gorm.DB }

func NewInstallmentRepository(db *gorm.DB) *InstallmentRepository {
	return &InstallmentRepository{db: db}
}

func (r *InstallmentRepository) CreateBatch(ctx context.Context, batch []installmentDomain.Installment) error {
	if len(batch) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&batch).Error
}

func (r *InstallmentRepository) ListByLoanID(ctx context.Context, loanID uint64) ([]installmentDomain.Installment, error) {
	var out []installmentDomain.Installment
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("sequence_number ASC").
		Find(&out)
	return out, res.Error
}

func (r *InstallmentRepository) OldestUnpaid(ctx context.Context, loanID uint64) (*installmentDomain.Installment, error) {
	var out installmentDomain.Installment
	res := r.db.WithContext(ctx).
		Where("loan_id = ? AND status IN ?", loanID,
			[]installmentDomain.Status{installmentDomain.StatusPending, installmentDomain.StatusLate}).
		Order("sequence_number ASC").
		First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return nil, installmentDomain.ErrNoneOutstanding
	}
	return &out, res.Error
}

func (r *InstallmentRepository) CountUnpaid(ctx context.Context, loanID uint64) (int64, error) {
	var n int64
	res := r.db.WithContext(ctx).
		Model(&installmentDomain.Installment{}).
		Where("loan_id = ? AND status IN ?", loanID,
			[]installmentDomain.Status{installmentDomain.StatusPending, installmentDomain.StatusLate}).
		Count(&n)
	return n, res.Error
}

func (r *InstallmentRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&installmentDomain.Installment{}).
		Where("status = ? AND due_at < ?", installmentDomain.StatusPending, asOf).
		Updates(map[string]any{"status": installmentDomain.StatusLate, "updated_at": asOf})
	return res.RowsAffected, res.Error
}

func (r *InstallmentRepository) Save(ctx context.Context, i *installmentDomain.Installment) error {
	return r.db.WithContext(ctx).Save(i).Error
}
