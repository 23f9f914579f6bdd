package mysql

import (
	"context"

	"gorm.io/gorm"

	fundingDomain "microfi-backend/internal/domain/funding"
)

type FundingRepository struct{ db *gorm.DB }

func NewFundingRepository(db *gorm.DB) *FundingRepository { return &FundingRepository{db: db} }

func (r *FundingRepository) Create(ctx context.Context, c *fundingDomain.Contribution) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *FundingRepository) ListByLoanID(ctx context.Context, loanID uint64) ([]fundingDomain.Contribution, error) {
	var out []fundingDomain.Contribution
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("accepted_at ASC, id ASC").
		Find(&out)
	return out, res.Error
}

func (r *FundingRepository) SumByLoanID(ctx context.Context, loanID uint64) (float64, error) {
	var sum *float64
	res := r.db.WithContext(ctx).
		Model(&fundingDomain.Contribution{}).
		Select("SUM(amount)").
		Where("loan_id = ?", loanID).
		Scan(&sum)
	if res.Error != nil {
		return 0, res.Error
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}
