package amortize

import (
	"errors"
	"math"
	"time"
)

var ErrInvalidTerm = errors.New("invalid loan term")

// Payment returns the fixed monthly payment for a loan using the standard
// amortization formula: P·r·(1+r)^n / ((1+r)^n − 1), where r is the monthly
// rate derived from the annual percentage. A zero rate degenerates to P/n.
func Payment(principal, annualRatePct float64, months int) (float64, error) {
	if months <= 0 || principal <= 0 {
		return 0, ErrInvalidTerm
	}
	if annualRatePct < 0 {
		return 0, ErrInvalidTerm
	}
	r := annualRatePct / 12 / 100
	if r == 0 {
		return principal / float64(months), nil
	}
	growth := math.Pow(1+r, float64(months))
	return principal * (r * growth) / (growth - 1), nil
}

// TotalInterest is the amount repaid beyond principal over the full term.
func TotalInterest(principal, annualRatePct float64, months int) (float64, error) {
	p, err := Payment(principal, annualRatePct, months)
	if err != nil {
		return 0, err
	}
	return p*float64(months) - principal, nil
}

// Entry is one line of a materialized repayment schedule.
type Entry struct {
	Sequence  int
	DueAmount float64
	DueAt     time.Time
}

// Schedule materializes the full installment schedule, one entry per month
// starting one month after start. Every entry carries the fixed payment.
func Schedule(principal, annualRatePct float64, months int, start time.Time) ([]Entry, error) {
	p, err := Payment(principal, annualRatePct, months)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, months)
	for i := 1; i <= months; i++ {
		out = append(out, Entry{
			Sequence:  i,
			DueAmount: p,
			DueAt:     start.AddDate(0, i, 0),
		})
	}
	return out, nil
}

type Risk string

const (
	RiskLow    Risk = "Low"
	RiskMedium Risk = "Medium"
	RiskHigh   Risk = "High"
)

// RiskEngine classifies a loan request with a deterministic heuristic.
// Thresholds come from platform config, not from the advisory collaborator;
// advisory text is rendered alongside this result, never in place of it.
type RiskEngine struct {
	// PrincipalThreshold is the principal above which risk moves up a tier.
	PrincipalThreshold float64
	// RateCeiling is the annual rate (%) above which risk moves up a tier.
	RateCeiling float64
}

func (e RiskEngine) Assess(principal, annualRatePct float64, months int, purpose string) Risk {
	tier := 0
	if principal > e.PrincipalThreshold {
		tier++
	}
	if annualRatePct > e.RateCeiling {
		tier++
	}
	switch {
	case tier >= 2:
		return RiskHigh
	case tier == 1:
		return RiskMedium
	default:
		return RiskLow
	}
}
