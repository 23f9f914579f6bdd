package task

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"microfi-backend/internal/settlement"
	loanuc "microfi-backend/internal/usecase/loan"
)

// Manager owns the background jobs: the pending-transfer confirmation sweep
// and the overdue-installment marker.
type Manager struct {
	sched gocron.Scheduler
	log   *zap.Logger
}

func NewManager(log *zap.Logger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Manager{sched: s, log: log}, nil
}

func (m *Manager) Start() { m.sched.Start() }

func (m *Manager) Stop() error { return m.sched.Shutdown() }

// RegisterSettlementSweep periodically resolves pending transfer records and
// hands each newly final record to the loan state machine, so transitions
// abandoned by callers (crash, timeout) still finish.
func (m *Manager) RegisterSettlementSweep(engine *settlement.Engine, loans *loanuc.Usecase, every time.Duration) error {
	_, err := m.sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), every)
			defer cancel()

			resolved, err := engine.ResolvePending(ctx, 50)
			if err != nil {
				m.log.Error("settlement sweep", zap.Error(err))
				return
			}
			for _, rec := range resolved {
				if err := loans.Reconcile(ctx, rec); err != nil {
					m.log.Error("sweep reconcile",
						zap.String("idempotency_key", rec.IdempotencyKey),
						zap.Error(err))
				}
			}
			if len(resolved) > 0 {
				m.log.Info("settlement sweep resolved transfers", zap.Int("count", len(resolved)))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}

// RegisterOverdueMarker flips past-due pending installments to late once a
// day. Informational only; no loan transitions here.
func (m *Manager) RegisterOverdueMarker(loans *loanuc.Usecase, every time.Duration) error {
	_, err := m.sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			n, err := loans.MarkOverdue(ctx)
			if err != nil {
				m.log.Error("overdue marker", zap.Error(err))
				return
			}
			if n > 0 {
				m.log.Info("installments marked late", zap.Int64("count", n))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}
