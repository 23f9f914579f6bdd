package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"microfi-backend/internal/domain/transfer"
	"microfi-backend/internal/ledger"
)

var (
	// ErrInsufficientBalance: the custodial account cannot cover an outgoing
	// transfer. Surfaced to the caller, never absorbed.
	ErrInsufficientBalance = errors.New("custodial account balance insufficient")
	// ErrTransferFailed: the ledger reported the transaction as failed.
	ErrTransferFailed = errors.New("transfer failed on ledger")
	// ErrConfirmationTimeout: submitted but unconfirmed within the polling
	// budget. The record stays pending; the background sweep resolves it.
	ErrConfirmationTimeout = errors.New("transfer confirmation timed out")
	// ErrClosed: the engine has been shut down.
	ErrClosed = errors.New("settlement engine closed")

	errInvalidRequest = errors.New("invalid transfer request")
)

type Options struct {
	// SubmitAttempts bounds retries of the initial submission on transient
	// ledger errors.
	SubmitAttempts int
	// ConfirmAttempts bounds confirmation polls per transfer. The same
	// budget bounds how often the sweep re-checks a pending record before
	// escalating it to failed.
	ConfirmAttempts int
	InitialBackoff  time.Duration
	QueueSize       int
	// Production guards faucet funding.
	Production bool
	// SimulateRepayments records inbound repayments as simulated instead of
	// submitting them, for networks where the platform does not custody
	// counterparty credentials. The outcome is labeled, never passed off
	// as a confirmed ledger transaction.
	SimulateRepayments bool
}

func (o Options) withDefaults() Options {
	if o.SubmitAttempts <= 0 {
		o.SubmitAttempts = 3
	}
	if o.ConfirmAttempts <= 0 {
		o.ConfirmAttempts = 10
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 500 * time.Millisecond
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	return o
}

// Request describes one transfer to execute under an idempotency key.
type Request struct {
	Direction           transfer.Direction
	IdempotencyKey      string
	Counterparty        string
	Amount              float64
	LoanID              uint64
	InstallmentSequence int
}

type job struct {
	rec *transfer.Record
	res chan jobResult
}

type jobResult struct {
	rec *transfer.Record
	err error
}

// Engine executes all transfers signed by the custodial account. Submissions
// are serialized through a single worker per account: the ledger requires
// each transaction to reference recent ledger state, and two in-flight
// transfers from the same signer can be rejected or reordered.
type Engine struct {
	account Account
	ledger  ledger.Client
	records transfer.Repository
	log     *zap.Logger
	opts    Options

	jobs      chan *job
	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	// closeMu serializes Close against in-flight enqueues: senders hold the
	// read lock across the channel send, so the channel is never closed
	// under a sender.
	closeMu sync.RWMutex
	closed  bool
}

func NewEngine(account Account, lc ledger.Client, records transfer.Repository, log *zap.Logger, opts Options) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		account:   account,
		ledger:    lc,
		records:   records,
		log:       log,
		opts:      opts.withDefaults(),
		jobs:      make(chan *job, opts.withDefaults().QueueSize),
		runCtx:    ctx,
		runCancel: cancel,
	}
	e.wg.Add(1)
	go e.run()
	return e
}

func (e *Engine) Account() Account { return e.account }

// Close stops accepting transfers, lets the worker drain what was already
// queued, and blocks until it exits. Unresolved records stay pending for
// the sweep.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.closeMu.Lock()
		e.closed = true
		e.closeMu.Unlock()
		e.runCancel()
		close(e.jobs)
	})
	e.wg.Wait()
}

// Transfer executes (or replays) the transfer identified by the idempotency
// key. A key already pending, confirmed, or simulated returns the existing
// record without resubmitting. Cancelling ctx abandons the wait only: the
// record stays pending and the sweep resolves it later.
func (e *Engine) Transfer(ctx context.Context, req Request) (*transfer.Record, error) {
	if req.IdempotencyKey == "" || req.Counterparty == "" || req.Amount <= 0 {
		return nil, errInvalidRequest
	}

	existing, err := e.records.GetByIdempotencyKey(ctx, req.IdempotencyKey)
	switch {
	case err == nil:
		if existing.Outcome != transfer.OutcomeFailed {
			return existing, nil
		}
		// A failed record may be retried under the same key; the row is
		// reused so the key keeps mapping to a single record.
		existing.Outcome = transfer.OutcomePending
		existing.FailureReason = ""
		existing.ResolvedAt = nil
		existing.AttemptedAt = time.Now().UTC()
		if err := e.records.Save(ctx, existing); err != nil {
			return nil, err
		}
		return e.enqueue(ctx, existing)
	case errors.Is(err, transfer.ErrNotFound):
	default:
		return nil, err
	}

	rec := &transfer.Record{
		IdempotencyKey:      req.IdempotencyKey,
		Direction:           req.Direction,
		LoanID:              req.LoanID,
		InstallmentSequence: req.InstallmentSequence,
		CounterpartyAddress: req.Counterparty,
		Amount:              req.Amount,
		Outcome:             transfer.OutcomePending,
		AttemptedAt:         time.Now().UTC(),
	}

	if req.Direction == transfer.DirectionRepayment && e.opts.SimulateRepayments {
		now := time.Now().UTC()
		rec.Outcome = transfer.OutcomeSimulated
		rec.LedgerReference = "sim-" + req.IdempotencyKey
		rec.ResolvedAt = &now
		if err := e.records.Create(ctx, rec); err != nil {
			return nil, err
		}
		e.log.Info("repayment recorded as simulated",
			zap.String("idempotency_key", rec.IdempotencyKey),
			zap.Float64("amount", rec.Amount))
		return rec, nil
	}

	if err := e.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	return e.enqueue(ctx, rec)
}

func (e *Engine) enqueue(ctx context.Context, rec *transfer.Record) (*transfer.Record, error) {
	j := &job{rec: rec, res: make(chan jobResult, 1)}
	e.closeMu.RLock()
	if e.closed {
		e.closeMu.RUnlock()
		return rec, ErrClosed
	}
	select {
	case e.jobs <- j:
		e.closeMu.RUnlock()
	case <-ctx.Done():
		e.closeMu.RUnlock()
		return rec, ctx.Err()
	}
	select {
	case r := <-j.res:
		return r.rec, r.err
	case <-ctx.Done():
		// Abandon the wait, not the transfer. The worker finishes and the
		// record resolves via its result or the sweep.
		return rec, ErrConfirmationTimeout
	}
}

// Balance reads the custodial balance live from the ledger; it is never
// cached as a source of truth.
func (e *Engine) Balance(ctx context.Context) (float64, error) {
	return e.ledger.Balance(ctx, e.account.address)
}

// RequestTestFunds tops up the custodial account from the network faucet.
// Refused outright on production networks; no transfer is attempted.
func (e *Engine) RequestTestFunds(ctx context.Context, amount float64) (*transfer.Record, error) {
	if e.opts.Production {
		return nil, ledger.ErrUnsupportedOnMain
	}
	if amount <= 0 {
		return nil, errInvalidRequest
	}
	return e.Transfer(ctx, Request{
		Direction:      transfer.DirectionTestFunding,
		IdempotencyKey: transfer.TestFundingKey(e.account.address, time.Now().UTC()),
		Counterparty:   e.account.address,
		Amount:         amount,
	})
}

func (e *Engine) run() {
	defer e.wg.Done()
	for j := range e.jobs {
		rec, err := e.execute(j.rec)
		j.res <- jobResult{rec: rec, err: err}
	}
}

func (e *Engine) execute(rec *transfer.Record) (*transfer.Record, error) {
	ctx := e.runCtx

	if rec.Direction == transfer.DirectionDisbursement {
		if bal, err := e.ledger.Balance(ctx, e.account.address); err == nil && bal < rec.Amount {
			e.fail(ctx, rec, fmt.Sprintf("balance %.4f below disbursement %.4f", bal, rec.Amount))
			return rec, ErrInsufficientBalance
		}
	}

	ref, submitErr := e.submitWithRetry(ctx, rec)
	if submitErr != nil {
		e.fail(ctx, rec, submitErr.Error())
		return rec, submitErr
	}
	rec.LedgerReference = ref
	if err := e.records.Save(ctx, rec); err != nil {
		e.log.Error("persist ledger reference", zap.String("idempotency_key", rec.IdempotencyKey), zap.Error(err))
	}

	return e.awaitConfirmation(ctx, rec)
}

func (e *Engine) submitWithRetry(ctx context.Context, rec *transfer.Record) (string, error) {
	var ref string
	op := func() error {
		rec.Attempts++
		var err error
		if rec.Direction == transfer.DirectionTestFunding {
			ref, err = e.ledger.RequestTestFunds(ctx, rec.CounterpartyAddress, rec.Amount)
		} else {
			from, to := e.endpoints(rec)
			ref, err = e.ledger.SubmitTransfer(ctx, ledger.SubmitRequest{
				From:       from,
				To:         to,
				Amount:     rec.Amount,
				Credential: e.account.credential,
			})
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, ledger.ErrUnavailable) {
			e.log.Warn("ledger submit retry",
				zap.String("idempotency_key", rec.IdempotencyKey),
				zap.Int("attempt", rec.Attempts),
				zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.opts.InitialBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(e.opts.SubmitAttempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return "", err
	}
	return ref, nil
}

func (e *Engine) endpoints(rec *transfer.Record) (from, to string) {
	if rec.Direction == transfer.DirectionRepayment {
		return rec.CounterpartyAddress, e.account.address
	}
	return e.account.address, rec.CounterpartyAddress
}

func (e *Engine) awaitConfirmation(ctx context.Context, rec *transfer.Record) (*transfer.Record, error) {
	wait := e.opts.InitialBackoff
	for i := 0; i < e.opts.ConfirmAttempts; i++ {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return rec, ErrConfirmationTimeout
		}
		wait *= 2

		status, err := e.ledger.TransactionStatus(ctx, rec.LedgerReference)
		if err != nil {
			continue
		}
		switch status {
		case ledger.StatusConfirmed:
			e.confirm(ctx, rec)
			return rec, nil
		case ledger.StatusFailed:
			e.fail(ctx, rec, "ledger reported transaction failed")
			return rec, ErrTransferFailed
		}
	}
	// Unresolved within budget: stays pending for the sweep, never dropped.
	e.log.Warn("confirmation budget exhausted, record left pending",
		zap.String("idempotency_key", rec.IdempotencyKey),
		zap.String("reference", rec.LedgerReference))
	return rec, ErrConfirmationTimeout
}

func (e *Engine) confirm(ctx context.Context, rec *transfer.Record) {
	now := time.Now().UTC()
	rec.Outcome = transfer.OutcomeConfirmed
	rec.ResolvedAt = &now
	if err := e.records.Save(ctx, rec); err != nil {
		e.log.Error("persist confirmed transfer", zap.String("idempotency_key", rec.IdempotencyKey), zap.Error(err))
		return
	}
	e.log.Info("transfer confirmed",
		zap.String("idempotency_key", rec.IdempotencyKey),
		zap.String("reference", rec.LedgerReference),
		zap.Float64("amount", rec.Amount))
}

func (e *Engine) fail(ctx context.Context, rec *transfer.Record, reason string) {
	now := time.Now().UTC()
	rec.Outcome = transfer.OutcomeFailed
	rec.FailureReason = reason
	rec.ResolvedAt = &now
	if err := e.records.Save(ctx, rec); err != nil {
		e.log.Error("persist failed transfer", zap.String("idempotency_key", rec.IdempotencyKey), zap.Error(err))
		return
	}
	e.log.Error("transfer failed",
		zap.String("idempotency_key", rec.IdempotencyKey),
		zap.String("reason", reason))
}

// ResolvePending re-checks pending records against the ledger and returns
// those that reached a final outcome this pass. Records that exhaust the
// confirmation budget are escalated to failed; a caller-side timeout alone
// never fails a record, because the transfer may well have succeeded.
func (e *Engine) ResolvePending(ctx context.Context, limit int) ([]*transfer.Record, error) {
	pending, err := e.records.ListPending(ctx, limit)
	if err != nil {
		return nil, err
	}
	var resolved []*transfer.Record
	for i := range pending {
		rec := &pending[i]
		if rec.LedgerReference == "" {
			// Crashed before submission; nothing can confirm it.
			rec.Attempts++
			if rec.Attempts >= e.opts.SubmitAttempts+e.opts.ConfirmAttempts {
				e.fail(ctx, rec, "never submitted, retry budget exhausted")
				resolved = append(resolved, rec)
				continue
			}
			if err := e.records.Save(ctx, rec); err != nil {
				e.log.Error("sweep persist", zap.String("idempotency_key", rec.IdempotencyKey), zap.Error(err))
			}
			continue
		}

		status, err := e.ledger.TransactionStatus(ctx, rec.LedgerReference)
		if err != nil {
			continue
		}
		switch status {
		case ledger.StatusConfirmed:
			e.confirm(ctx, rec)
			resolved = append(resolved, rec)
		case ledger.StatusFailed:
			e.fail(ctx, rec, "ledger reported transaction failed")
			resolved = append(resolved, rec)
		default:
			rec.Attempts++
			if rec.Attempts >= e.opts.SubmitAttempts+e.opts.ConfirmAttempts {
				e.fail(ctx, rec, "confirmation budget exhausted")
				resolved = append(resolved, rec)
				continue
			}
			if err := e.records.Save(ctx, rec); err != nil {
				e.log.Error("sweep persist", zap.String("idempotency_key", rec.IdempotencyKey), zap.Error(err))
			}
		}
	}
	return resolved, nil
}
