package ledgermock

import (
	"context"
	"sync"

	"microfi-backend/internal/ledger"
)

// Client is a function-backed mock that satisfies ledger.Client.
// Only methods you need are included; add more as tests require.
type Client struct {
	SubmitTransferFn    func(ctx context.Context, req ledger.SubmitRequest) (string, error)
	TransactionStatusFn func(ctx context.Context, reference string) (ledger.Status, error)
	BalanceFn           func(ctx context.Context, address string) (float64, error)
	HistoryFn           func(ctx context.Context, address string, limit int) ([]ledger.HistoryEntry, error)
	RequestTestFundsFn  func(ctx context.Context, address string, amount float64) (string, error)

	mu      sync.Mutex
	submits []ledger.SubmitRequest
	polls   []string
	faucets int
}

var _ ledger.Client = (*Client)(nil)

func (m *Client) SubmitTransfer(ctx context.Context, req ledger.SubmitRequest) (string, error) {
	m.mu.Lock()
	m.submits = append(m.submits, req)
	m.mu.Unlock()
	if m.SubmitTransferFn != nil {
		return m.SubmitTransferFn(ctx, req)
	}
	return "ref-0", nil
}

func (m *Client) TransactionStatus(ctx context.Context, reference string) (ledger.Status, error) {
	m.mu.Lock()
	m.polls = append(m.polls, reference)
	m.mu.Unlock()
	if m.TransactionStatusFn != nil {
		return m.TransactionStatusFn(ctx, reference)
	}
	return ledger.StatusConfirmed, nil
}

func (m *Client) Balance(ctx context.Context, address string) (float64, error) {
	if m.BalanceFn != nil {
		return m.BalanceFn(ctx, address)
	}
	return 1_000_000, nil
}

func (m *Client) History(ctx context.Context, address string, limit int) ([]ledger.HistoryEntry, error) {
	if m.HistoryFn != nil {
		return m.HistoryFn(ctx, address, limit)
	}
	return nil, nil
}

func (m *Client) RequestTestFunds(ctx context.Context, address string, amount float64) (string, error) {
	m.mu.Lock()
	m.faucets++
	m.mu.Unlock()
	if m.RequestTestFundsFn != nil {
		return m.RequestTestFundsFn(ctx, address, amount)
	}
	return "faucet-ref", nil
}

// SubmitCount reports how many transfers actually reached the fake ledger,
// which is how tests assert that an idempotent replay skipped submission.
func (m *Client) SubmitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submits)
}

func (m *Client) LastSubmit() (ledger.SubmitRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.submits) == 0 {
		return ledger.SubmitRequest{}, false
	}
	return m.submits[len(m.submits)-1], true
}

func (m *Client) PollCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.polls)
}

func (m *Client) FaucetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.faucets
}
