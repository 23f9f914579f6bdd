package ledger

import (
	"context"
	"errors"
	"time"
)

// BaseUnitsPerCoin is the smallest-denomination scale of the ledger's native
// value; API amounts are whole coins, the wire speaks base units.
const BaseUnitsPerCoin = 1_000_000_000

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusUnknown   Status = "unknown"
)

var (
	// ErrUnavailable: transient transport/RPC failure; callers retry with
	// backoff up to a bounded attempt budget.
	ErrUnavailable = errors.New("ledger unavailable")
	// ErrUnsupportedOnMain: test funding requested on a production network.
	ErrUnsupportedOnMain = errors.New("operation not supported on production network")
)

// SubmitRequest carries one signed platform transfer to the ledger node.
// Credential is an opaque signing handle owned by the custodial account;
// key material itself lives with the external secret store.
type SubmitRequest struct {
	From       string
	To         string
	Amount     float64
	Credential string
}

type HistoryEntry struct {
	Reference string    `json:"reference"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
}

// Client is the thin adapter to the external ledger collaborator. Every call
// is a blocking I/O boundary; callers supply their own deadlines via ctx.
type Client interface {
	SubmitTransfer(ctx context.Context, req SubmitRequest) (reference string, err error)
	TransactionStatus(ctx context.Context, reference string) (Status, error)
	Balance(ctx context.Context, address string) (float64, error)
	History(ctx context.Context, address string, limit int) ([]HistoryEntry, error)
	// RequestTestFunds credits address from the network faucet. Test
	// networks only; production nodes reject the method.
	RequestTestFunds(ctx context.Context, address string, amount float64) (reference string, err error)
}
