package ledger

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

// ProductionNetwork is the network name on which faucet funding is refused.
const ProductionNetwork = "mainnet"

// RPCClient talks JSON-RPC to the ledger node. It is deliberately thin:
// no retries, no queuing, no state. Those live in the settlement engine.
type RPCClient struct {
	c            *rpc.Client
	network      string
	explorerBase string
}

func Dial(ctx context.Context, endpoint, network, explorerBase string) (*RPCClient, error) {
	c, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrUnavailable, endpoint, err)
	}
	return &RPCClient{c: c, network: network, explorerBase: strings.TrimRight(explorerBase, "/")}, nil
}

func (r *RPCClient) Close() { r.c.Close() }

func (r *RPCClient) Network() string { return r.network }

func (r *RPCClient) IsProduction() bool { return r.network == ProductionNetwork }

// ExplorerTxURL renders the public explorer link for a ledger reference.
func (r *RPCClient) ExplorerTxURL(reference string) string {
	if r.explorerBase == "" || reference == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s?cluster=%s", r.explorerBase, reference, r.network)
}

func toBaseUnits(amount float64) uint64 {
	return uint64(math.Round(amount * BaseUnitsPerCoin))
}

func fromBaseUnits(units uint64) float64 {
	return float64(units) / BaseUnitsPerCoin
}

type submitParams struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Units      uint64 `json:"units"`
	Credential string `json:"credential"`
}

func (r *RPCClient) SubmitTransfer(ctx context.Context, req SubmitRequest) (string, error) {
	var reference string
	p := submitParams{From: req.From, To: req.To, Units: toBaseUnits(req.Amount), Credential: req.Credential}
	if err := r.c.CallContext(ctx, &reference, "submitTransfer", p); err != nil {
		return "", fmt.Errorf("%w: submitTransfer: %v", ErrUnavailable, err)
	}
	return reference, nil
}

func (r *RPCClient) TransactionStatus(ctx context.Context, reference string) (Status, error) {
	var raw string
	if err := r.c.CallContext(ctx, &raw, "getTransactionStatus", reference); err != nil {
		return StatusUnknown, fmt.Errorf("%w: getTransactionStatus: %v", ErrUnavailable, err)
	}
	switch Status(raw) {
	case StatusPending, StatusConfirmed, StatusFailed:
		return Status(raw), nil
	default:
		return StatusUnknown, nil
	}
}

func (r *RPCClient) Balance(ctx context.Context, address string) (float64, error) {
	var units uint64
	if err := r.c.CallContext(ctx, &units, "getBalance", address); err != nil {
		return 0, fmt.Errorf("%w: getBalance: %v", ErrUnavailable, err)
	}
	return fromBaseUnits(units), nil
}

type historyEntryWire struct {
	Reference string `json:"reference"`
	BlockTime int64  `json:"block_time"`
	Status    string `json:"status"`
}

func (r *RPCClient) History(ctx context.Context, address string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	var raw []historyEntryWire
	if err := r.c.CallContext(ctx, &raw, "getTransactionHistory", address, limit); err != nil {
		return nil, fmt.Errorf("%w: getTransactionHistory: %v", ErrUnavailable, err)
	}
	out := make([]HistoryEntry, 0, len(raw))
	for _, e := range raw {
		st := Status(e.Status)
		switch st {
		case StatusPending, StatusConfirmed, StatusFailed:
		default:
			st = StatusUnknown
		}
		out = append(out, HistoryEntry{
			Reference: e.Reference,
			Timestamp: time.Unix(e.BlockTime, 0).UTC(),
			Status:    st,
		})
	}
	return out, nil
}

func (r *RPCClient) RequestTestFunds(ctx context.Context, address string, amount float64) (string, error) {
	if r.IsProduction() {
		return "", ErrUnsupportedOnMain
	}
	var reference string
	if err := r.c.CallContext(ctx, &reference, "requestAirdrop", address, toBaseUnits(amount)); err != nil {
		return "", fmt.Errorf("%w: requestAirdrop: %v", ErrUnavailable, err)
	}
	return reference, nil
}
