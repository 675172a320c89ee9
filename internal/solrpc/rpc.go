package solrpc

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// RPCClient is the subset of the Solana HTTP RPC the sniper uses.
type RPCClient interface {
	// GetAccountInfo returns raw account data or ErrAccountNotFound.
	GetAccountInfo(ctx context.Context, account solana.PublicKey) ([]byte, error)

	// GetBalance returns the lamport balance of an account.
	GetBalance(ctx context.Context, account solana.PublicKey) (uint64, error)

	// GetLatestBlockhash returns the most recent blockhash.
	GetLatestBlockhash(ctx context.Context) (solana.Hash, error)

	// SendTransaction submits a signed wire transaction.
	SendTransaction(ctx context.Context, wire []byte, opts SendOptions) (solana.Signature, error)

	// SimulateTransaction dry-runs a signed wire transaction.
	SimulateTransaction(ctx context.Context, wire []byte) (*SimulationResult, error)

	// GetTransaction retrieves a transaction by signature.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)
}

var _ RPCClient = (*HTTPClient)(nil)
