package solrpc

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// PubSub is the Solana WebSocket subscription interface.
type PubSub interface {
	// ProgramSubscribe streams updates of accounts owned by program.
	ProgramSubscribe(ctx context.Context, program solana.PublicKey, opts ProgramSubscribeOpts) (<-chan AccountNotification, error)

	// TransactionSubscribe streams transactions matching filter.
	TransactionSubscribe(ctx context.Context, filter TransactionFilter) (<-chan TransactionNotification, error)

	// Done is closed once the connection has failed or been closed.
	Done() <-chan struct{}

	// Err returns the error that closed Done.
	Err() error

	// Close closes the WebSocket connection.
	Close() error
}

// ProgramSubscribeOpts filters a program subscription.
type ProgramSubscribeOpts struct {
	// DataSize keeps only accounts of exactly this many bytes. Zero disables the filter.
	DataSize   uint64
	Commitment string
}

// TransactionFilter filters a transaction subscription.
type TransactionFilter struct {
	AccountInclude []string
	IncludeVote    bool
	IncludeFailed  bool
	Commitment     string
}

// AccountNotification is one account update.
type AccountNotification struct {
	Slot     uint64
	Pubkey   string
	Owner    string
	Lamports uint64
	Data     []byte
}

// TransactionNotification is one streamed transaction.
type TransactionNotification struct {
	Slot        uint64
	Transaction *Transaction
}
