// Package stub provides in-memory fakes of the solrpc interfaces for tests.
package stub

import (
	"context"
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/Kernlog/pump-sniper/internal/solrpc"
)

// RPCClient implements solrpc.RPCClient for testing.
// Account reads can be made to fail a fixed number of times before succeeding.
type RPCClient struct {
	mu sync.Mutex

	Accounts  map[solana.PublicKey][]byte
	Balances  map[solana.PublicKey]uint64
	Parsed    map[string]*solrpc.Transaction
	Blockhash solana.Hash

	// AccountFailures maps an address to the number of reads that fail with AccountErr.
	AccountFailures map[solana.PublicKey]int
	AccountErr      error

	// SendErr, when set, is returned by SendTransaction.
	SendErr error
	// SendSignature is returned by a successful SendTransaction.
	SendSignature solana.Signature
	// Simulation is returned by SimulateTransaction.
	Simulation *solrpc.SimulationResult

	accountCalls map[solana.PublicKey]int
	sent         [][]byte
	sendOpts     []solrpc.SendOptions
}

var _ solrpc.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts:        make(map[solana.PublicKey][]byte),
		Balances:        make(map[solana.PublicKey]uint64),
		Parsed:          make(map[string]*solrpc.Transaction),
		AccountFailures: make(map[solana.PublicKey]int),
		AccountErr:      errors.New("stub: account read failed"),
		accountCalls:    make(map[solana.PublicKey]int),
	}
}

// SetAccount stores raw account data.
func (c *RPCClient) SetAccount(addr solana.PublicKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[addr] = data
}

// FailAccount makes the next n reads of addr fail.
func (c *RPCClient) FailAccount(addr solana.PublicKey, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AccountFailures[addr] = n
}

// GetAccountInfo returns stored account data or solrpc.ErrAccountNotFound.
func (c *RPCClient) GetAccountInfo(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.accountCalls[addr]++
	if n := c.AccountFailures[addr]; n > 0 {
		c.AccountFailures[addr] = n - 1
		return nil, c.AccountErr
	}
	data, ok := c.Accounts[addr]
	if !ok {
		return nil, solrpc.ErrAccountNotFound
	}
	return append([]byte(nil), data...), nil
}

// AccountCalls returns how many times addr was read.
func (c *RPCClient) AccountCalls(addr solana.PublicKey) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountCalls[addr]
}

// GetBalance returns the stored balance (zero when unset).
func (c *RPCClient) GetBalance(ctx context.Context, addr solana.PublicKey) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Balances[addr], nil
}

// GetLatestBlockhash returns Blockhash.
func (c *RPCClient) GetLatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if err := ctx.Err(); err != nil {
		return solana.Hash{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Blockhash, nil
}

// SendTransaction records the wire transaction and returns SendSignature or SendErr.
func (c *RPCClient) SendTransaction(ctx context.Context, wire []byte, opts solrpc.SendOptions) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sent = append(c.sent, append([]byte(nil), wire...))
	c.sendOpts = append(c.sendOpts, opts)
	if c.SendErr != nil {
		return solana.Signature{}, c.SendErr
	}
	return c.SendSignature, nil
}

// Sent returns the wire transactions submitted so far.
func (c *RPCClient) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

// SendOptions returns the options passed to each SendTransaction call.
func (c *RPCClient) SendOptions() []solrpc.SendOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]solrpc.SendOptions(nil), c.sendOpts...)
}

// SimulateTransaction returns Simulation, or an empty successful result.
func (c *RPCClient) SimulateTransaction(ctx context.Context, wire []byte) (*solrpc.SimulationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Simulation != nil {
		return c.Simulation, nil
	}
	return &solrpc.SimulationResult{}, nil
}

// GetTransaction returns a stored parsed transaction, or nil when unknown.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solrpc.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Parsed[signature], nil
}
