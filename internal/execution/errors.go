package execution

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/Kernlog/pump-sniper/internal/solrpc"
)

// ErrInsufficientFunds is returned when the wallet cannot cover a buy.
var ErrInsufficientFunds = errors.New("insufficient wallet funds")

// RPCError reports an account read that failed on every attempt.
type RPCError struct {
	Address  solana.PublicKey
	Attempts int
	Err      error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("read %s: failed after %d attempts: %v", e.Address, e.Attempts, e.Err)
}

func (e *RPCError) Unwrap() error {
	return e.Err
}

// Cause classifies a submission failure.
type Cause string

const (
	// CauseNetwork means the request never produced a node response.
	CauseNetwork Cause = "network"
	// CauseSimulation means the node simulated the transaction and it failed.
	CauseSimulation Cause = "simulation"
	// CauseNodeRejected means the node refused the transaction for another reason.
	CauseNodeRejected Cause = "node_rejected"
)

// SubmissionError reports a failed send or simulate.
type SubmissionError struct {
	Cause Cause
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit transaction (%s): %v", e.Cause, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// classify wraps a sendTransaction or simulateTransaction failure.
func classify(err error) *SubmissionError {
	var rpcErr *solrpc.RPCError
	if errors.As(err, &rpcErr) {
		if rpcErr.Code == solrpc.CodeSendTransactionPreflightFailure {
			return &SubmissionError{Cause: CauseSimulation, Err: err}
		}
		return &SubmissionError{Cause: CauseNodeRejected, Err: err}
	}
	return &SubmissionError{Cause: CauseNetwork, Err: err}
}

// ErrorKind names err for journals and metrics.
func ErrorKind(err error) string {
	var (
		subErr *SubmissionError
		rpcErr *RPCError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &subErr):
		return "submission_" + string(subErr.Cause)
	case errors.As(err, &rpcErr):
		return "rpc"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	default:
		return kindOf(err)
	}
}
