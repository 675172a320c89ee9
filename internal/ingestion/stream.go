// Package ingestion subscribes to the pump program over Solana pubsub and
// turns its traffic into domain events.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/Kernlog/pump-sniper/internal/discovery"
	"github.com/Kernlog/pump-sniper/internal/domain"
	"github.com/Kernlog/pump-sniper/internal/observability"
	"github.com/Kernlog/pump-sniper/internal/pump"
	"github.com/Kernlog/pump-sniper/internal/solrpc"
)

// DefaultReconnectDelay is the pause after a stream failure before Run returns.
const DefaultReconnectDelay = 5 * time.Second

// State is the lifecycle of a Stream.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateStreaming
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ConnectionError reports a stream that could not be established or was lost.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("stream %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Sink receives published events. queue.Queue satisfies it.
type Sink interface {
	Push(domain.Event) error
}

// DialFunc opens a pubsub connection.
type DialFunc func(ctx context.Context) (solrpc.PubSub, error)

// StreamOptions contains configuration for creating a Stream.
type StreamOptions struct {
	Endpoint       string
	Dial           DialFunc
	Sink           Sink
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	ReconnectDelay time.Duration // Default: 5s
}

// Stream subscribes to pump accounts and transactions and publishes
// TokenCreated and BondingCurveUpdated events.
type Stream struct {
	endpoint string
	dial     DialFunc
	sink     Sink
	parser   *discovery.CreationParser
	logger   *zap.Logger
	metrics  *observability.Metrics
	delay    time.Duration

	state atomic.Int32
}

// NewStream creates a new stream.
func NewStream(opts StreamOptions) *Stream {
	delay := opts.ReconnectDelay
	if delay == 0 {
		delay = DefaultReconnectDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{
		endpoint: opts.Endpoint,
		dial:     opts.Dial,
		sink:     opts.Sink,
		parser:   discovery.NewCreationParser(),
		logger:   logger.With(zap.String("component", "stream")),
		metrics:  opts.Metrics,
		delay:    delay,
	}
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	return State(s.state.Load())
}

func (s *Stream) setState(state State) {
	s.state.Store(int32(state))
	s.metrics.SetStreamState(int(state))
}

// Run connects, subscribes and publishes until the context is cancelled or
// the connection fails. A failure is reported as *ConnectionError after the
// reconnect delay; resubscribing is left to the caller.
func (s *Stream) Run(ctx context.Context) error {
	s.setState(StateConnecting)
	s.logger.Info("connecting", zap.String("endpoint", s.endpoint))

	conn, err := s.dial(ctx)
	if err != nil {
		return s.fail(ctx, fmt.Errorf("dial: %w", err))
	}
	defer conn.Close()

	accounts, err := conn.ProgramSubscribe(ctx, pump.ProgramID, solrpc.ProgramSubscribeOpts{
		DataSize:   pump.BondingCurveAccountSize,
		Commitment: solrpc.CommitmentProcessed,
	})
	if err != nil {
		return s.fail(ctx, fmt.Errorf("program subscribe: %w", err))
	}

	txs, err := conn.TransactionSubscribe(ctx, solrpc.TransactionFilter{
		AccountInclude: []string{pump.ProgramID.String()},
		Commitment:     solrpc.CommitmentProcessed,
	})
	if err != nil {
		return s.fail(ctx, fmt.Errorf("transaction subscribe: %w", err))
	}

	s.setState(StateSubscribed)
	s.metrics.SetConnected(true)
	if err := s.publish(domain.ConnectionStatusChanged{Connected: true, Endpoint: s.endpoint}); err != nil {
		return err
	}
	s.logger.Info("subscribed", zap.String("program", pump.ProgramID.String()))

	s.setState(StateStreaming)
	for {
		select {
		case <-ctx.Done():
			s.setState(StateDisconnected)
			s.metrics.SetConnected(false)
			return ctx.Err()

		case <-conn.Done():
			return s.fail(ctx, connErr(conn))

		case n, ok := <-txs:
			if !ok {
				return s.fail(ctx, fmt.Errorf("transaction subscription closed: %w", connErr(conn)))
			}
			if err := s.handleTransaction(n); err != nil {
				return err
			}

		case n, ok := <-accounts:
			if !ok {
				return s.fail(ctx, fmt.Errorf("account subscription closed: %w", connErr(conn)))
			}
			if err := s.handleAccount(n); err != nil {
				return err
			}
		}
	}
}

func connErr(conn solrpc.PubSub) error {
	if err := conn.Err(); err != nil {
		return err
	}
	return errors.New("connection closed")
}

// fail publishes the disconnect, waits out the reconnect delay and returns
// the failure as *ConnectionError.
func (s *Stream) fail(ctx context.Context, cause error) error {
	if ctx.Err() != nil {
		s.setState(StateDisconnected)
		return ctx.Err()
	}

	s.setState(StateReconnecting)
	s.metrics.SetConnected(false)
	s.logger.Warn("stream failed",
		zap.String("endpoint", s.endpoint),
		zap.Duration("retry_in", s.delay),
		zap.Error(cause),
	)
	if err := s.publish(domain.ConnectionStatusChanged{Connected: false, Endpoint: s.endpoint, Reason: cause.Error()}); err != nil {
		s.setState(StateDisconnected)
		return err
	}

	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		s.setState(StateDisconnected)
		return ctx.Err()
	case <-timer.C:
	}

	s.setState(StateDisconnected)
	return &ConnectionError{Endpoint: s.endpoint, Err: cause}
}

func (s *Stream) handleTransaction(n solrpc.TransactionNotification) error {
	s.metrics.RecordTransaction(n.Slot)

	tx := n.Transaction
	if tx == nil || tx.Failed() || !discovery.IsCreationTransaction(tx) {
		return nil
	}

	record, err := s.parser.ParseTokenCreation(tx, tx.Signature)
	if err != nil {
		s.metrics.RecordDecodeError("creation")
		s.logger.Warn("skipping creation transaction",
			zap.String("signature", tx.Signature),
			zap.Uint64("slot", n.Slot),
			zap.Error(err),
		)
		return nil
	}

	s.metrics.RecordTokenDiscovered()
	s.logger.Info("token created",
		zap.String("mint", record.Mint.String()),
		zap.String("name", record.DisplayName()),
		zap.String("creator", record.Creator.String()),
		zap.Uint64("slot", n.Slot),
	)
	return s.publish(domain.TokenCreated{Token: record, Slot: n.Slot})
}

func (s *Stream) handleAccount(n solrpc.AccountNotification) error {
	s.metrics.RecordAccount(n.Slot)

	address, err := solana.PublicKeyFromBase58(n.Pubkey)
	if err != nil {
		s.metrics.RecordDecodeError("account_address")
		s.logger.Debug("bad account address", zap.String("pubkey", n.Pubkey), zap.Error(err))
		return nil
	}

	curve, err := pump.DecodeBondingCurve(n.Data)
	if err != nil {
		s.metrics.RecordDecodeError("bonding_curve")
		s.logger.Debug("dropping account update", zap.String("address", n.Pubkey), zap.Error(err))
		return nil
	}

	return s.publish(domain.BondingCurveUpdated{Address: address, Curve: curve, Slot: n.Slot})
}

func (s *Stream) publish(ev domain.Event) error {
	if err := s.sink.Push(ev); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind(), err)
	}
	return nil
}
