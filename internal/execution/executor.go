// Package execution builds, signs and submits pump buy transactions.
package execution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Kernlog/pump-sniper/internal/domain"
	"github.com/Kernlog/pump-sniper/internal/observability"
	"github.com/Kernlog/pump-sniper/internal/pda"
	"github.com/Kernlog/pump-sniper/internal/pump"
	"github.com/Kernlog/pump-sniper/internal/solrpc"
)

// DefaultRetryDelays is the account read schedule: three independent attempts.
var DefaultRetryDelays = []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond}

// FeeReserveLamports stays in the wallet after a buy for rent and fees.
const FeeReserveLamports uint64 = 10_000_000

// Config holds the trade parameters.
type Config struct {
	SlippageBps         uint64
	PriorityFeeLamports uint64
	ComputeUnitLimit    uint32
}

// Executor talks to the RPC node on behalf of the decision engine.
type Executor struct {
	rpc     solrpc.RPCClient
	cfg     Config
	delays  []time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// Option configures Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithRetryDelays replaces the account read schedule.
func WithRetryDelays(delays []time.Duration) Option {
	return func(e *Executor) {
		e.delays = delays
	}
}

// NewExecutor creates an Executor.
func NewExecutor(rpc solrpc.RPCClient, cfg Config, opts ...Option) *Executor {
	e := &Executor{
		rpc:    rpc,
		cfg:    cfg,
		delays: DefaultRetryDelays,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FetchAccountWithRetry reads address following the retry schedule.
// A missing account counts as a failed attempt.
func (e *Executor) FetchAccountWithRetry(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	var lastErr error
	for attempt, delay := range e.delays {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		if attempt > 0 {
			e.metrics.RecordRPCRetry("getAccountInfo")
		}

		start := time.Now()
		data, err := e.rpc.GetAccountInfo(ctx, address)
		e.metrics.RecordRPCLatency("getAccountInfo", time.Since(start))
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		e.logger.Debug("account read failed",
			zap.String("address", address.String()),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, &RPCError{Address: address, Attempts: len(e.delays), Err: lastErr}
}

// FetchBondingCurve reads and decodes a curve account.
func (e *Executor) FetchBondingCurve(ctx context.Context, address solana.PublicKey) (pump.BondingCurve, error) {
	data, err := e.FetchAccountWithRetry(ctx, address)
	if err != nil {
		return pump.BondingCurve{}, err
	}
	return pump.DecodeBondingCurve(data)
}

// FetchGlobal reads and decodes the global-config account.
func (e *Executor) FetchGlobal(ctx context.Context) (pump.Global, error) {
	address, err := pda.Global()
	if err != nil {
		return pump.Global{}, err
	}
	data, err := e.FetchAccountWithRetry(ctx, address)
	if err != nil {
		return pump.Global{}, err
	}
	return pump.DecodeGlobal(data)
}

// Receipt describes a submitted buy.
type Receipt struct {
	Signature      solana.Signature
	ExpectedTokens uint64
	MaxCost        uint64
}

// SimulationResult is the outcome of a dry-run buy.
type SimulationResult struct {
	ExpectedTokens uint64
	MaxCost        uint64
	UnitsConsumed  uint64
	Logs           []string

	// ExitLamports is what selling ExpectedTokens back would return right
	// after the buy, net of the protocol fee. ExitLiquid reports whether the
	// curve's real SOL could pay it out.
	ExitLamports uint64
	ExitLiquid   bool
}

type preparedBuy struct {
	wire     []byte
	expected uint64
	maxCost  uint64
	curve    pump.BondingCurve
	global   pump.Global
}

// ExecuteBuy buys token for amount lamports and returns as soon as the node
// accepts the transaction. Confirmation is not awaited.
func (e *Executor) ExecuteBuy(ctx context.Context, wallet solana.PrivateKey, token domain.TokenRecord, amount uint64) (Receipt, error) {
	prepared, err := e.prepareBuy(ctx, wallet, token, amount, true)
	if err != nil {
		return Receipt{}, err
	}

	maxRetries := uint(0)
	start := time.Now()
	sig, err := e.rpc.SendTransaction(ctx, prepared.wire, solrpc.SendOptions{
		SkipPreflight:       true,
		PreflightCommitment: solrpc.CommitmentProcessed,
		MaxRetries:          &maxRetries,
	})
	e.metrics.RecordRPCLatency("sendTransaction", time.Since(start))
	if err != nil {
		return Receipt{}, classify(err)
	}

	e.logger.Info("buy submitted",
		zap.String("mint", token.Mint.String()),
		zap.String("symbol", token.Symbol),
		zap.String("signature", sig.String()),
		zap.Uint64("lamports", amount),
		zap.Uint64("expected_tokens", prepared.expected),
	)

	return Receipt{Signature: sig, ExpectedTokens: prepared.expected, MaxCost: prepared.maxCost}, nil
}

// SimulateBuy builds the same transaction as ExecuteBuy and simulates it.
// The wallet balance is not checked.
func (e *Executor) SimulateBuy(ctx context.Context, wallet solana.PrivateKey, token domain.TokenRecord, amount uint64) (SimulationResult, error) {
	prepared, err := e.prepareBuy(ctx, wallet, token, amount, false)
	if err != nil {
		return SimulationResult{}, err
	}

	sim, err := e.rpc.SimulateTransaction(ctx, prepared.wire)
	if err != nil {
		return SimulationResult{}, classify(err)
	}

	result := SimulationResult{
		ExpectedTokens: prepared.expected,
		MaxCost:        prepared.maxCost,
		UnitsConsumed:  sim.UnitsConsumed,
		Logs:           sim.Logs,
	}
	result.ExitLamports, result.ExitLiquid = exitEstimate(prepared.curve, prepared.global, amount, prepared.expected)
	if sim.Err != nil {
		return result, &SubmissionError{Cause: CauseSimulation, Err: fmt.Errorf("simulation failed: %v", sim.Err)}
	}
	return result, nil
}

func (e *Executor) prepareBuy(ctx context.Context, wallet solana.PrivateKey, token domain.TokenRecord, amount uint64, checkFunds bool) (*preparedBuy, error) {
	user := wallet.PublicKey()

	var (
		global    pump.Global
		curve     pump.BondingCurve
		balance   uint64
		blockhash solana.Hash
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		global, err = e.FetchGlobal(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		curve, err = e.FetchBondingCurve(gctx, token.BondingCurve())
		return err
	})
	if checkFunds {
		g.Go(func() error {
			var err error
			balance, err = e.rpc.GetBalance(gctx, user)
			if err != nil {
				return fmt.Errorf("get balance: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		var err error
		blockhash, err = e.rpc.GetLatestBlockhash(gctx)
		if err != nil {
			return fmt.Errorf("get latest blockhash: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if curve.Complete {
		return nil, pump.ErrCurveComplete
	}
	expected, err := curve.BuyPrice(amount)
	if err != nil {
		return nil, err
	}
	if expected == 0 {
		return nil, pump.ErrInsufficientLiquidity
	}

	maxCost := pump.MaxCost(amount, e.cfg.SlippageBps)
	if checkFunds {
		need := saturatingAdd(saturatingAdd(maxCost, e.cfg.PriorityFeeLamports), FeeReserveLamports)
		if balance < need {
			return nil, fmt.Errorf("%w: balance %d, need %d", ErrInsufficientFunds, balance, need)
		}
	}

	creator := token.Creator
	if creator.IsZero() {
		creator = curve.Creator
	}
	accounts, err := pump.DeriveTradeAccounts(token.Mint, creator, global.FeeRecipient, user)
	if err != nil {
		return nil, err
	}

	instructions, err := e.buildInstructions(accounts, pump.BuyArgs{Amount: expected, MaxSolCost: maxCost})
	if err != nil {
		return nil, err
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(user))
	if err != nil {
		return nil, fmt.Errorf("assemble transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(user) {
			return &wallet
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	wire, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("serialize transaction: %w", err)
	}

	return &preparedBuy{wire: wire, expected: expected, maxCost: maxCost, curve: curve, global: global}, nil
}

// exitEstimate sells tokens back into the curve as it stands after buying
// them for lamports. The buy's SOL input is taken as lamports.
func exitEstimate(curve pump.BondingCurve, global pump.Global, lamports, tokens uint64) (uint64, bool) {
	after := curve
	after.VirtualSolReserves = saturatingAdd(after.VirtualSolReserves, lamports)
	after.RealSolReserves = saturatingAdd(after.RealSolReserves, lamports)
	after.VirtualTokenReserves -= min(tokens, after.VirtualTokenReserves)
	after.RealTokenReserves -= min(tokens, after.RealTokenReserves)

	out, err := after.SellPrice(tokens, global.FeeBasisPoints)
	if err != nil {
		return 0, false
	}
	return out, after.HasSufficientLiquidity(out)
}

// buildInstructions returns, in order: compute-unit price, compute-unit limit,
// idempotent token account creation and the buy.
func (e *Executor) buildInstructions(acc pump.TradeAccounts, args pump.BuyArgs) ([]solana.Instruction, error) {
	price, err := computebudget.NewSetComputeUnitPriceInstruction(
		PriorityFeeMicroLamports(e.cfg.PriorityFeeLamports, e.cfg.ComputeUnitLimit),
	).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("compute unit price: %w", err)
	}
	limit, err := computebudget.NewSetComputeUnitLimitInstruction(e.cfg.ComputeUnitLimit).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("compute unit limit: %w", err)
	}

	return []solana.Instruction{
		price,
		limit,
		pump.NewCreateATAIdempotentInstruction(acc.User, acc.AssociatedUser, acc.User, acc.Mint),
		pump.NewBuyInstruction(acc, args),
	}, nil
}

// PriorityFeeMicroLamports spreads a total priority fee over the compute-unit
// limit: fee * 1_000_000 / limit micro-lamports per unit.
func PriorityFeeMicroLamports(feeLamports uint64, computeUnitLimit uint32) uint64 {
	if computeUnitLimit == 0 {
		return 0
	}
	hi, lo := bits.Mul64(feeLamports, 1_000_000)
	if hi >= uint64(computeUnitLimit) {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, uint64(computeUnitLimit))
	return q
}

func saturatingAdd(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

func kindOf(err error) string {
	var decodeErr *pump.DecodeError
	switch {
	case errors.Is(err, pump.ErrCurveComplete):
		return "curve_complete"
	case errors.Is(err, pump.ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.As(err, &decodeErr):
		return "decode"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "other"
	}
}
