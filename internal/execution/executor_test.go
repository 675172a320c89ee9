package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kernlog/pump-sniper/internal/domain"
	"github.com/Kernlog/pump-sniper/internal/pda"
	"github.com/Kernlog/pump-sniper/internal/pump"
	"github.com/Kernlog/pump-sniper/internal/solrpc"
	"github.com/Kernlog/pump-sniper/internal/solrpc/stub"
)

var (
	testMint         = solana.MustPublicKeyFromBase58("7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr")
	testCreator      = solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	testFeeRecipient = solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
	computeBudgetID  = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")
)

var fastRetry = WithRetryDelays([]time.Duration{0, time.Millisecond, 2 * time.Millisecond})

func testConfig() Config {
	return Config{SlippageBps: 500, PriorityFeeLamports: 5_000_000, ComputeUnitLimit: 200_000}
}

func scenarioCurve() pump.BondingCurve {
	return pump.BondingCurve{
		VirtualTokenReserves: 1_000_000_000,
		VirtualSolReserves:   30_000_000_000,
		RealTokenReserves:    800_000_000,
		TokenTotalSupply:     1_000_000_000,
		Creator:              testCreator,
	}
}

type fixture struct {
	rpc    *stub.RPCClient
	wallet solana.PrivateKey
	token  domain.TokenRecord
	global solana.PublicKey
}

func newFixture(t *testing.T, curve pump.BondingCurve) *fixture {
	t.Helper()

	wallet, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	token, err := domain.NewTokenRecord(testMint, pump.CreateArgs{
		Name: "Test", Symbol: "TST", URI: "https://x", Creator: testCreator,
	}, "sig", time.Unix(1700000000, 0))
	require.NoError(t, err)

	global, err := pda.Global()
	require.NoError(t, err)

	globalData, err := pump.Global{Initialized: true, FeeRecipient: testFeeRecipient, FeeBasisPoints: 100}.Encode()
	require.NoError(t, err)
	curveData, err := curve.Encode()
	require.NoError(t, err)

	rpc := stub.NewRPCClient()
	rpc.SetAccount(global, globalData)
	rpc.SetAccount(token.BondingCurve(), curveData)
	rpc.Balances[wallet.PublicKey()] = 2 * solana.LAMPORTS_PER_SOL
	rpc.Blockhash = solana.Hash{1, 2, 3}
	rpc.SendSignature = solana.Signature{9, 9, 9}

	return &fixture{rpc: rpc, wallet: wallet, token: token, global: global}
}

func TestFetchAccountWithRetry_SucceedsOnThirdAttempt(t *testing.T) {
	f := newFixture(t, scenarioCurve())
	f.rpc.FailAccount(f.token.BondingCurve(), 2)

	exec := NewExecutor(f.rpc, testConfig(), fastRetry)
	curve, err := exec.FetchBondingCurve(context.Background(), f.token.BondingCurve())
	require.NoError(t, err)
	assert.Equal(t, scenarioCurve(), curve)
	assert.Equal(t, 3, f.rpc.AccountCalls(f.token.BondingCurve()))
}

func TestFetchAccountWithRetry_ExhaustsSchedule(t *testing.T) {
	f := newFixture(t, scenarioCurve())
	f.rpc.FailAccount(f.token.BondingCurve(), 5)

	exec := NewExecutor(f.rpc, testConfig())
	start := time.Now()
	_, err := exec.FetchAccountWithRetry(context.Background(), f.token.BondingCurve())
	elapsed := time.Since(start)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr), "got %v", err)
	assert.Equal(t, 3, rpcErr.Attempts)
	assert.Equal(t, f.token.BondingCurve(), rpcErr.Address)
	assert.Equal(t, 3, f.rpc.AccountCalls(f.token.BondingCurve()))
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
}

func TestFetchAccountWithRetry_MissingAccountIsRetried(t *testing.T) {
	f := newFixture(t, scenarioCurve())
	missing := solana.NewWallet().PublicKey()

	exec := NewExecutor(f.rpc, testConfig(), fastRetry)
	_, err := exec.FetchAccountWithRetry(context.Background(), missing)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.ErrorIs(t, err, solrpc.ErrAccountNotFound)
	assert.Equal(t, 3, f.rpc.AccountCalls(missing))
}

func TestFetchAccountWithRetry_ContextCancelled(t *testing.T) {
	f := newFixture(t, scenarioCurve())
	f.rpc.FailAccount(f.token.BondingCurve(), 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExecutor(f.rpc, testConfig()).FetchAccountWithRetry(ctx, f.token.BondingCurve())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchBondingCurve_DecodeErrorNotRetried(t *testing.T) {
	f := newFixture(t, scenarioCurve())
	f.rpc.SetAccount(f.token.BondingCurve(), []byte{1, 2, 3})

	_, err := NewExecutor(f.rpc, testConfig(), fastRetry).FetchBondingCurve(context.Background(), f.token.BondingCurve())
	var decodeErr *pump.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, 1, f.rpc.AccountCalls(f.token.BondingCurve()))
}

func TestExecuteBuy_Submits(t *testing.T) {
	f := newFixture(t, scenarioCurve())
	exec := NewExecutor(f.rpc, testConfig(), fastRetry)

	receipt, err := exec.ExecuteBuy(context.Background(), f.wallet, f.token, 1_000_000_000)
	require.NoError(t, err)

	assert.Equal(t, f.rpc.SendSignature, receipt.Signature)
	assert.Equal(t, uint64(32_258_064), receipt.ExpectedTokens)
	assert.Equal(t, uint64(1_050_000_000), receipt.MaxCost)

	opts := f.rpc.SendOptions()
	require.Len(t, opts, 1)
	assert.True(t, opts[0].SkipPreflight)
	assert.Equal(t, solrpc.CommitmentProcessed, opts[0].PreflightCommitment)
	require.NotNil(t, opts[0].MaxRetries)
	assert.Zero(t, *opts[0].MaxRetries)

	sent := f.rpc.Sent()
	require.Len(t, sent, 1)
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(sent[0]))
	require.NoError(t, err)

	assert.Equal(t, solana.Hash{1, 2, 3}, tx.Message.RecentBlockhash)
	assert.Equal(t, f.wallet.PublicKey(), tx.Message.AccountKeys[0], "wallet pays")
	require.Len(t, tx.Signatures, 1)
	require.NoError(t, tx.VerifySignatures())

	require.Len(t, tx.Message.Instructions, 4)
	programs := make([]solana.PublicKey, 0, 4)
	for _, ix := range tx.Message.Instructions {
		programs = append(programs, tx.Message.AccountKeys[ix.ProgramIDIndex])
	}
	assert.Equal(t, []solana.PublicKey{
		computeBudgetID,
		computeBudgetID,
		pump.AssociatedTokenProgramID,
		pump.ProgramID,
	}, programs)

	buy, err := pump.DecodeBuyArgs(tx.Message.Instructions[3].Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(32_258_064), buy.Amount)
	assert.Equal(t, uint64(1_050_000_000), buy.MaxSolCost)

	// Fee recipient comes from the global account.
	feeIdx := tx.Message.Instructions[3].Accounts[1]
	assert.Equal(t, testFeeRecipient, tx.Message.AccountKeys[feeIdx])
}

func TestExecuteBuy_Guards(t *testing.T) {
	t.Run("complete curve", func(t *testing.T) {
		curve := scenarioCurve()
		curve.Complete = true
		f := newFixture(t, curve)

		_, err := NewExecutor(f.rpc, testConfig(), fastRetry).ExecuteBuy(context.Background(), f.wallet, f.token, 1_000_000_000)
		assert.ErrorIs(t, err, pump.ErrCurveComplete)
		assert.Empty(t, f.rpc.Sent())
	})

	t.Run("no tokens left", func(t *testing.T) {
		curve := scenarioCurve()
		curve.RealTokenReserves = 0
		f := newFixture(t, curve)

		_, err := NewExecutor(f.rpc, testConfig(), fastRetry).ExecuteBuy(context.Background(), f.wallet, f.token, 1_000_000_000)
		assert.ErrorIs(t, err, pump.ErrInsufficientLiquidity)
		assert.Empty(t, f.rpc.Sent())
	})

	t.Run("insufficient funds", func(t *testing.T) {
		f := newFixture(t, scenarioCurve())
		// max cost 1.05 SOL + 0.005 fee + 0.01 reserve, one lamport short.
		f.rpc.Balances[f.wallet.PublicKey()] = 1_064_999_999

		_, err := NewExecutor(f.rpc, testConfig(), fastRetry).ExecuteBuy(context.Background(), f.wallet, f.token, 1_000_000_000)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Empty(t, f.rpc.Sent())
	})

	t.Run("exact funds", func(t *testing.T) {
		f := newFixture(t, scenarioCurve())
		f.rpc.Balances[f.wallet.PublicKey()] = 1_065_000_000

		_, err := NewExecutor(f.rpc, testConfig(), fastRetry).ExecuteBuy(context.Background(), f.wallet, f.token, 1_000_000_000)
		assert.NoError(t, err)
	})
}

func TestExecuteBuy_GlobalFetchFailureAborts(t *testing.T) {
	f := newFixture(t, scenarioCurve())
	f.rpc.FailAccount(f.global, 10)

	_, err := NewExecutor(f.rpc, testConfig(), fastRetry).ExecuteBuy(context.Background(), f.wallet, f.token, 1_000_000_000)
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr), "got %v", err)
	assert.Equal(t, f.global, rpcErr.Address)
	assert.Empty(t, f.rpc.Sent())
}

func TestExecuteBuy_SubmissionClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		cause Cause
	}{
		{"preflight failure", &solrpc.RPCError{Code: solrpc.CodeSendTransactionPreflightFailure, Message: "sim failed"}, CauseSimulation},
		{"blockhash not found", &solrpc.RPCError{Code: solrpc.CodeBlockhashNotFound, Message: "blockhash"}, CauseNodeRejected},
		{"transport", &solrpc.TransportError{Method: "sendTransaction", Err: errors.New("connection reset")}, CauseNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, scenarioCurve())
			f.rpc.SendErr = tt.err

			_, err := NewExecutor(f.rpc, testConfig(), fastRetry).ExecuteBuy(context.Background(), f.wallet, f.token, 1_000_000_000)
			var subErr *SubmissionError
			require.True(t, errors.As(err, &subErr), "got %v", err)
			assert.Equal(t, tt.cause, subErr.Cause)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, "submission_"+string(tt.cause), ErrorKind(err))
		})
	}
}

func TestSimulateBuy(t *testing.T) {
	f := newFixture(t, scenarioCurve())
	f.rpc.Balances[f.wallet.PublicKey()] = 0
	f.rpc.Simulation = &solrpc.SimulationResult{UnitsConsumed: 61_000, Logs: []string{"Program log: Instruction: Buy"}}

	result, err := NewExecutor(f.rpc, testConfig(), fastRetry).SimulateBuy(context.Background(), f.wallet, f.token, 1_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(32_258_064), result.ExpectedTokens)
	assert.Equal(t, uint64(61_000), result.UnitsConsumed)
	assert.Len(t, result.Logs, 1)
	// 32_258_064 * 31e9 / 1e9 = 999_999_984, less the 1% fee.
	assert.Equal(t, uint64(989_999_985), result.ExitLamports)
	assert.True(t, result.ExitLiquid)
	assert.Empty(t, f.rpc.Sent(), "simulation never submits")
}

func TestExitEstimate(t *testing.T) {
	g := pump.Global{FeeBasisPoints: 100}

	out, ok := exitEstimate(scenarioCurve(), g, 1_000_000_000, 32_258_064)
	assert.Equal(t, uint64(989_999_985), out)
	assert.True(t, ok)

	complete := scenarioCurve()
	complete.Complete = true
	out, ok = exitEstimate(complete, g, 1_000_000_000, 32_258_064)
	assert.Zero(t, out)
	assert.False(t, ok)

	// Without the buy's SOL the curve holds no real SOL to pay out.
	out, ok = exitEstimate(scenarioCurve(), g, 0, 32_258_064)
	assert.Positive(t, out)
	assert.False(t, ok)
}

func TestSimulateBuy_Failure(t *testing.T) {
	f := newFixture(t, scenarioCurve())
	f.rpc.Simulation = &solrpc.SimulationResult{Err: map[string]interface{}{"InstructionError": []interface{}{3, "Custom"}}}

	_, err := NewExecutor(f.rpc, testConfig(), fastRetry).SimulateBuy(context.Background(), f.wallet, f.token, 1_000_000_000)
	var subErr *SubmissionError
	require.True(t, errors.As(err, &subErr))
	assert.Equal(t, CauseSimulation, subErr.Cause)
}

func TestPriorityFeeMicroLamports(t *testing.T) {
	assert.Equal(t, uint64(25_000_000), PriorityFeeMicroLamports(5_000_000, 200_000))
	assert.Equal(t, uint64(5), PriorityFeeMicroLamports(1, 200_000))
	assert.Zero(t, PriorityFeeMicroLamports(5_000_000, 0))
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "curve_complete", ErrorKind(pump.ErrCurveComplete))
	assert.Equal(t, "insufficient_liquidity", ErrorKind(pump.ErrInsufficientLiquidity))
	assert.Equal(t, "insufficient_funds", ErrorKind(ErrInsufficientFunds))
	assert.Equal(t, "rpc", ErrorKind(&RPCError{Attempts: 3, Err: errors.New("x")}))
	assert.Equal(t, "other", ErrorKind(errors.New("boom")))
}
