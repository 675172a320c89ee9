// Command simulate dry-runs a pump buy for one mint without submitting it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/Kernlog/pump-sniper/internal/config"
	"github.com/Kernlog/pump-sniper/internal/discovery"
	"github.com/Kernlog/pump-sniper/internal/domain"
	"github.com/Kernlog/pump-sniper/internal/execution"
	"github.com/Kernlog/pump-sniper/internal/logger"
	"github.com/Kernlog/pump-sniper/internal/pricing"
	"github.com/Kernlog/pump-sniper/internal/pump"
	"github.com/Kernlog/pump-sniper/internal/solrpc"
)

func main() {
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before parsing the environment")
	mintFlag := flag.String("mint", "", "Token mint to simulate a buy for")
	signature := flag.String("signature", "", "Creation transaction signature (resolves name, symbol and creator)")
	amount := flag.Uint64("amount", 0, "Buy amount in lamports (default BUY_AMOUNT_LAMPORTS)")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.RPCEndpoint == "" {
		fmt.Fprintln(os.Stderr, "RPC_ENDPOINT is required")
		os.Exit(1)
	}
	if *mintFlag == "" && *signature == "" {
		fmt.Fprintln(os.Stderr, "one of -mint or -signature is required")
		os.Exit(1)
	}
	if *amount == 0 {
		*amount = cfg.BuyAmountLamports
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, cfg, log, *mintFlag, *signature, *amount); err != nil {
		log.Error("simulation failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, mintStr, signature string, amount uint64) error {
	wallet, err := cfg.Wallet()
	if err != nil {
		wallet = solana.NewWallet().PrivateKey
		log.Warn("no usable wallet configured, simulating with an ephemeral key", zap.Error(err))
	}

	rpc := solrpc.NewHTTPClient(cfg.RPCEndpoint)
	token, err := resolveToken(ctx, rpc, mintStr, signature)
	if err != nil {
		return err
	}

	executor := execution.NewExecutor(rpc, execution.Config{
		SlippageBps:         cfg.MaxSlippageBps,
		PriorityFeeLamports: cfg.PriorityFeeLamports,
		ComputeUnitLimit:    cfg.ComputeUnitLimit,
	}, execution.WithLogger(log))

	prices := pricing.NewService(
		pricing.NewCoinGecko(cfg.Price.APIURL, cfg.Price.Timeout),
		pricing.NewCache(cfg.Price.CacheTTL),
		cfg.Price.Timeout,
		pricing.WithLogger(log),
	)

	fmt.Printf("Token:          %s\n", token.DisplayName())
	fmt.Printf("Mint:           %s\n", token.Mint)
	fmt.Printf("Bonding curve:  %s\n", token.BondingCurve())
	fmt.Printf("Wallet:         %s\n", wallet.PublicKey())
	fmt.Printf("Amount:         %d lamports\n", amount)

	curve, err := executor.FetchBondingCurve(ctx, token.BondingCurve())
	if errors.Is(err, solrpc.ErrAccountNotFound) {
		return estimateFromGlobal(ctx, executor, prices, token, amount)
	}
	if err != nil {
		return err
	}

	mcap := curve.MarketCap()
	fmt.Printf("Market cap:     %d lamports%s\n", mcap, usdSuffix(ctx, prices, mcap))
	fmt.Printf("Progress:       %.2f%%\n", curve.Progress())
	fmt.Printf("Complete:       %t\n", curve.Complete)

	result, err := executor.SimulateBuy(ctx, wallet, token, amount)
	if result.MaxCost > 0 {
		fmt.Printf("Expected out:   %d base units\n", result.ExpectedTokens)
		fmt.Printf("Max cost:       %d lamports\n", result.MaxCost)
		fmt.Printf("Units consumed: %d\n", result.UnitsConsumed)
		fmt.Printf("Exit estimate:  %d lamports (liquid: %t)\n", result.ExitLamports, result.ExitLiquid)
		for _, line := range result.Logs {
			fmt.Printf("  %s\n", line)
		}
	}
	if err != nil {
		return fmt.Errorf("simulate (%s): %w", execution.ErrorKind(err), err)
	}
	fmt.Println("Simulation succeeded")
	return nil
}

// resolveToken builds the token record from its creation transaction when a
// signature is given, otherwise from the mint alone.
func resolveToken(ctx context.Context, rpc solrpc.RPCClient, mintStr, signature string) (domain.TokenRecord, error) {
	if signature != "" {
		tx, err := rpc.GetTransaction(ctx, signature)
		if err != nil {
			return domain.TokenRecord{}, fmt.Errorf("get transaction %s: %w", signature, err)
		}
		token, err := discovery.NewCreationParser().ParseTokenCreation(tx, signature)
		if err != nil {
			return domain.TokenRecord{}, fmt.Errorf("parse creation %s: %w", signature, err)
		}
		if mintStr != "" && token.Mint.String() != mintStr {
			return domain.TokenRecord{}, fmt.Errorf("transaction %s created %s, not %s", signature, token.Mint, mintStr)
		}
		return token, nil
	}

	mint, err := solana.PublicKeyFromBase58(mintStr)
	if err != nil {
		return domain.TokenRecord{}, fmt.Errorf("invalid mint %q: %w", mintStr, err)
	}
	return domain.NewTokenRecord(mint, pump.CreateArgs{Name: "unknown", Symbol: "?"}, "", time.Now())
}

// estimateFromGlobal prices a buy against a fresh curve when the mint has
// no curve account yet.
func estimateFromGlobal(ctx context.Context, executor *execution.Executor, prices *pricing.Service, token domain.TokenRecord, amount uint64) error {
	global, err := executor.FetchGlobal(ctx)
	if err != nil {
		return err
	}
	curve := global.InitialCurve(token.Creator)
	mcap := curve.MarketCap()
	fmt.Println("Bonding curve account not found, estimating from global defaults")
	fmt.Printf("Initial market cap: %d lamports%s\n", mcap, usdSuffix(ctx, prices, mcap))
	fmt.Printf("Progress:           %.2f%%\n", curve.Progress())
	fmt.Printf("Expected out:       %d base units\n", global.InitialBuyPrice(amount))
	fmt.Printf("Fee:                %d lamports\n", global.CalculateFee(amount))
	return nil
}

func usdSuffix(ctx context.Context, prices *pricing.Service, lamports uint64) string {
	usd, err := prices.MarketCapUSD(ctx, lamports)
	if err != nil {
		return ""
	}
	return fmt.Sprintf(" ($%s)", usd.StringFixed(2))
}
