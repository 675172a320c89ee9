package domain

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/Kernlog/pump-sniper/internal/pump"
)

// EventKind names an event variant.
type EventKind string

const (
	KindTokenCreated            EventKind = "token_created"
	KindBondingCurveUpdated     EventKind = "bonding_curve_updated"
	KindMarketCapUpdated        EventKind = "market_cap_updated"
	KindBuyTriggered            EventKind = "buy_triggered"
	KindBuyExecuted             EventKind = "buy_executed"
	KindBuyFailed               EventKind = "buy_failed"
	KindConnectionStatusChanged EventKind = "connection_status_changed"
	KindStatsUpdate             EventKind = "stats_update"
)

// Event is a message on the decision queue. The set of variants is closed:
// every variant dispatches to its own EventHandler method.
type Event interface {
	Kind() EventKind
	accept(ctx context.Context, h EventHandler) error
}

// EventHandler has one method per event variant. Adding a variant adds a
// method here, so every handler must name it.
type EventHandler interface {
	HandleTokenCreated(ctx context.Context, e TokenCreated) error
	HandleBondingCurveUpdated(ctx context.Context, e BondingCurveUpdated) error
	HandleMarketCapUpdated(ctx context.Context, e MarketCapUpdated) error
	HandleBuyTriggered(ctx context.Context, e BuyTriggered) error
	HandleBuyExecuted(ctx context.Context, e BuyExecuted) error
	HandleBuyFailed(ctx context.Context, e BuyFailed) error
	HandleConnectionStatusChanged(ctx context.Context, e ConnectionStatusChanged) error
	HandleStatsUpdate(ctx context.Context, e StatsUpdate) error
}

// Dispatch routes ev to the matching method of h.
func Dispatch(ctx context.Context, ev Event, h EventHandler) error {
	return ev.accept(ctx, h)
}

// IsCritical reports whether ev concerns a buy.
func IsCritical(ev Event) bool {
	switch ev.Kind() {
	case KindBuyTriggered, KindBuyExecuted, KindBuyFailed:
		return true
	default:
		return false
	}
}

// TokenCreated announces a newly created token.
type TokenCreated struct {
	Token TokenRecord
	Slot  uint64
}

// BondingCurveUpdated carries a fresh read of a curve account.
type BondingCurveUpdated struct {
	Address solana.PublicKey
	Curve   pump.BondingCurve
	Slot    uint64
}

// MarketCapUpdated is published for every snapshot the engine computes.
type MarketCapUpdated struct {
	Token    TokenRecord
	Snapshot MarketSnapshot
	USD      decimal.Decimal
}

// BuyTriggered asks the engine to buy Token for Amount lamports.
type BuyTriggered struct {
	Token       TokenRecord
	MarketCap   uint64
	Amount      uint64
	TriggeredAt time.Time
}

// BuyExecuted reports a submitted buy.
type BuyExecuted struct {
	Token          TokenRecord
	Signature      solana.Signature
	Amount         uint64
	ExpectedTokens uint64
	TriggeredAt    time.Time
	ExecutedAt     time.Time
}

// BuyFailed reports a buy that did not reach the network or was rejected.
type BuyFailed struct {
	Token       TokenRecord
	Amount      uint64
	Err         error
	TriggeredAt time.Time
	FailedAt    time.Time
}

// ConnectionStatusChanged reports stream connectivity.
type ConnectionStatusChanged struct {
	Connected bool
	Endpoint  string
	Reason    string
}

// StatsUpdate is a periodic summary of engine state.
type StatsUpdate struct {
	TokensTracked  int
	SuccessfulBuys int
	FailedBuys     int
	Uptime         time.Duration
}

func (TokenCreated) Kind() EventKind            { return KindTokenCreated }
func (BondingCurveUpdated) Kind() EventKind     { return KindBondingCurveUpdated }
func (MarketCapUpdated) Kind() EventKind        { return KindMarketCapUpdated }
func (BuyTriggered) Kind() EventKind            { return KindBuyTriggered }
func (BuyExecuted) Kind() EventKind             { return KindBuyExecuted }
func (BuyFailed) Kind() EventKind               { return KindBuyFailed }
func (ConnectionStatusChanged) Kind() EventKind { return KindConnectionStatusChanged }
func (StatsUpdate) Kind() EventKind             { return KindStatsUpdate }

func (e TokenCreated) accept(ctx context.Context, h EventHandler) error {
	return h.HandleTokenCreated(ctx, e)
}

func (e BondingCurveUpdated) accept(ctx context.Context, h EventHandler) error {
	return h.HandleBondingCurveUpdated(ctx, e)
}

func (e MarketCapUpdated) accept(ctx context.Context, h EventHandler) error {
	return h.HandleMarketCapUpdated(ctx, e)
}

func (e BuyTriggered) accept(ctx context.Context, h EventHandler) error {
	return h.HandleBuyTriggered(ctx, e)
}

func (e BuyExecuted) accept(ctx context.Context, h EventHandler) error {
	return h.HandleBuyExecuted(ctx, e)
}

func (e BuyFailed) accept(ctx context.Context, h EventHandler) error {
	return h.HandleBuyFailed(ctx, e)
}

func (e ConnectionStatusChanged) accept(ctx context.Context, h EventHandler) error {
	return h.HandleConnectionStatusChanged(ctx, e)
}

func (e StatsUpdate) accept(ctx context.Context, h EventHandler) error {
	return h.HandleStatsUpdate(ctx, e)
}
