package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/Kernlog/pump-sniper/internal/pump"
)

// MarketSnapshot is the derived market view of one token at one instant.
// It is rebuilt from scratch whenever new curve data arrives.
type MarketSnapshot struct {
	Mint         solana.PublicKey
	Curve        pump.BondingCurve
	MarketCap    uint64  // lamports
	PricePerUnit float64 // lamports per base token unit
	Timestamp    time.Time
	Volume       *uint64
}

// NewMarketSnapshot derives a snapshot from a curve read.
func NewMarketSnapshot(token TokenRecord, curve pump.BondingCurve, at time.Time) MarketSnapshot {
	mcap := curve.MarketCap()
	var price float64
	if curve.TokenTotalSupply > 0 {
		price = float64(mcap) / float64(curve.TokenTotalSupply)
	}
	return MarketSnapshot{
		Mint:         token.Mint,
		Curve:        curve,
		MarketCap:    mcap,
		PricePerUnit: price,
		Timestamp:    at,
	}
}

// Progress forwards to the curve.
func (s MarketSnapshot) Progress() float64 {
	return s.Curve.Progress()
}

// IsStale reports whether the snapshot is older than maxAge at now.
func (s MarketSnapshot) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.Timestamp) > maxAge
}
