package domain

// MarketCapPoint is one computed market snapshot.
// Corresponds to the market_snapshots table in ClickHouse.
type MarketCapPoint struct {
	SnapshotID           string // deterministic hash of mint, timestamp and market cap
	Mint                 string
	TimestampMs          int64
	MarketCapLamports    uint64
	MarketCapUSD         float64
	PricePerUnit         float64 // lamports per base unit
	Progress             float64 // percent of supply sold
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	RealSolReserves      uint64
	RealTokenReserves    uint64
	Complete             bool
}

// NewMarketCapPoint flattens a market-cap event. SnapshotID is left to the caller.
func NewMarketCapPoint(e MarketCapUpdated) *MarketCapPoint {
	s := e.Snapshot
	usd, _ := e.USD.Float64()
	return &MarketCapPoint{
		Mint:                 s.Mint.String(),
		TimestampMs:          s.Timestamp.UnixMilli(),
		MarketCapLamports:    s.MarketCap,
		MarketCapUSD:         usd,
		PricePerUnit:         s.PricePerUnit,
		Progress:             s.Progress(),
		VirtualSolReserves:   s.Curve.VirtualSolReserves,
		VirtualTokenReserves: s.Curve.VirtualTokenReserves,
		RealSolReserves:      s.Curve.RealSolReserves,
		RealTokenReserves:    s.Curve.RealTokenReserves,
		Complete:             s.Curve.Complete,
	}
}
