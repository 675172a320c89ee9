package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kernlog/pump-sniper/internal/pda"
	"github.com/Kernlog/pump-sniper/internal/pump"
)

var testMint = solana.MustPublicKeyFromBase58("8VfUQdY8S5DFnCPXUbP8hTxdEM1wWYbYoU9p1aoPpump")

func newTestToken(t *testing.T) TokenRecord {
	t.Helper()
	rec, err := NewTokenRecord(testMint, pump.CreateArgs{Name: "Pepe", Symbol: "PEPE", URI: "ipfs://x"}, "sig1", time.Unix(1_700_000_000, 0))
	require.NoError(t, err)
	return rec
}

func TestNewTokenRecord_DerivesCurve(t *testing.T) {
	rec := newTestToken(t)

	want, err := pda.BondingCurve(testMint)
	require.NoError(t, err)
	assert.Equal(t, want, rec.BondingCurve())
	assert.Equal(t, "Pepe (PEPE)", rec.DisplayName())
	assert.Equal(t, time.Minute, rec.Age(rec.CreatedAt.Add(time.Minute)))
}

func TestNewMarketSnapshot(t *testing.T) {
	rec := newTestToken(t)
	curve := pump.BondingCurve{
		VirtualTokenReserves: 1_000_000_000,
		VirtualSolReserves:   30_000_000_000,
		RealTokenReserves:    800_000_000,
		TokenTotalSupply:     1_000_000_000,
	}
	at := time.Unix(1_700_000_100, 0)

	snap := NewMarketSnapshot(rec, curve, at)
	assert.Equal(t, testMint, snap.Mint)
	assert.Equal(t, uint64(30_000_000_000), snap.MarketCap)
	assert.InDelta(t, 30.0, snap.PricePerUnit, 1e-9)
	assert.InDelta(t, 20.0, snap.Progress(), 1e-9)
	assert.False(t, snap.IsStale(at.Add(time.Second), time.Minute))
	assert.True(t, snap.IsStale(at.Add(2*time.Minute), time.Minute))

	curve.TokenTotalSupply = 0
	assert.Zero(t, NewMarketSnapshot(rec, curve, at).PricePerUnit)
}

// recordingHandler remembers which method was invoked.
type recordingHandler struct {
	got []EventKind
}

func (h *recordingHandler) HandleTokenCreated(context.Context, TokenCreated) error {
	h.got = append(h.got, KindTokenCreated)
	return nil
}

func (h *recordingHandler) HandleBondingCurveUpdated(context.Context, BondingCurveUpdated) error {
	h.got = append(h.got, KindBondingCurveUpdated)
	return nil
}

func (h *recordingHandler) HandleMarketCapUpdated(context.Context, MarketCapUpdated) error {
	h.got = append(h.got, KindMarketCapUpdated)
	return nil
}

func (h *recordingHandler) HandleBuyTriggered(context.Context, BuyTriggered) error {
	h.got = append(h.got, KindBuyTriggered)
	return nil
}

func (h *recordingHandler) HandleBuyExecuted(context.Context, BuyExecuted) error {
	h.got = append(h.got, KindBuyExecuted)
	return nil
}

func (h *recordingHandler) HandleBuyFailed(context.Context, BuyFailed) error {
	h.got = append(h.got, KindBuyFailed)
	return errors.New("boom")
}

func (h *recordingHandler) HandleConnectionStatusChanged(context.Context, ConnectionStatusChanged) error {
	h.got = append(h.got, KindConnectionStatusChanged)
	return nil
}

func (h *recordingHandler) HandleStatsUpdate(context.Context, StatsUpdate) error {
	h.got = append(h.got, KindStatsUpdate)
	return nil
}

func TestDispatch_RoutesEveryVariant(t *testing.T) {
	events := []Event{
		TokenCreated{},
		BondingCurveUpdated{},
		MarketCapUpdated{},
		BuyTriggered{},
		BuyExecuted{},
		BuyFailed{},
		ConnectionStatusChanged{},
		StatsUpdate{},
	}

	h := &recordingHandler{}
	ctx := context.Background()
	for _, ev := range events {
		err := Dispatch(ctx, ev, h)
		if ev.Kind() == KindBuyFailed {
			assert.EqualError(t, err, "boom")
			continue
		}
		assert.NoError(t, err)
	}

	require.Len(t, h.got, len(events))
	for i, ev := range events {
		assert.Equal(t, ev.Kind(), h.got[i])
	}
}

func TestIsCritical(t *testing.T) {
	assert.True(t, IsCritical(BuyTriggered{}))
	assert.True(t, IsCritical(BuyExecuted{}))
	assert.True(t, IsCritical(BuyFailed{}))
	assert.False(t, IsCritical(TokenCreated{}))
	assert.False(t, IsCritical(StatsUpdate{}))
}

func TestNewDiscoveredToken(t *testing.T) {
	rec := newTestToken(t)
	row := NewDiscoveredToken(TokenCreated{Token: rec, Slot: 42})

	assert.Equal(t, testMint.String(), row.Mint)
	assert.Equal(t, "PEPE", row.Symbol)
	assert.Equal(t, rec.BondingCurve().String(), row.BondingCurve)
	assert.Equal(t, int64(42), row.Slot)
	assert.Equal(t, int64(1_700_000_000_000), row.CreatedAt)
	assert.Zero(t, row.RecordedAt)
}

func TestNewMarketCapPoint(t *testing.T) {
	rec := newTestToken(t)
	curve := pump.BondingCurve{
		VirtualTokenReserves: 1_000_000_000,
		VirtualSolReserves:   30_000_000_000,
		RealTokenReserves:    800_000_000,
		TokenTotalSupply:     1_000_000_000,
	}
	snap := NewMarketSnapshot(rec, curve, time.UnixMilli(1_700_000_000_123))

	point := NewMarketCapPoint(MarketCapUpdated{Token: rec, Snapshot: snap, USD: decimal.NewFromInt(4500)})
	assert.Equal(t, testMint.String(), point.Mint)
	assert.Equal(t, int64(1_700_000_000_123), point.TimestampMs)
	assert.Equal(t, uint64(30_000_000_000), point.MarketCapLamports)
	assert.InDelta(t, 4500.0, point.MarketCapUSD, 1e-9)
	assert.InDelta(t, 20.0, point.Progress, 1e-9)
	assert.Equal(t, uint64(800_000_000), point.RealTokenReserves)
	assert.Empty(t, point.SnapshotID)
}
