package pump

import (
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// BondingCurve is a point-in-time snapshot of a bonding-curve account.
// Snapshots are values; a newer read replaces the old one wholesale.
type BondingCurve struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
	Creator              solana.PublicKey
}

type bondingCurveLayout struct {
	Discriminator        [8]byte
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
	Creator              solana.PublicKey
}

// DecodeBondingCurve parses raw account data. Trailing bytes beyond the
// fixed layout are ignored.
func DecodeBondingCurve(data []byte) (BondingCurve, error) {
	if len(data) < BondingCurveAccountSize {
		return BondingCurve{}, decodeErr("bonding_curve", "account is %d bytes, want %d", len(data), BondingCurveAccountSize)
	}

	var raw bondingCurveLayout
	if err := bin.NewBorshDecoder(data[:BondingCurveAccountSize]).Decode(&raw); err != nil {
		return BondingCurve{}, &DecodeError{Kind: "bonding_curve", Err: err}
	}
	if raw.Discriminator != BondingCurveDiscriminator {
		return BondingCurve{}, decodeErr("bonding_curve", "unexpected discriminator %v", raw.Discriminator)
	}

	return BondingCurve{
		VirtualTokenReserves: raw.VirtualTokenReserves,
		VirtualSolReserves:   raw.VirtualSolReserves,
		RealTokenReserves:    raw.RealTokenReserves,
		RealSolReserves:      raw.RealSolReserves,
		TokenTotalSupply:     raw.TokenTotalSupply,
		Complete:             raw.Complete,
		Creator:              raw.Creator,
	}, nil
}

// Encode serializes the snapshot in the on-chain layout.
func (c BondingCurve) Encode() ([]byte, error) {
	raw := bondingCurveLayout{
		Discriminator:        BondingCurveDiscriminator,
		VirtualTokenReserves: c.VirtualTokenReserves,
		VirtualSolReserves:   c.VirtualSolReserves,
		RealTokenReserves:    c.RealTokenReserves,
		RealSolReserves:      c.RealSolReserves,
		TokenTotalSupply:     c.TokenTotalSupply,
		Complete:             c.Complete,
		Creator:              c.Creator,
	}
	data, err := bin.MarshalBorsh(&raw)
	if err != nil {
		return nil, fmt.Errorf("encode bonding curve: %w", err)
	}
	return data, nil
}

// MarketCap returns the curve's market capitalization in lamports.
func (c BondingCurve) MarketCap() uint64 {
	if c.VirtualTokenReserves == 0 {
		return 0
	}
	return mulDiv(c.TokenTotalSupply, c.VirtualSolReserves, c.VirtualTokenReserves)
}

// BuyPrice returns how many tokens a buy of lamports would receive, capped at
// the real token reserves.
func (c BondingCurve) BuyPrice(lamports uint64) (uint64, error) {
	if c.Complete {
		return 0, ErrCurveComplete
	}
	if lamports == 0 {
		return 0, nil
	}

	s := constantProductOut(c.VirtualSolReserves, c.VirtualTokenReserves, lamports)
	if s.Cmp(bigU(c.RealTokenReserves)) > 0 {
		return c.RealTokenReserves, nil
	}
	return s.Uint64(), nil
}

// SellPrice returns the lamports received for selling tokens, net of the fee.
func (c BondingCurve) SellPrice(tokens, feeBasisPoints uint64) (uint64, error) {
	if c.Complete {
		return 0, ErrCurveComplete
	}
	if tokens == 0 {
		return 0, nil
	}

	n := new(big.Int).Mul(bigU(tokens), bigU(c.VirtualSolReserves))
	n.Quo(n, new(big.Int).Add(bigU(c.VirtualTokenReserves), bigU(tokens)))

	fee := new(big.Int).Mul(n, bigU(feeBasisPoints))
	fee.Quo(fee, bigU(MaxBasisPoints))

	return truncU64(n.Sub(n, fee)), nil
}

// HasSufficientLiquidity reports whether the curve can absorb lamports of real SOL.
func (c BondingCurve) HasSufficientLiquidity(lamports uint64) bool {
	return !c.Complete && lamports <= c.RealSolReserves
}

// Progress is the share of supply already sold, as a percentage.
func (c BondingCurve) Progress() float64 {
	if c.TokenTotalSupply == 0 {
		return 0
	}
	if c.RealTokenReserves > c.TokenTotalSupply {
		sold := float64(c.TokenTotalSupply) - float64(c.RealTokenReserves)
		return sold / float64(c.TokenTotalSupply) * 100
	}
	sold := float64(c.TokenTotalSupply - c.RealTokenReserves)
	return sold / float64(c.TokenTotalSupply) * 100
}
