package pump

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// GlobalAccountSize is the borsh size of the global-config account.
const GlobalAccountSize = 8 + 1 + 32 + 32 + 5*8 + 32 + 1 + 2*8 + 7*32 + 32

// Global is a snapshot of the protocol-wide configuration account.
// It is fetched fresh for each buy and never cached.
type Global struct {
	Discriminator               uint64
	Initialized                 bool
	Authority                   solana.PublicKey
	FeeRecipient                solana.PublicKey
	InitialVirtualTokenReserves uint64
	InitialVirtualSolReserves   uint64
	InitialRealTokenReserves    uint64
	TokenTotalSupply            uint64
	FeeBasisPoints              uint64
	WithdrawAuthority           solana.PublicKey
	EnableMigrate               bool
	PoolMigrationFee            uint64
	CreatorFeeBasisPoints       uint64
	FeeRecipients               [7]solana.PublicKey
	SetCreatorAuthority         solana.PublicKey
}

// DecodeGlobal parses the global-config account.
func DecodeGlobal(data []byte) (Global, error) {
	if len(data) < GlobalAccountSize {
		return Global{}, decodeErr("global", "account is %d bytes, want %d", len(data), GlobalAccountSize)
	}

	var g Global
	if err := bin.NewBorshDecoder(data).Decode(&g); err != nil {
		return Global{}, &DecodeError{Kind: "global", Err: err}
	}
	if g.FeeBasisPoints > MaxBasisPoints {
		return Global{}, decodeErr("global", "fee basis points %d exceed %d", g.FeeBasisPoints, MaxBasisPoints)
	}
	return g, nil
}

// Encode serializes the snapshot in the on-chain layout.
func (g Global) Encode() ([]byte, error) {
	return bin.MarshalBorsh(&g)
}

// CalculateFee returns the protocol fee charged on a trade of value lamports.
func (g Global) CalculateFee(value uint64) uint64 {
	return mulDiv(value, g.FeeBasisPoints, MaxBasisPoints)
}

// InitialMarketCap is the market cap of a freshly created curve, in lamports.
func (g Global) InitialMarketCap() uint64 {
	return mulDiv(TokenTotalSupply, InitialVirtualSolReserves, InitialVirtualTokenReserves)
}

// InitialBuyPrice is the token output of a buy against a fresh curve.
// Zero reserve fields fall back to the protocol defaults.
func (g Global) InitialBuyPrice(lamports uint64) uint64 {
	if lamports == 0 {
		return 0
	}

	vt, vs, rt := g.initialReserves()
	s := constantProductOut(vs, vt, lamports)
	if s.Cmp(bigU(rt)) < 0 {
		return s.Uint64()
	}
	return rt
}

// InitialCurve returns the snapshot a newly created curve starts with.
func (g Global) InitialCurve(creator solana.PublicKey) BondingCurve {
	vt, vs, rt := g.initialReserves()
	supply := g.TokenTotalSupply
	if supply == 0 {
		supply = TokenTotalSupply
	}
	return BondingCurve{
		VirtualTokenReserves: vt,
		VirtualSolReserves:   vs,
		RealTokenReserves:    rt,
		TokenTotalSupply:     supply,
		Creator:              creator,
	}
}

func (g Global) initialReserves() (virtualToken, virtualSol, realToken uint64) {
	virtualToken, virtualSol, realToken = g.InitialVirtualTokenReserves, g.InitialVirtualSolReserves, g.InitialRealTokenReserves
	if virtualToken == 0 || virtualSol == 0 {
		virtualToken, virtualSol = InitialVirtualTokenReserves, InitialVirtualSolReserves
	}
	if realToken == 0 {
		realToken = InitialRealTokenReserves
	}
	return virtualToken, virtualSol, realToken
}
