// Package pump models the pump bonding-curve program: account layouts,
// the off-chain replica of its pricing math, and its instruction encoders.
package pump

import (
	"github.com/gagliardetto/solana-go"

	"github.com/Kernlog/pump-sniper/internal/pda"
)

// Well-known accounts referenced by pump instructions.
var (
	ProgramID                = pda.PumpProgramID
	EventAuthority           = solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")
	SystemProgramID          = solana.SystemProgramID
	TokenProgramID           = pda.TokenProgramID
	AssociatedTokenProgramID = pda.AssociatedTokenProgramID
	RentSysvar               = solana.SysVarRentPubkey
)

// Instruction discriminators.
var (
	CreateDiscriminator = [8]byte{24, 30, 200, 40, 5, 28, 7, 119}
	BuyDiscriminator    = [8]byte{102, 6, 61, 18, 1, 218, 235, 234}
	SellDiscriminator   = [8]byte{51, 230, 133, 164, 1, 127, 131, 173}
)

// BondingCurveDiscriminator tags bonding-curve accounts.
var BondingCurveDiscriminator = [8]byte{23, 183, 248, 55, 96, 216, 172, 96}

// BondingCurveAccountSize is the exact on-chain size of a bonding-curve account.
// The stream subscribes with it as a dataSize filter.
const BondingCurveAccountSize = 8 + 5*8 + 1 + 32

// Reserve constants every new curve starts from.
const (
	InitialVirtualTokenReserves uint64 = 1_073_000_000_000_000
	InitialVirtualSolReserves   uint64 = 30_000_000_000
	InitialRealTokenReserves    uint64 = 793_100_000_000_000
	TokenTotalSupply            uint64 = 1_000_000_000_000_000
)

// MaxBasisPoints is 100%.
const MaxBasisPoints uint64 = 10_000

// LamportsPerSol converts lamports to SOL.
const LamportsPerSol = solana.LAMPORTS_PER_SOL
