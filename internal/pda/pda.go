// Package pda derives the program-owned addresses used by the pump bonding-curve program.
package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"
)

// Seed tags recognised by the pump program.
const (
	SeedGlobal        = "global"
	SeedMintAuthority = "mint-authority"
	SeedBondingCurve  = "bonding-curve"
	SeedMetadata      = "metadata"
	SeedCreatorVault  = "creator-vault"
)

const (
	maxSeeds      = 16
	maxSeedLength = 32
	pdaMarker     = "ProgramDerivedAddress"
)

// Program identifiers the derivations depend on.
var (
	PumpProgramID            = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	MetadataProgramID        = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
	TokenProgramID           = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

// ErrAddressDerivation is returned when no bump in [0, 255] yields an off-curve address,
// or when the seeds are malformed.
var ErrAddressDerivation = errors.New("address derivation failed")

// FindProgramAddress searches bumps from 255 down to 0 for the first
// sha256(seeds || bump || program || marker) that is not a valid ed25519 point.
func FindProgramAddress(seeds [][]byte, program solana.PublicKey) (solana.PublicKey, uint8, error) {
	if len(seeds) > maxSeeds-1 {
		return solana.PublicKey{}, 0, fmt.Errorf("%w: %d seeds", ErrAddressDerivation, len(seeds))
	}
	for _, seed := range seeds {
		if len(seed) > maxSeedLength {
			return solana.PublicKey{}, 0, fmt.Errorf("%w: seed of %d bytes", ErrAddressDerivation, len(seed))
		}
	}

	size := len(pdaMarker) + solana.PublicKeyLength + 1
	for _, seed := range seeds {
		size += len(seed)
	}
	buf := make([]byte, 0, size)

	for bump := 255; bump >= 0; bump-- {
		buf = buf[:0]
		for _, seed := range seeds {
			buf = append(buf, seed...)
		}
		buf = append(buf, byte(bump))
		buf = append(buf, program[:]...)
		buf = append(buf, pdaMarker...)

		hash := sha256.Sum256(buf)
		if !isOnCurve(hash[:]) {
			return solana.PublicKeyFromBytes(hash[:]), uint8(bump), nil
		}
	}

	return solana.PublicKey{}, 0, ErrAddressDerivation
}

func isOnCurve(point []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

func derive(program solana.PublicKey, seeds ...[]byte) (solana.PublicKey, error) {
	addr, _, err := FindProgramAddress(seeds, program)
	return addr, err
}

// Global returns the pump global-config account.
func Global() (solana.PublicKey, error) {
	return derive(PumpProgramID, []byte(SeedGlobal))
}

// MintAuthority returns the account the pump program uses as mint authority.
func MintAuthority() (solana.PublicKey, error) {
	return derive(PumpProgramID, []byte(SeedMintAuthority))
}

// BondingCurve returns the bonding-curve account of a mint.
func BondingCurve(mint solana.PublicKey) (solana.PublicKey, error) {
	return derive(PumpProgramID, []byte(SeedBondingCurve), mint[:])
}

// CreatorVault returns the fee vault owned by a token creator.
func CreatorVault(creator solana.PublicKey) (solana.PublicKey, error) {
	return derive(PumpProgramID, []byte(SeedCreatorVault), creator[:])
}

// Metadata returns the token-metadata account of a mint. The metadata
// program is both a seed and the deriving program.
func Metadata(mint solana.PublicKey) (solana.PublicKey, error) {
	return derive(MetadataProgramID, []byte(SeedMetadata), MetadataProgramID[:], mint[:])
}

// AssociatedTokenAccount returns the canonical token account of owner for mint.
func AssociatedTokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	return derive(AssociatedTokenProgramID, owner[:], TokenProgramID[:], mint[:])
}

// AssociatedBondingCurve returns the token account holding the curve's token reserves.
func AssociatedBondingCurve(mint solana.PublicKey) (solana.PublicKey, error) {
	curve, err := BondingCurve(mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return AssociatedTokenAccount(curve, mint)
}
