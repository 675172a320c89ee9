package domain

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/Kernlog/pump-sniper/internal/pda"
	"github.com/Kernlog/pump-sniper/internal/pump"
)

// TokenRecord is a token discovered from its creation transaction.
// Records are values and never change after construction.
type TokenRecord struct {
	Mint      solana.PublicKey
	Name      string
	Symbol    string
	Creator   solana.PublicKey
	URI       string
	Signature string    // creation transaction
	CreatedAt time.Time // block time when known

	curve solana.PublicKey
}

// NewTokenRecord builds a record, deriving the bonding-curve address from the mint.
func NewTokenRecord(mint solana.PublicKey, args pump.CreateArgs, signature string, createdAt time.Time) (TokenRecord, error) {
	curve, err := pda.BondingCurve(mint)
	if err != nil {
		return TokenRecord{}, fmt.Errorf("derive bonding curve for %s: %w", mint, err)
	}
	return TokenRecord{
		Mint:      mint,
		Name:      args.Name,
		Symbol:    args.Symbol,
		Creator:   args.Creator,
		URI:       args.URI,
		Signature: signature,
		CreatedAt: createdAt,
		curve:     curve,
	}, nil
}

// BondingCurve is the curve account owned by this token's mint.
func (t TokenRecord) BondingCurve() solana.PublicKey {
	return t.curve
}

// DisplayName formats the token as "Name (SYMBOL)".
func (t TokenRecord) DisplayName() string {
	return fmt.Sprintf("%s (%s)", t.Name, t.Symbol)
}

// Age is the time elapsed since creation.
func (t TokenRecord) Age(now time.Time) time.Duration {
	return now.Sub(t.CreatedAt)
}
