package pump

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/Kernlog/pump-sniper/internal/pda"
)

// CreateArgs is the decoded payload of a token creation instruction.
type CreateArgs struct {
	Name    string
	Symbol  string
	URI     string
	Creator solana.PublicKey
}

type createLayout struct {
	Discriminator [8]byte
	Name          string
	Symbol        string
	URI           string
	Creator       solana.PublicKey
}

// maxCreateField bounds each string in a create payload.
const maxCreateField = 1024

// HasDiscriminator reports whether data starts with disc. Short payloads never match.
func HasDiscriminator(data []byte, disc [8]byte) bool {
	return len(data) >= len(disc) && bytes.Equal(data[:len(disc)], disc[:])
}

// DecodeCreateArgs parses a creation instruction payload, discriminator included.
func DecodeCreateArgs(data []byte) (CreateArgs, error) {
	if !HasDiscriminator(data, CreateDiscriminator) {
		return CreateArgs{}, decodeErr("create", "missing create discriminator")
	}

	var raw createLayout
	if err := bin.NewBorshDecoder(data).Decode(&raw); err != nil {
		return CreateArgs{}, &DecodeError{Kind: "create", Err: err}
	}
	for _, f := range []string{raw.Name, raw.Symbol, raw.URI} {
		if len(f) > maxCreateField {
			return CreateArgs{}, decodeErr("create", "field of %d bytes", len(f))
		}
	}

	return CreateArgs{
		Name:    raw.Name,
		Symbol:  raw.Symbol,
		URI:     raw.URI,
		Creator: raw.Creator,
	}, nil
}

// EncodeCreateArgs builds a creation payload. Used to fabricate fixtures.
func EncodeCreateArgs(args CreateArgs) ([]byte, error) {
	return bin.MarshalBorsh(&createLayout{
		Discriminator: CreateDiscriminator,
		Name:          args.Name,
		Symbol:        args.Symbol,
		URI:           args.URI,
		Creator:       args.Creator,
	})
}

// BuyArgs is the payload of a buy: exact token amount, lamport ceiling.
type BuyArgs struct {
	Amount     uint64
	MaxSolCost uint64
}

// SellArgs is the payload of a sell: exact token amount, lamport floor.
type SellArgs struct {
	Amount       uint64
	MinSolOutput uint64
}

type tradeLayout struct {
	Discriminator [8]byte
	Amount        uint64
	Limit         uint64
}

// Encode returns the instruction data.
func (a BuyArgs) Encode() []byte {
	return encodeTrade(BuyDiscriminator, a.Amount, a.MaxSolCost)
}

// Encode returns the instruction data.
func (a SellArgs) Encode() []byte {
	return encodeTrade(SellDiscriminator, a.Amount, a.MinSolOutput)
}

func encodeTrade(disc [8]byte, amount, limit uint64) []byte {
	data, err := bin.MarshalBorsh(&tradeLayout{Discriminator: disc, Amount: amount, Limit: limit})
	if err != nil {
		// fixed-size struct; cannot fail
		panic(fmt.Sprintf("encode trade args: %v", err))
	}
	return data
}

// DecodeBuyArgs parses buy instruction data.
func DecodeBuyArgs(data []byte) (BuyArgs, error) {
	if !HasDiscriminator(data, BuyDiscriminator) {
		return BuyArgs{}, decodeErr("buy", "missing buy discriminator")
	}
	var raw tradeLayout
	if err := bin.NewBorshDecoder(data).Decode(&raw); err != nil {
		return BuyArgs{}, &DecodeError{Kind: "buy", Err: err}
	}
	return BuyArgs{Amount: raw.Amount, MaxSolCost: raw.Limit}, nil
}

// TradeAccounts are the accounts a buy or sell references.
type TradeAccounts struct {
	Global                 solana.PublicKey
	FeeRecipient           solana.PublicKey
	Mint                   solana.PublicKey
	BondingCurve           solana.PublicKey
	AssociatedBondingCurve solana.PublicKey
	AssociatedUser         solana.PublicKey
	User                   solana.PublicKey
	CreatorVault           solana.PublicKey
}

// DeriveTradeAccounts resolves every derived account for a trade of mint by user.
func DeriveTradeAccounts(mint, creator, feeRecipient, user solana.PublicKey) (TradeAccounts, error) {
	global, err := pda.Global()
	if err != nil {
		return TradeAccounts{}, err
	}
	curve, err := pda.BondingCurve(mint)
	if err != nil {
		return TradeAccounts{}, err
	}
	associatedCurve, err := pda.AssociatedTokenAccount(curve, mint)
	if err != nil {
		return TradeAccounts{}, err
	}
	associatedUser, err := pda.AssociatedTokenAccount(user, mint)
	if err != nil {
		return TradeAccounts{}, err
	}
	vault, err := pda.CreatorVault(creator)
	if err != nil {
		return TradeAccounts{}, err
	}

	return TradeAccounts{
		Global:                 global,
		FeeRecipient:           feeRecipient,
		Mint:                   mint,
		BondingCurve:           curve,
		AssociatedBondingCurve: associatedCurve,
		AssociatedUser:         associatedUser,
		User:                   user,
		CreatorVault:           vault,
	}, nil
}

// NewBuyInstruction builds a pump buy.
func NewBuyInstruction(acc TradeAccounts, args BuyArgs) solana.Instruction {
	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.Meta(acc.Global),
		solana.Meta(acc.FeeRecipient).WRITE(),
		solana.Meta(acc.Mint),
		solana.Meta(acc.BondingCurve).WRITE(),
		solana.Meta(acc.AssociatedBondingCurve).WRITE(),
		solana.Meta(acc.AssociatedUser).WRITE(),
		solana.Meta(acc.User).WRITE().SIGNER(),
		solana.Meta(SystemProgramID),
		solana.Meta(TokenProgramID),
		solana.Meta(acc.CreatorVault).WRITE(),
		solana.Meta(EventAuthority),
		solana.Meta(ProgramID),
	}, args.Encode())
}

// NewSellInstruction builds a pump sell. Nothing in the sniper issues sells.
func NewSellInstruction(acc TradeAccounts, args SellArgs) solana.Instruction {
	return solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.Meta(acc.Global),
		solana.Meta(acc.FeeRecipient).WRITE(),
		solana.Meta(acc.Mint),
		solana.Meta(acc.BondingCurve).WRITE(),
		solana.Meta(acc.AssociatedBondingCurve).WRITE(),
		solana.Meta(acc.AssociatedUser).WRITE(),
		solana.Meta(acc.User).WRITE().SIGNER(),
		solana.Meta(SystemProgramID),
		solana.Meta(acc.CreatorVault).WRITE(),
		solana.Meta(TokenProgramID),
		solana.Meta(EventAuthority),
		solana.Meta(ProgramID),
	}, args.Encode())
}

// NewCreateATAIdempotentInstruction creates owner's token account for mint,
// succeeding if it already exists.
func NewCreateATAIdempotentInstruction(payer, ata, owner, mint solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(AssociatedTokenProgramID, solana.AccountMetaSlice{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(ata).WRITE(),
		solana.Meta(owner),
		solana.Meta(mint),
		solana.Meta(SystemProgramID),
		solana.Meta(TokenProgramID),
	}, []byte{1})
}

// MaxCost is the slippage ceiling for a buy of lamports.
func MaxCost(lamports, slippageBasisPoints uint64) uint64 {
	return lamports + mulDiv(lamports, slippageBasisPoints, MaxBasisPoints)
}
