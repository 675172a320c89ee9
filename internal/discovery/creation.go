package discovery

import (
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/Kernlog/pump-sniper/internal/domain"
	"github.com/Kernlog/pump-sniper/internal/pump"
	"github.com/Kernlog/pump-sniper/internal/solrpc"
)

var (
	// ErrNoCreateInstruction is returned when a transaction carries no creation payload.
	ErrNoCreateInstruction = errors.New("no create instruction")

	// ErrMintUnresolved is returned when the create instruction's first account
	// cannot be resolved to a public key.
	ErrMintUnresolved = errors.New("mint account unresolved")
)

// IsCreationTransaction reports whether any top-level instruction of tx starts
// with the creation discriminator. Short payloads are skipped.
func IsCreationTransaction(tx *solrpc.Transaction) bool {
	if tx == nil || tx.Message == nil {
		return false
	}
	for _, ix := range tx.Message.Instructions {
		if pump.HasDiscriminator(ix.Data, pump.CreateDiscriminator) {
			return true
		}
	}
	return false
}

// CreationParser turns creation transactions into token records.
type CreationParser struct {
	now func() time.Time
}

// NewCreationParser creates a parser using the wall clock for transactions
// without a block time.
func NewCreationParser() *CreationParser {
	return &CreationParser{now: time.Now}
}

// ParseTokenCreation extracts the first decodable creation instruction of tx.
// When several candidates fail, the first failure is returned.
func (p *CreationParser) ParseTokenCreation(tx *solrpc.Transaction, signature string) (domain.TokenRecord, error) {
	if tx == nil || tx.Message == nil {
		return domain.TokenRecord{}, ErrNoCreateInstruction
	}

	keys := tx.AccountKeys()
	var firstErr error

	for i, ix := range tx.Message.Instructions {
		if !pump.HasDiscriminator(ix.Data, pump.CreateDiscriminator) {
			continue
		}

		record, err := p.parseInstruction(tx, keys, ix, signature)
		if err == nil {
			return record, nil
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("instruction %d: %w", i, err)
		}
	}

	if firstErr != nil {
		return domain.TokenRecord{}, firstErr
	}
	return domain.TokenRecord{}, ErrNoCreateInstruction
}

func (p *CreationParser) parseInstruction(tx *solrpc.Transaction, keys []string, ix solrpc.CompiledInstruction, signature string) (domain.TokenRecord, error) {
	args, err := pump.DecodeCreateArgs(ix.Data)
	if err != nil {
		return domain.TokenRecord{}, err
	}

	mint, err := resolveMint(keys, ix)
	if err != nil {
		return domain.TokenRecord{}, err
	}

	createdAt := p.now()
	if tx.BlockTime > 0 {
		createdAt = time.Unix(tx.BlockTime, 0)
	}

	return domain.NewTokenRecord(mint, args, signature, createdAt)
}

// resolveMint maps the instruction's first account index through the account table.
func resolveMint(keys []string, ix solrpc.CompiledInstruction) (solana.PublicKey, error) {
	if len(ix.Accounts) == 0 {
		return solana.PublicKey{}, fmt.Errorf("%w: instruction has no accounts", ErrMintUnresolved)
	}
	idx := int(ix.Accounts[0])
	if idx >= len(keys) {
		return solana.PublicKey{}, fmt.Errorf("%w: index %d outside table of %d", ErrMintUnresolved, idx, len(keys))
	}
	mint, err := solana.PublicKeyFromBase58(keys[idx])
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrMintUnresolved, err)
	}
	return mint, nil
}
