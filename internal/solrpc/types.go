package solrpc

import (
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
)

// Commitment levels understood by the node.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// Transaction is a decoded transaction as delivered by getTransaction or
// a transaction subscription.
type Transaction struct {
	Slot      uint64
	Signature string
	BlockTime int64 // Unix seconds, 0 when unknown
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains execution metadata.
type TransactionMeta struct {
	Err            interface{}
	LogMessages    []string
	LoadedWritable []string
	LoadedReadonly []string
}

// TransactionMessage is the compiled message.
type TransactionMessage struct {
	AccountKeys  []string
	Instructions []CompiledInstruction
}

// CompiledInstruction references accounts by index into the account-key table.
type CompiledInstruction struct {
	ProgramIDIndex uint16
	Accounts       []uint16
	Data           []byte
}

// Failed reports whether the transaction executed with an error.
func (t *Transaction) Failed() bool {
	return t.Meta != nil && t.Meta.Err != nil
}

// AccountKeys returns the full account table: static keys followed by
// addresses loaded from lookup tables (writable first, then read-only).
func (t *Transaction) AccountKeys() []string {
	if t.Message == nil {
		return nil
	}
	keys := append([]string(nil), t.Message.AccountKeys...)
	if t.Meta != nil {
		keys = append(keys, t.Meta.LoadedWritable...)
		keys = append(keys, t.Meta.LoadedReadonly...)
	}
	return keys
}

// Raw JSON shapes shared by getTransaction and transactionNotification
// (encoding "json").

type rawTransactionEnvelope struct {
	Slot        uint64          `json:"slot"`
	BlockTime   *int64          `json:"blockTime"`
	Meta        *rawMeta        `json:"meta"`
	Transaction json.RawMessage `json:"transaction"`
}

type rawMeta struct {
	Err             interface{}         `json:"err"`
	LogMessages     []string            `json:"logMessages"`
	LoadedAddresses *rawLoadedAddresses `json:"loadedAddresses"`
}

type rawLoadedAddresses struct {
	Writable []string `json:"writable"`
	Readonly []string `json:"readonly"`
}

type rawTx struct {
	Signatures []string    `json:"signatures"`
	Message    *rawMessage `json:"message"`
}

type rawMessage struct {
	AccountKeys  []string         `json:"accountKeys"`
	Instructions []rawInstruction `json:"instructions"`
}

type rawInstruction struct {
	ProgramIDIndex uint16   `json:"programIdIndex"`
	Accounts       []uint16 `json:"accounts"`
	Data           string   `json:"data"` // base58
}

// decodeTransaction converts the raw envelope into a Transaction.
// Instruction data arrives base58-encoded.
func decodeTransaction(env *rawTransactionEnvelope, signature string) (*Transaction, error) {
	tx := &Transaction{
		Slot:      env.Slot,
		Signature: signature,
	}
	if env.BlockTime != nil {
		tx.BlockTime = *env.BlockTime
	}

	if env.Meta != nil {
		tx.Meta = &TransactionMeta{
			Err:         env.Meta.Err,
			LogMessages: env.Meta.LogMessages,
		}
		if env.Meta.LoadedAddresses != nil {
			tx.Meta.LoadedWritable = env.Meta.LoadedAddresses.Writable
			tx.Meta.LoadedReadonly = env.Meta.LoadedAddresses.Readonly
		}
	}

	if len(env.Transaction) == 0 || string(env.Transaction) == "null" {
		return tx, nil
	}

	var raw rawTx
	if err := json.Unmarshal(env.Transaction, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	if tx.Signature == "" && len(raw.Signatures) > 0 {
		tx.Signature = raw.Signatures[0]
	}
	if raw.Message == nil {
		return tx, nil
	}

	msg := &TransactionMessage{AccountKeys: raw.Message.AccountKeys}
	for i, ix := range raw.Message.Instructions {
		var data []byte
		if ix.Data != "" {
			decoded, err := base58.Decode(ix.Data)
			if err != nil {
				return nil, fmt.Errorf("decode instruction %d data: %w", i, err)
			}
			data = decoded
		}
		msg.Instructions = append(msg.Instructions, CompiledInstruction{
			ProgramIDIndex: ix.ProgramIDIndex,
			Accounts:       ix.Accounts,
			Data:           data,
		})
	}
	tx.Message = msg

	return tx, nil
}
