package domain

// BuyStatus is the outcome of a buy attempt.
type BuyStatus string

const (
	BuyStatusSubmitted BuyStatus = "SUBMITTED"
	BuyStatusFailed    BuyStatus = "FAILED"
)

// BuyAttempt is the journal record of one execution.
// Corresponds to the buy_attempts table in PostgreSQL.
type BuyAttempt struct {
	AttemptID   string // PRIMARY KEY, deterministic hash of mint and trigger time
	Mint        string
	Amount      uint64 // lamports spent
	Status      BuyStatus
	Signature   *string // set when submitted
	ErrorKind   *string // set when failed
	ErrorText   *string
	TriggeredAt int64 // Unix ms
	FinishedAt  int64 // Unix ms
}
