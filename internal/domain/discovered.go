package domain

// DiscoveredToken is the journal row of a token creation.
// Corresponds to the tokens table in PostgreSQL.
type DiscoveredToken struct {
	Mint         string // PRIMARY KEY
	Name         string
	Symbol       string
	URI          string
	Creator      string
	BondingCurve string
	Signature    string // creation transaction
	Slot         int64
	CreatedAt    int64 // block time, Unix ms
	RecordedAt   int64 // Unix ms, set by the store when zero
}

// NewDiscoveredToken flattens a creation event into a row.
func NewDiscoveredToken(e TokenCreated) *DiscoveredToken {
	t := e.Token
	return &DiscoveredToken{
		Mint:         t.Mint.String(),
		Name:         t.Name,
		Symbol:       t.Symbol,
		URI:          t.URI,
		Creator:      t.Creator.String(),
		BondingCurve: t.BondingCurve().String(),
		Signature:    t.Signature,
		Slot:         int64(e.Slot),
		CreatedAt:    t.CreatedAt.UnixMilli(),
	}
}
