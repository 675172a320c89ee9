package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Kernlog/pump-sniper/internal/domain"
	"github.com/Kernlog/pump-sniper/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStore = (*TokenStore)(nil)

const tokenColumns = `mint, name, symbol, uri, creator, bonding_curve, signature, slot, created_at, recorded_at`

// Insert adds a token. Returns ErrDuplicateKey if the mint exists.
func (s *TokenStore) Insert(ctx context.Context, t *domain.DiscoveredToken) error {
	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	recordedAt := t.RecordedAt
	if recordedAt == 0 {
		recordedAt = time.Now().UnixMilli()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tokens (`+tokenColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		t.Mint, t.Name, t.Symbol, t.URI, t.Creator, t.BondingCurve,
		t.Signature, t.Slot, t.CreatedAt, recordedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetByMint retrieves a token by mint. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByMint(ctx context.Context, mint string) (*domain.DiscoveredToken, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE mint = $1`, mint)
	t, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token by mint: %w", err)
	}
	return t, nil
}

// GetByTimeRange retrieves tokens created within [start, end].
func (s *TokenStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.DiscoveredToken, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at ASC, mint ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query tokens by time range: %w", err)
	}
	defer rows.Close()

	var result []*domain.DiscoveredToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return result, nil
}

func scanToken(row pgx.Row) (*domain.DiscoveredToken, error) {
	var t domain.DiscoveredToken
	err := row.Scan(
		&t.Mint, &t.Name, &t.Symbol, &t.URI, &t.Creator, &t.BondingCurve,
		&t.Signature, &t.Slot, &t.CreatedAt, &t.RecordedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
