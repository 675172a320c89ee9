package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Kernlog/pump-sniper/internal/domain"
	"github.com/Kernlog/pump-sniper/internal/storage"
)

// BuyAttemptStore implements storage.BuyAttemptStore using PostgreSQL.
type BuyAttemptStore struct {
	pool *Pool
}

// NewBuyAttemptStore creates a new BuyAttemptStore.
func NewBuyAttemptStore(pool *Pool) *BuyAttemptStore {
	return &BuyAttemptStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BuyAttemptStore = (*BuyAttemptStore)(nil)

const attemptColumns = `attempt_id, mint, amount, status, signature, error_kind, error_text, triggered_at, finished_at`

// Insert adds an attempt. Returns ErrDuplicateKey if attempt_id exists.
func (s *BuyAttemptStore) Insert(ctx context.Context, a *domain.BuyAttempt) error {
	if a == nil || a.AttemptID == "" || a.Mint == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO buy_attempts (`+attemptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		a.AttemptID, a.Mint, int64(a.Amount), string(a.Status),
		a.Signature, a.ErrorKind, a.ErrorText, a.TriggeredAt, a.FinishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert buy attempt: %w", err)
	}
	return nil
}

// GetByID retrieves an attempt. Returns ErrNotFound if not exists.
func (s *BuyAttemptStore) GetByID(ctx context.Context, attemptID string) (*domain.BuyAttempt, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+attemptColumns+` FROM buy_attempts WHERE attempt_id = $1`, attemptID)
	a, err := scanAttempt(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get buy attempt: %w", err)
	}
	return a, nil
}

// GetByMint retrieves all attempts for a mint, ordered by trigger time ASC.
func (s *BuyAttemptStore) GetByMint(ctx context.Context, mint string) ([]*domain.BuyAttempt, error) {
	return s.query(ctx, `
		SELECT `+attemptColumns+`
		FROM buy_attempts
		WHERE mint = $1
		ORDER BY triggered_at ASC, attempt_id ASC
	`, mint)
}

// GetByStatus retrieves all attempts with status, ordered by trigger time ASC.
func (s *BuyAttemptStore) GetByStatus(ctx context.Context, status domain.BuyStatus) ([]*domain.BuyAttempt, error) {
	return s.query(ctx, `
		SELECT `+attemptColumns+`
		FROM buy_attempts
		WHERE status = $1
		ORDER BY triggered_at ASC, attempt_id ASC
	`, string(status))
}

func (s *BuyAttemptStore) query(ctx context.Context, sql string, args ...any) ([]*domain.BuyAttempt, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query buy attempts: %w", err)
	}
	defer rows.Close()

	var result []*domain.BuyAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan buy attempt: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buy attempts: %w", err)
	}
	return result, nil
}

func scanAttempt(row pgx.Row) (*domain.BuyAttempt, error) {
	var (
		a      domain.BuyAttempt
		amount int64
		status string
	)
	err := row.Scan(
		&a.AttemptID, &a.Mint, &amount, &status,
		&a.Signature, &a.ErrorKind, &a.ErrorText, &a.TriggeredAt, &a.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Amount = uint64(amount)
	a.Status = domain.BuyStatus(status)
	return &a, nil
}
