package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Kernlog/pump-sniper/internal/domain"
	"github.com/Kernlog/pump-sniper/internal/storage"
)

// MarketSnapshotStore implements storage.MarketSnapshotStore using ClickHouse.
type MarketSnapshotStore struct {
	conn *Conn
}

// NewMarketSnapshotStore creates a new MarketSnapshotStore.
func NewMarketSnapshotStore(conn *Conn) *MarketSnapshotStore {
	return &MarketSnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.MarketSnapshotStore = (*MarketSnapshotStore)(nil)

const snapshotColumns = `
	snapshot_id, mint, timestamp_ms, market_cap_lamports, market_cap_usd,
	price_per_unit, progress, virtual_sol_reserves, virtual_token_reserves,
	real_sol_reserves, real_token_reserves, complete`

// InsertBulk adds multiple points. Fails entire batch on a duplicate snapshot_id.
// MergeTree does not enforce keys, so duplicates are checked before the insert.
func (s *MarketSnapshotStore) InsertBulk(ctx context.Context, points []*domain.MarketCapPoint) error {
	if len(points) == 0 {
		return nil
	}

	ids := make([]string, 0, len(points))
	seen := make(map[string]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.SnapshotID == "" || p.Mint == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[p.SnapshotID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[p.SnapshotID] = struct{}{}
		ids = append(ids, p.SnapshotID)
	}

	var existing uint64
	if err := s.conn.QueryRow(ctx,
		`SELECT count() FROM market_snapshots WHERE has(?, snapshot_id)`, ids,
	).Scan(&existing); err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if existing > 0 {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO market_snapshots (`+snapshotColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		var complete uint8
		if p.Complete {
			complete = 1
		}
		err = batch.Append(
			p.SnapshotID, p.Mint, uint64(p.TimestampMs), p.MarketCapLamports, p.MarketCapUSD,
			p.PricePerUnit, p.Progress, p.VirtualSolReserves, p.VirtualTokenReserves,
			p.RealSolReserves, p.RealTokenReserves, complete,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByMint retrieves all points for a mint, ordered by timestamp ASC.
func (s *MarketSnapshotStore) GetByMint(ctx context.Context, mint string) ([]*domain.MarketCapPoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+snapshotColumns+`
		FROM market_snapshots
		WHERE mint = ?
		ORDER BY timestamp_ms ASC, snapshot_id ASC
	`, mint)
	if err != nil {
		return nil, fmt.Errorf("query by mint: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// GetByTimeRange retrieves points for a mint within [start, end] (inclusive).
func (s *MarketSnapshotStore) GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.MarketCapPoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+snapshotColumns+`
		FROM market_snapshots
		WHERE mint = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC, snapshot_id ASC
	`, mint, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func scanSnapshots(rows driver.Rows) ([]*domain.MarketCapPoint, error) {
	var result []*domain.MarketCapPoint
	for rows.Next() {
		var (
			p           domain.MarketCapPoint
			timestampMs uint64
			complete    uint8
		)
		if err := rows.Scan(
			&p.SnapshotID, &p.Mint, &timestampMs, &p.MarketCapLamports, &p.MarketCapUSD,
			&p.PricePerUnit, &p.Progress, &p.VirtualSolReserves, &p.VirtualTokenReserves,
			&p.RealSolReserves, &p.RealTokenReserves, &complete,
		); err != nil {
			return nil, fmt.Errorf("scan market snapshot: %w", err)
		}
		p.TimestampMs = int64(timestampMs)
		p.Complete = complete == 1
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market snapshots: %w", err)
	}
	return result, nil
}
