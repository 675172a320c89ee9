package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Kernlog/pump-sniper/internal/domain"
	"github.com/Kernlog/pump-sniper/internal/storage"
)

// MarketSnapshotStore is an in-memory implementation of storage.MarketSnapshotStore.
type MarketSnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MarketCapPoint // keyed by snapshot_id
}

// NewMarketSnapshotStore creates a new in-memory market snapshot store.
func NewMarketSnapshotStore() *MarketSnapshotStore {
	return &MarketSnapshotStore{
		data: make(map[string]*domain.MarketCapPoint),
	}
}

var _ storage.MarketSnapshotStore = (*MarketSnapshotStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate.
func (s *MarketSnapshotStore) InsertBulk(_ context.Context, points []*domain.MarketCapPoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.SnapshotID == "" || p.Mint == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[p.SnapshotID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[p.SnapshotID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[p.SnapshotID] = struct{}{}
	}

	for _, p := range points {
		pointCopy := *p
		s.data[p.SnapshotID] = &pointCopy
	}
	return nil
}

// GetByMint retrieves all points for a mint, ordered by timestamp ASC.
func (s *MarketSnapshotStore) GetByMint(_ context.Context, mint string) ([]*domain.MarketCapPoint, error) {
	return s.filter(mint, func(*domain.MarketCapPoint) bool { return true }), nil
}

// GetByTimeRange retrieves points for a mint within [start, end] (inclusive).
func (s *MarketSnapshotStore) GetByTimeRange(_ context.Context, mint string, start, end int64) ([]*domain.MarketCapPoint, error) {
	return s.filter(mint, func(p *domain.MarketCapPoint) bool {
		return p.TimestampMs >= start && p.TimestampMs <= end
	}), nil
}

func (s *MarketSnapshotStore) filter(mint string, keep func(*domain.MarketCapPoint) bool) []*domain.MarketCapPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.MarketCapPoint
	for _, p := range s.data {
		if p.Mint == mint && keep(p) {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TimestampMs != result[j].TimestampMs {
			return result[i].TimestampMs < result[j].TimestampMs
		}
		return result[i].SnapshotID < result[j].SnapshotID
	})
	return result
}
