package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Kernlog/pump-sniper/internal/domain"
	"github.com/Kernlog/pump-sniper/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu   sync.RWMutex
	data map[string]*domain.DiscoveredToken // keyed by mint
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		data: make(map[string]*domain.DiscoveredToken),
	}
}

var _ storage.TokenStore = (*TokenStore)(nil)

// Insert adds a token. Returns ErrDuplicateKey if the mint exists.
func (s *TokenStore) Insert(_ context.Context, t *domain.DiscoveredToken) error {
	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.Mint]; exists {
		return storage.ErrDuplicateKey
	}

	tokenCopy := *t
	if tokenCopy.RecordedAt == 0 {
		tokenCopy.RecordedAt = time.Now().UnixMilli()
	}
	s.data[t.Mint] = &tokenCopy
	return nil
}

// GetByMint retrieves a token by mint. Returns ErrNotFound if not exists.
func (s *TokenStore) GetByMint(_ context.Context, mint string) (*domain.DiscoveredToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[mint]
	if !exists {
		return nil, storage.ErrNotFound
	}
	tokenCopy := *t
	return &tokenCopy, nil
}

// GetByTimeRange retrieves tokens created within [start, end].
func (s *TokenStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.DiscoveredToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DiscoveredToken
	for _, t := range s.data {
		if t.CreatedAt >= start && t.CreatedAt <= end {
			tokenCopy := *t
			result = append(result, &tokenCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].Mint < result[j].Mint
	})
	return result, nil
}
