package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Kernlog/pump-sniper/internal/domain"
	"github.com/Kernlog/pump-sniper/internal/storage"
)

// BuyAttemptStore is an in-memory implementation of storage.BuyAttemptStore.
type BuyAttemptStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BuyAttempt // keyed by attempt_id
}

// NewBuyAttemptStore creates a new in-memory buy attempt store.
func NewBuyAttemptStore() *BuyAttemptStore {
	return &BuyAttemptStore{
		data: make(map[string]*domain.BuyAttempt),
	}
}

var _ storage.BuyAttemptStore = (*BuyAttemptStore)(nil)

// Insert adds an attempt. Returns ErrDuplicateKey if attempt_id exists.
func (s *BuyAttemptStore) Insert(_ context.Context, a *domain.BuyAttempt) error {
	if a == nil || a.AttemptID == "" || a.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.AttemptID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[a.AttemptID] = copyAttempt(a)
	return nil
}

// GetByID retrieves an attempt. Returns ErrNotFound if not exists.
func (s *BuyAttemptStore) GetByID(_ context.Context, attemptID string) (*domain.BuyAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[attemptID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyAttempt(a), nil
}

// GetByMint retrieves all attempts for a mint, ordered by trigger time ASC.
func (s *BuyAttemptStore) GetByMint(_ context.Context, mint string) ([]*domain.BuyAttempt, error) {
	return s.filter(func(a *domain.BuyAttempt) bool { return a.Mint == mint }), nil
}

// GetByStatus retrieves all attempts with status, ordered by trigger time ASC.
func (s *BuyAttemptStore) GetByStatus(_ context.Context, status domain.BuyStatus) ([]*domain.BuyAttempt, error) {
	return s.filter(func(a *domain.BuyAttempt) bool { return a.Status == status }), nil
}

func (s *BuyAttemptStore) filter(keep func(*domain.BuyAttempt) bool) []*domain.BuyAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.BuyAttempt
	for _, a := range s.data {
		if keep(a) {
			result = append(result, copyAttempt(a))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TriggeredAt != result[j].TriggeredAt {
			return result[i].TriggeredAt < result[j].TriggeredAt
		}
		return result[i].AttemptID < result[j].AttemptID
	})
	return result
}

// copyAttempt deep-copies the nullable fields.
func copyAttempt(a *domain.BuyAttempt) *domain.BuyAttempt {
	c := *a
	if a.Signature != nil {
		v := *a.Signature
		c.Signature = &v
	}
	if a.ErrorKind != nil {
		v := *a.ErrorKind
		c.ErrorKind = &v
	}
	if a.ErrorText != nil {
		v := *a.ErrorText
		c.ErrorText = &v
	}
	return &c
}
