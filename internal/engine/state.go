package engine

import (
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/Kernlog/pump-sniper/internal/domain"
	"github.com/Kernlog/pump-sniper/internal/pump"
)

// State is everything the engine knows. It is mutated only by the engine's
// Run goroutine; the lock lets Stats and tests read it concurrently.
type State struct {
	mu sync.RWMutex

	tracked    map[solana.PublicKey]domain.TokenRecord // by mint
	byCurve    map[solana.PublicKey]solana.PublicKey   // curve address -> mint
	curves     map[solana.PublicKey]cachedCurve        // by curve address
	pending    map[solana.PublicKey]struct{}           // BuyTriggered queued, not yet handled
	bought     map[solana.PublicKey]struct{}
	boughtOnce bool

	successful int
	failed     int
}

// NewState creates empty state.
func NewState() *State {
	return &State{
		tracked: make(map[solana.PublicKey]domain.TokenRecord),
		byCurve: make(map[solana.PublicKey]solana.PublicKey),
		curves:  make(map[solana.PublicKey]cachedCurve),
		pending: make(map[solana.PublicKey]struct{}),
		bought:  make(map[solana.PublicKey]struct{}),
	}
}

func (s *State) track(token domain.TokenRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracked[token.Mint] = token
	s.byCurve[token.BondingCurve()] = token.Mint
}

// Tracked returns the tracked record for mint.
func (s *State) Tracked(mint solana.PublicKey) (domain.TokenRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tracked[mint]
	return token, ok
}

// TrackedByCurve returns the tracked token owning the curve at address.
func (s *State) TrackedByCurve(address solana.PublicKey) (domain.TokenRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mint, ok := s.byCurve[address]
	if !ok {
		return domain.TokenRecord{}, false
	}
	token, ok := s.tracked[mint]
	return token, ok
}

// TrackedCount is the number of tracked tokens.
func (s *State) TrackedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracked)
}

type cachedCurve struct {
	curve      pump.BondingCurve
	receivedAt time.Time
}

func (s *State) cacheCurve(address solana.PublicKey, curve pump.BondingCurve, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.curves[address] = cachedCurve{curve: curve, receivedAt: at}
}

// CachedCurve returns the latest streamed snapshot of the curve at address
// and when it was received.
func (s *State) CachedCurve(address solana.PublicKey) (pump.BondingCurve, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.curves[address]
	return c.curve, c.receivedAt, ok
}

func (s *State) markPending(mint solana.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[mint] = struct{}{}
}

func (s *State) clearPending(mint solana.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, mint)
}

// Pending reports whether a BuyTriggered for mint is queued but not yet handled.
func (s *State) Pending(mint solana.PublicKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pending[mint]
	return ok
}

// markBought inserts mint into the bought-set and reports whether it was absent.
func (s *State) markBought(mint solana.PublicKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bought[mint]; ok {
		return false
	}
	s.bought[mint] = struct{}{}
	return true
}

// Bought reports whether mint is in the bought-set.
func (s *State) Bought(mint solana.PublicKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.bought[mint]
	return ok
}

// BoughtOnce reports whether any buy has succeeded.
func (s *State) BoughtOnce() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.boughtOnce
}

func (s *State) recordSuccess(mint solana.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boughtOnce = true
	s.successful++
	if token, ok := s.tracked[mint]; ok {
		delete(s.byCurve, token.BondingCurve())
		delete(s.tracked, mint)
	}
}

func (s *State) recordFailure(mint solana.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
	delete(s.bought, mint)
}

// Counts returns successful and failed buy totals.
func (s *State) Counts() (successful, failed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.successful, s.failed
}
