package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Kernlog/pump-sniper/internal/domain"
	"github.com/Kernlog/pump-sniper/internal/storage"
)

func TestTokenStore_InsertAndGet(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	tok := &domain.DiscoveredToken{
		Mint:         "mint123",
		Name:         "Frog",
		Symbol:       "FROG",
		Creator:      "creator123",
		BondingCurve: "curve123",
		Signature:    "sig123",
		Slot:         100,
		CreatedAt:    1704067200000,
	}

	if err := store.Insert(ctx, tok); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByMint(ctx, "mint123")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if got.Symbol != "FROG" {
		t.Errorf("Symbol mismatch: got %s, want FROG", got.Symbol)
	}
	if got.RecordedAt == 0 {
		t.Error("RecordedAt should be set on insert")
	}

	// Mutating the returned copy leaves the store untouched
	got.Symbol = "CHANGED"
	again, _ := store.GetByMint(ctx, "mint123")
	if again.Symbol != "FROG" {
		t.Errorf("store was mutated through returned copy")
	}
}

func TestTokenStore_DuplicateKey(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	tok := &domain.DiscoveredToken{Mint: "dup", CreatedAt: 1}
	if err := store.Insert(ctx, tok); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}
	if err := store.Insert(ctx, tok); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestTokenStore_InvalidInput(t *testing.T) {
	store := NewTokenStore()
	if err := store.Insert(context.Background(), &domain.DiscoveredToken{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if err := store.Insert(context.Background(), nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for nil, got %v", err)
	}
}

func TestTokenStore_NotFound(t *testing.T) {
	store := NewTokenStore()
	if _, err := store.GetByMint(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTokenStore_GetByTimeRange(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	for _, tok := range []*domain.DiscoveredToken{
		{Mint: "c", CreatedAt: 3000},
		{Mint: "a", CreatedAt: 1000},
		{Mint: "b", CreatedAt: 2000},
		{Mint: "d", CreatedAt: 4000},
	} {
		if err := store.Insert(ctx, tok); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := store.GetByTimeRange(ctx, 1000, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].Mint != want {
			t.Errorf("position %d: got %s, want %s", i, got[i].Mint, want)
		}
	}
}

func TestTokenStore_ConcurrentInsert(t *testing.T) {
	store := NewTokenStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Insert(ctx, &domain.DiscoveredToken{Mint: "same"})
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, storage.ErrDuplicateKey) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("expected exactly one successful insert, got %d", ok)
	}
}
