package channelcfg

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dkurenkov/vidpipe/internal/domain"
	"github.com/dkurenkov/vidpipe/internal/repo"
)

// countingStore — хранилище каналов со счётчиком обращений.
type countingStore struct {
	mu       sync.Mutex
	channels map[uuid.UUID]domain.Channel
	getCalls int
	lists    int
}

func newCountingStore(channels ...domain.Channel) *countingStore {
	byID := make(map[uuid.UUID]domain.Channel)
	for _, ch := range channels {
		byID[ch.ID] = ch
	}
	return &countingStore{channels: byID}
}

func (s *countingStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	ch, ok := s.channels[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &ch, nil
}

func (s *countingStore) ListActive(ctx context.Context) ([]domain.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	var active []domain.Channel
	for _, ch := range s.channels {
		if ch.Active {
			active = append(active, ch)
		}
	}
	return active, nil
}

func TestGetCachesChannel(t *testing.T) {
	ch := domain.Channel{ID: uuid.New(), Name: "ch-1", Active: true}
	store := newCountingStore(ch)
	svc := New(store, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := svc.Get(ctx, ch.ID)
		if err != nil {
			t.Fatalf("get %d failed: %v", i+1, err)
		}
		if got.Name != "ch-1" {
			t.Errorf("name = %q, want ch-1", got.Name)
		}
	}

	if store.getCalls != 1 {
		t.Errorf("store reads = %d, want 1 (cached)", store.getCalls)
	}
}

func TestGetUnknownChannel(t *testing.T) {
	svc := New(newCountingStore(), time.Minute)

	if _, err := svc.Get(context.Background(), uuid.New()); err == nil {
		t.Error("expected error for unknown channel")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ch := domain.Channel{ID: uuid.New(), Name: "ch-1"}
	svc := New(newCountingStore(ch), time.Minute)
	ctx := context.Background()

	first, err := svc.Get(ctx, ch.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	// Мутация возвращённого значения не должна попадать в кэш.
	first.Name = "mutated"

	second, err := svc.Get(ctx, ch.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if second.Name != "ch-1" {
		t.Errorf("cached name = %q, want ch-1", second.Name)
	}
}

func TestInvalidateForcesReload(t *testing.T) {
	ch := domain.Channel{ID: uuid.New(), Name: "ch-1", Active: true}
	store := newCountingStore(ch)
	svc := New(store, time.Minute)
	ctx := context.Background()

	if _, err := svc.Get(ctx, ch.ID); err != nil {
		t.Fatalf("get failed: %v", err)
	}

	// Внешнее обновление конфигурации.
	store.mu.Lock()
	updated := ch
	updated.Name = "ch-1-renamed"
	store.channels[ch.ID] = updated
	store.mu.Unlock()

	svc.Invalidate(ch.ID)

	got, err := svc.Get(ctx, ch.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != "ch-1-renamed" {
		t.Errorf("name = %q, want ch-1-renamed after invalidate", got.Name)
	}
	if store.getCalls != 2 {
		t.Errorf("store reads = %d, want 2", store.getCalls)
	}
}

func TestTTLExpiry(t *testing.T) {
	ch := domain.Channel{ID: uuid.New(), Active: true}
	store := newCountingStore(ch)
	svc := New(store, 10*time.Millisecond)
	ctx := context.Background()

	if _, err := svc.Get(ctx, ch.ID); err != nil {
		t.Fatalf("get failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := svc.Get(ctx, ch.ID); err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if store.getCalls != 2 {
		t.Errorf("store reads = %d, want 2 (TTL expired)", store.getCalls)
	}
}

func TestListActiveCached(t *testing.T) {
	active := domain.Channel{ID: uuid.New(), Name: "on", Active: true}
	inactive := domain.Channel{ID: uuid.New(), Name: "off", Active: false}
	store := newCountingStore(active, inactive)
	svc := New(store, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		channels, err := svc.ListActive(ctx)
		if err != nil {
			t.Fatalf("list %d failed: %v", i+1, err)
		}
		if len(channels) != 1 || channels[0].Name != "on" {
			t.Errorf("list %d = %v, want only active channels", i+1, channels)
		}
	}

	if store.lists != 1 {
		t.Errorf("store lists = %d, want 1 (cached)", store.lists)
	}

	// Invalidate сбрасывает и список активных.
	svc.Invalidate(active.ID)
	if _, err := svc.ListActive(ctx); err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if store.lists != 2 {
		t.Errorf("store lists = %d, want 2 after invalidate", store.lists)
	}
}
