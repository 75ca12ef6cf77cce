package channelcfg

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkurenkov/vidpipe/internal/domain"
)

// defaultTTL — страховочный TTL кэша на случай пропущенной инвалидации.
const defaultTTL = 5 * time.Minute

// Store — источник конфигурации каналов (repo.ChannelRepo).
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Channel, error)
	ListActive(ctx context.Context) ([]domain.Channel, error)
}

// Service — кэширующий read-only доступ к каналам.
//
// Все методы возвращают копии: ядро никогда не мутирует конфигурацию
// каналов, copy-on-read защищает от случайной записи через указатель.
type Service struct {
	store Store
	ttl   time.Duration

	mu        sync.RWMutex
	byID      map[uuid.UUID]cacheEntry
	active    []domain.Channel
	activeAt  time.Time
	activeSet bool
}

type cacheEntry struct {
	channel  domain.Channel
	cachedAt time.Time
}

// New создаёт Service. ttl <= 0 — TTL по умолчанию (5 минут).
func New(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Service{
		store: store,
		ttl:   ttl,
		byID:  make(map[uuid.UUID]cacheEntry),
	}
}

// Get возвращает конфигурацию канала (из кэша, если свежая).
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Channel, error) {
	s.mu.RLock()
	entry, ok := s.byID[id]
	s.mu.RUnlock()

	if ok && time.Since(entry.cachedAt) < s.ttl {
		ch := entry.channel
		return &ch, nil
	}

	ch, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.byID[id] = cacheEntry{channel: *ch, cachedAt: time.Now()}
	s.mu.Unlock()

	copied := *ch
	return &copied, nil
}

// ListActive возвращает активные каналы.
func (s *Service) ListActive(ctx context.Context) ([]domain.Channel, error) {
	s.mu.RLock()
	if s.activeSet && time.Since(s.activeAt) < s.ttl {
		channels := make([]domain.Channel, len(s.active))
		copy(channels, s.active)
		s.mu.RUnlock()
		return channels, nil
	}
	s.mu.RUnlock()

	channels, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.active = make([]domain.Channel, len(channels))
	copy(s.active, channels)
	s.activeAt = time.Now()
	s.activeSet = true
	s.mu.Unlock()

	return channels, nil
}

// Invalidate сбрасывает кэш канала после внешнего обновления.
func (s *Service) Invalidate(id uuid.UUID) {
	s.mu.Lock()
	delete(s.byID, id)
	s.activeSet = false
	s.mu.Unlock()
}

// InvalidateAll сбрасывает весь кэш.
func (s *Service) InvalidateAll() {
	s.mu.Lock()
	s.byID = make(map[uuid.UUID]cacheEntry)
	s.activeSet = false
	s.mu.Unlock()
}
