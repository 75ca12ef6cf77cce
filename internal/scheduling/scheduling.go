package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dkurenkov/vidpipe/internal/domain"
	"github.com/dkurenkov/vidpipe/internal/repo"
	"github.com/dkurenkov/vidpipe/internal/telemetry"
)

// DefaultHorizon — как далеко вперёд сервис ищет свободное время
// публикации, прежде чем сдаться с ErrUnavailable.
const DefaultHorizon = 14 * 24 * time.Hour

// SlotStore — хранилище слотов публикации.
// Реализуется repo.SlotRepo.
type SlotStore interface {
	Reserve(ctx context.Context, slot *domain.ScheduleSlot) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduleSlot, error)
	Release(ctx context.Context, id uuid.UUID) error
	Confirm(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
	LatestForChannel(ctx context.Context, channelID uuid.UUID) (*domain.ScheduleSlot, error)
	ListByChannel(ctx context.Context, channelID uuid.UUID, from time.Time, limit int) ([]domain.ScheduleSlot, error)
}

// Config — конфигурация Service.
type Config struct {
	// Store — хранилище слотов.
	Store SlotStore
	// Horizon — горизонт планирования. 0 = DefaultHorizon.
	Horizon time.Duration
	// Logger — логгер.
	Logger *slog.Logger
}

// Service — сервис планирования публикаций.
type Service struct {
	store   SlotStore
	horizon time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// New создаёт новый Service.
func New(cfg Config) *Service {
	horizon := cfg.Horizon
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	return &Service{
		store:   cfg.Store,
		horizon: horizon,
		logger:  cfg.Logger,
		now:     time.Now,
	}
}

// Reserve находит и резервирует ближайшее допустимое время публикации
// для job на канале, не раньше earliest.
//
// Перебирает кандидатов по cadence канала. Конфликт резервации
// (другой job успел занять то же время) — не ошибка: сервис берёт
// следующего кандидата. Если до конца горизонта свободного времени
// нет — ErrUnavailable.
func (s *Service) Reserve(ctx context.Context, ch *domain.Channel, jobID uuid.UUID, earliest time.Time) (*domain.ScheduleSlot, error) {
	now := s.now().UTC()
	if earliest.Before(now) {
		earliest = now
	}

	candidate, err := s.firstCandidate(ctx, ch, earliest)
	if err != nil {
		return nil, err
	}

	deadline := now.Add(s.horizon)
	for !candidate.After(deadline) {
		slot := &domain.ScheduleSlot{
			ID:        uuid.New(),
			ChannelID: ch.ID,
			PublishAt: candidate,
			JobID:     jobID,
			CreatedAt: now,
		}

		err := s.store.Reserve(ctx, slot)
		if err == nil {
			s.logger.Info("publish slot reserved",
				"slot_id", slot.ID,
				"channel_id", ch.ID,
				"job_id", jobID,
				"publish_at", candidate,
			)
			return slot, nil
		}
		if !errors.Is(err, repo.ErrAlreadyExists) {
			return nil, fmt.Errorf("reserve slot: %w", err)
		}

		// Время занято — берём следующего кандидата.
		telemetry.SlotConflicts.Inc()
		candidate, err = nextCandidate(ch, candidate)
		if err != nil {
			return nil, err
		}
	}

	s.logger.Warn("no publish slot within horizon",
		"channel_id", ch.ID,
		"job_id", jobID,
		"horizon", s.horizon,
	)
	return nil, ErrUnavailable
}

// firstCandidate вычисляет первое допустимое время публикации не
// раньше earliest, с учётом последней уже зарезервированной публикации
// канала.
func (s *Service) firstCandidate(ctx context.Context, ch *domain.Channel, earliest time.Time) (time.Time, error) {
	var lastPublish *time.Time
	latest, err := s.store.LatestForChannel(ctx, ch.ID)
	switch {
	case err == nil:
		lastPublish = &latest.PublishAt
	case errors.Is(err, repo.ErrNotFound):
		// Первая публикация канала.
	default:
		return time.Time{}, fmt.Errorf("latest slot: %w", err)
	}

	candidate := alignToSpacing(ch, earliest.UTC(), lastPublish)
	if ch.PublishCron != "" {
		// Сдвигаем на ближайшее cron-окно. Parse в nextCandidate
		// стартует строго после from, поэтому отступаем на секунду,
		// чтобы не пропустить окно ровно в candidate.
		return nextCandidate(ch, candidate.Add(-time.Second))
	}
	return candidate, nil
}

// ReleaseSlot освобождает неиспользованную резервацию.
// Идемпотентен: уже освобождённый или подтверждённый слот — no-op.
func (s *Service) ReleaseSlot(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Release(ctx, id); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

// ConfirmPublish помечает слот использованным после фактической
// публикации.
//
// Публикация раньше зарезервированного времени — нарушение cadence,
// возвращается ErrEarlyPublish и слот остаётся незанятым.
func (s *Service) ConfirmPublish(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	slot, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrSlotNotFound
		}
		return fmt.Errorf("get slot: %w", err)
	}
	if slot.IsConsumed() {
		return ErrSlotConsumed
	}
	if publishedAt.Before(slot.PublishAt) {
		return fmt.Errorf("%w: published at %s, slot at %s",
			ErrEarlyPublish, publishedAt.UTC().Format(time.RFC3339), slot.PublishAt.UTC().Format(time.RFC3339))
	}

	if err := s.store.Confirm(ctx, id, publishedAt.UTC()); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return ErrSlotNotFound
		case errors.Is(err, repo.ErrInvalidState):
			return ErrSlotConsumed
		default:
			return fmt.Errorf("confirm slot: %w", err)
		}
	}

	s.logger.Info("publish confirmed",
		"slot_id", id,
		"channel_id", slot.ChannelID,
		"job_id", slot.JobID,
		"published_at", publishedAt,
	)
	return nil
}

// Upcoming возвращает предстоящие слоты канала.
func (s *Service) Upcoming(ctx context.Context, channelID uuid.UUID, limit int) ([]domain.ScheduleSlot, error) {
	if limit <= 0 {
		limit = 50
	}
	slots, err := s.store.ListByChannel(ctx, channelID, s.now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list upcoming slots: %w", err)
	}
	return slots, nil
}
