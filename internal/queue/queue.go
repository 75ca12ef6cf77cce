package queue

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

// JobStore — требования к хранилищу jobs.
//
// Ключевое требование: ClaimNext и UpdateIfStatus атомарны
// на уровне хранилища (conditional update).
type JobStore interface {
	Create(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	UpdateIfStatus(ctx context.Context, job *domain.Job, expected domain.JobStatus) error
	ClaimNext(ctx context.Context, channelID uuid.UUID, limit int) (*domain.Job, error)
	RequestCancel(ctx context.Context, id uuid.UUID) error
	Heartbeat(ctx context.Context, id uuid.UUID) error
	CountByChannelAndStatus(ctx context.Context, channelID uuid.UUID, status domain.JobStatus) (int, error)
}

// ChannelSource — источник конфигурации каналов (channelcfg.Service).
type ChannelSource interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Channel, error)
}

// Flags — durable флаги очереди (repo.SettingsRepo).
type Flags interface {
	GetBool(ctx context.Context, key string, fallback bool) (bool, error)
	SetBool(ctx context.Context, key string, value bool) error
}

// SlotReleaser освобождает publish slot отменённого job
// (scheduling.Service).
type SlotReleaser interface {
	ReleaseSlot(ctx context.Context, token uuid.UUID) error
}

// Notifier — необязательные уведомления о событиях очереди (MQ).
type Notifier interface {
	JobEnqueued(ctx context.Context, job *domain.Job)
}

// Service — Queue Service.
type Service struct {
	store    JobStore
	channels ChannelSource
	flags    Flags
	slots    SlotReleaser
	notifier Notifier
	logger   *slog.Logger
}

// Config — конфигурация Service.
type Config struct {
	Store    JobStore
	Channels ChannelSource
	Flags    Flags
	Slots    SlotReleaser
	Notifier Notifier // опционально
	Logger   *slog.Logger
}

// New создаёт Queue Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    cfg.Store,
		channels: cfg.Channels,
		flags:    cfg.Flags,
		slots:    cfg.Slots,
		notifier: cfg.Notifier,
		logger:   logger,
	}
}

// Enqueue создаёт PENDING job на стадии SCRAPE.
// Возвращает ErrInvalidChannel для несуществующего или неактивного канала.
func (s *Service) Enqueue(ctx context.Context, channelID uuid.UUID, payload map[string]any) (*domain.Job, error) {
	channel, err := s.channels.Get(ctx, channelID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidChannel, channelID)
		}
		return nil, fmt.Errorf("get channel: %w", err)
	}
	if !channel.Active {
		return nil, fmt.Errorf("%w: %s", ErrInvalidChannel, channelID)
	}

	if payload == nil {
		payload = make(map[string]any)
	}
	// Токен идемпотентности для внешних side effects живёт в payload
	// весь жизненный цикл job.
	if _, ok := payload["dedupe_token"]; !ok {
		payload["dedupe_token"] = uuid.New().String()
	}

	now := time.Now()
	job := &domain.Job{
		ID:        uuid.New(),
		ChannelID: channelID,
		Stage:     domain.StageScrape,
		Status:    domain.JobStatusPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	telemetry.JobsEnqueued.WithLabelValues(channelID.String()).Inc()

	s.logger.Info("job enqueued",
		"job_id", job.ID,
		"channel_id", channelID,
	)

	if s.notifier != nil {
		s.notifier.JobEnqueued(ctx, job)
	}

	return job, nil
}

// NextRunnable атомарно выбирает и claim'ит старейший runnable job канала.
//
// Возвращает ErrNoRunnable, если очередь на паузе, канал исчерпал
// concurrency limit или runnable jobs нет. Проигранная гонка за job
// тоже ErrNoRunnable: для вызывающего это "job недоступен".
func (s *Service) NextRunnable(ctx context.Context, channel *domain.Channel) (*domain.Job, error) {
	paused, err := s.flags.GetBool(ctx, domain.SettingQueuePaused, false)
	if err != nil {
		return nil, fmt.Errorf("read queue_paused: %w", err)
	}
	if paused {
		return nil, ErrNoRunnable
	}

	job, err := s.store.ClaimNext(ctx, channel.ID, channel.ConcurrencyLimit)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) || errors.Is(err, repo.ErrConflict) {
			return nil, ErrNoRunnable
		}
		return nil, fmt.Errorf("claim next job: %w", err)
	}

	telemetry.JobsClaimed.WithLabelValues(channel.ID.String()).Inc()

	return job, nil
}

// MarkRunning переводит PENDING job в RUNNING.
// Отдельная точка входа для ручного claim'а; обычный путь — NextRunnable.
func (s *Service) MarkRunning(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusPending {
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, job.Status)
	}
	job.MarkRunning()
	if err := s.update(ctx, job, domain.JobStatusPending); err != nil {
		return nil, err
	}
	return job, nil
}

// MarkSucceeded переводит RUNNING job в SUCCEEDED.
func (s *Service) MarkSucceeded(ctx context.Context, id uuid.UUID, payload map[string]any) (*domain.Job, error) {
	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Succeed(ctx, job, payload); err != nil {
		return nil, err
	}
	return job, nil
}

// MarkFailed переводит RUNNING job в FAILED.
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) (*domain.Job, error) {
	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Fail(ctx, job, errMsg); err != nil {
		return nil, err
	}
	return job, nil
}

// --- Переходы для Pipeline Service ---
// Все принимают job, уже находящийся в RUNNING (claim принадлежит
// вызывающему), и выполняют conditional update с expected=RUNNING.

// CompleteStage переводит RUNNING job на следующую стадию (PENDING).
func (s *Service) CompleteStage(ctx context.Context, job *domain.Job, next domain.Stage, payload map[string]any) error {
	job.AdvanceStage(next, payload)
	if err := s.update(ctx, job, domain.JobStatusRunning); err != nil {
		return err
	}
	s.logger.Info("job advanced",
		"job_id", job.ID,
		"channel_id", job.ChannelID,
		"stage", job.Stage,
	)
	return nil
}

// ScheduleDistribution переводит RUNNING job на стадию DISTRIBUTE
// с привязанным publish slot. Стадия станет runnable не раньше
// времени слота.
func (s *Service) ScheduleDistribution(ctx context.Context, job *domain.Job, payload map[string]any, slotID uuid.UUID, publishAt time.Time) error {
	job.AdvanceToDistribute(payload, slotID, publishAt)
	if err := s.update(ctx, job, domain.JobStatusRunning); err != nil {
		return err
	}
	s.logger.Info("job scheduled for distribution",
		"job_id", job.ID,
		"channel_id", job.ChannelID,
		"slot_id", slotID,
		"publish_at", publishAt,
	)
	return nil
}

// HoldAwaitingSlot оставляет job PENDING на текущей стадии:
// TRANSFORM выполнен, слот публикации не получен.
func (s *Service) HoldAwaitingSlot(ctx context.Context, job *domain.Job, payload map[string]any, retryAt time.Time) error {
	job.HoldForSlot(payload, retryAt)
	if err := s.update(ctx, job, domain.JobStatusRunning); err != nil {
		return err
	}
	s.logger.Info("job awaiting publish slot",
		"job_id", job.ID,
		"channel_id", job.ChannelID,
		"retry_at", retryAt,
	)
	return nil
}

// Succeed переводит RUNNING job в SUCCEEDED.
func (s *Service) Succeed(ctx context.Context, job *domain.Job, payload map[string]any) error {
	job.MarkSucceeded(payload)
	if err := s.update(ctx, job, domain.JobStatusRunning); err != nil {
		return err
	}
	telemetry.JobsFinished.WithLabelValues(string(domain.JobStatusSucceeded)).Inc()
	return nil
}

// ScheduleRetry возвращает RUNNING job в PENDING с backoff.
func (s *Service) ScheduleRetry(ctx context.Context, job *domain.Job, errMsg string, notBefore time.Time) error {
	job.MarkPendingRetry(errMsg, notBefore)
	return s.update(ctx, job, domain.JobStatusRunning)
}

// Fail переводит RUNNING job в FAILED; последняя ошибка сохраняется дословно.
func (s *Service) Fail(ctx context.Context, job *domain.Job, errMsg string) error {
	job.MarkFailed(errMsg)
	if err := s.update(ctx, job, domain.JobStatusRunning); err != nil {
		return err
	}
	telemetry.JobsFinished.WithLabelValues(string(domain.JobStatusFailed)).Inc()
	return nil
}

// FinishCancelled завершает кооперативную отмену RUNNING job.
func (s *Service) FinishCancelled(ctx context.Context, job *domain.Job) error {
	job.MarkCancelled()
	if err := s.update(ctx, job, domain.JobStatusRunning); err != nil {
		return err
	}
	telemetry.JobsFinished.WithLabelValues(string(domain.JobStatusCancelled)).Inc()
	return s.releaseSlot(ctx, job)
}

// Heartbeat обновляет heartbeat активного job.
func (s *Service) Heartbeat(ctx context.Context, id uuid.UUID) error {
	return s.store.Heartbeat(ctx, id)
}

// --- Управление ---

// Pause ставит очередь на паузу: NextRunnable перестаёт выдавать jobs.
// In-flight стадии дорабатывают.
func (s *Service) Pause(ctx context.Context) error {
	if err := s.flags.SetBool(ctx, domain.SettingQueuePaused, true); err != nil {
		return err
	}
	s.logger.Info("queue paused")
	return nil
}

// Resume снимает паузу. FAILED jobs автоматически не ретраятся.
func (s *Service) Resume(ctx context.Context) error {
	if err := s.flags.SetBool(ctx, domain.SettingQueuePaused, false); err != nil {
		return err
	}
	s.logger.Info("queue resumed")
	return nil
}

// Paused возвращает текущее состояние паузы очереди.
func (s *Service) Paused(ctx context.Context) (bool, error) {
	return s.flags.GetBool(ctx, domain.SettingQueuePaused, false)
}

// Cancel отменяет job.
//
// PENDING — атомарный переход в CANCELLED, зарезервированный слот
// освобождается. RUNNING — кооперативно: выставляется
// cancel_requested, executor сигнализируется оркестратором, реальная
// остановка — ответственность executor'а. Терминальные статусы —
// ErrNotCancellable.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case domain.JobStatusPending:
		job.MarkCancelled()
		if err := s.update(ctx, job, domain.JobStatusPending); err != nil {
			return nil, err
		}
		telemetry.JobsFinished.WithLabelValues(string(domain.JobStatusCancelled)).Inc()
		if err := s.releaseSlot(ctx, job); err != nil {
			return nil, err
		}
		s.logger.Info("job cancelled", "job_id", id)
		return job, nil

	case domain.JobStatusRunning:
		if err := s.store.RequestCancel(ctx, id); err != nil {
			if errors.Is(err, repo.ErrInvalidState) {
				// Между load и RequestCancel job успел завершиться.
				return nil, fmt.Errorf("%w: %s", ErrNotCancellable, id)
			}
			return nil, fmt.Errorf("request cancel: %w", err)
		}
		job.CancelRequested = true
		s.logger.Info("job cancel requested", "job_id", id)
		return job, nil

	default:
		return nil, fmt.Errorf("%w: %s is %s", ErrNotCancellable, id, job.Status)
	}
}

// --- Helpers ---

func (s *Service) load(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *Service) update(ctx context.Context, job *domain.Job, expected domain.JobStatus) error {
	err := s.store.UpdateIfStatus(ctx, job, expected)
	if errors.Is(err, repo.ErrInvalidState) {
		return fmt.Errorf("%w: job %s expected %s", ErrInvalidTransition, job.ID, expected)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
	}
	return err
}

func (s *Service) releaseSlot(ctx context.Context, job *domain.Job) error {
	if job.SlotID == nil || s.slots == nil {
		return nil
	}
	if err := s.slots.ReleaseSlot(ctx, *job.SlotID); err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}
