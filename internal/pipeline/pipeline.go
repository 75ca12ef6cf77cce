package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dkurenkov/vidpipe/internal/domain"
	"github.com/dkurenkov/vidpipe/internal/scheduling"
	"github.com/dkurenkov/vidpipe/internal/stage"
	"github.com/dkurenkov/vidpipe/internal/telemetry"
)

// defaultHeartbeatInterval — период heartbeat во время работы executor'а.
const defaultHeartbeatInterval = 30 * time.Second

// defaultSlotRetryDelay — через сколько повторять поиск слота,
// когда в горизонте планирования нет свободного времени.
const defaultSlotRetryDelay = 30 * time.Minute

// Transitions — переходы жизненного цикла job (queue.Service).
// Все методы работают с job, claim которого принадлежит вызывающему.
type Transitions interface {
	CompleteStage(ctx context.Context, job *domain.Job, next domain.Stage, payload map[string]any) error
	ScheduleDistribution(ctx context.Context, job *domain.Job, payload map[string]any, slotID uuid.UUID, publishAt time.Time) error
	HoldAwaitingSlot(ctx context.Context, job *domain.Job, payload map[string]any, retryAt time.Time) error
	Succeed(ctx context.Context, job *domain.Job, payload map[string]any) error
	ScheduleRetry(ctx context.Context, job *domain.Job, errMsg string, notBefore time.Time) error
	Fail(ctx context.Context, job *domain.Job, errMsg string) error
	FinishCancelled(ctx context.Context, job *domain.Job) error
	Heartbeat(ctx context.Context, id uuid.UUID) error
}

// Slots — операции планирования публикаций (scheduling.Service).
type Slots interface {
	Reserve(ctx context.Context, ch *domain.Channel, jobID uuid.UUID, earliest time.Time) (*domain.ScheduleSlot, error)
	ConfirmPublish(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
}

// ChannelSource — источник конфигурации каналов (channelcfg.Service).
type ChannelSource interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Channel, error)
}

// JobReader — чтение актуального состояния job из хранилища.
// Нужен для опроса флага cancel_requested во время работы executor'а.
type JobReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
}

// AuditLog — журнал вызовов executor'ов (repo.StageRunRepo).
type AuditLog interface {
	Create(ctx context.Context, run *domain.StageRun) error
}

// Notifier — необязательные уведомления о событиях конвейера (MQ).
type Notifier interface {
	JobFinished(ctx context.Context, job *domain.Job)
	PublishConfirmed(ctx context.Context, job *domain.Job, slotID uuid.UUID, publishedAt time.Time)
}

// Config — конфигурация Service.
type Config struct {
	Queue    Transitions
	Slots    Slots
	Channels ChannelSource
	Jobs     JobReader
	Registry *stage.Registry
	Policies PolicySource
	Audit    AuditLog
	Notifier Notifier // опционально
	Logger   *slog.Logger

	// HeartbeatInterval — период heartbeat. 0 = default.
	HeartbeatInterval time.Duration
	// SlotRetryDelay — задержка перед повторным поиском слота. 0 = default.
	SlotRetryDelay time.Duration
}

// Service — Pipeline Service.
type Service struct {
	queue    Transitions
	slots    Slots
	channels ChannelSource
	jobs     JobReader
	registry *stage.Registry
	policies PolicySource
	audit    AuditLog
	notifier Notifier
	logger   *slog.Logger

	heartbeatInterval time.Duration
	slotRetryDelay    time.Duration
}

// New создаёт Pipeline Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	slotRetry := cfg.SlotRetryDelay
	if slotRetry <= 0 {
		slotRetry = defaultSlotRetryDelay
	}
	return &Service{
		queue:             cfg.Queue,
		slots:             cfg.Slots,
		channels:          cfg.Channels,
		jobs:              cfg.Jobs,
		registry:          cfg.Registry,
		policies:          cfg.Policies,
		audit:             cfg.Audit,
		notifier:          cfg.Notifier,
		logger:            logger,
		heartbeatInterval: heartbeat,
		slotRetryDelay:    slotRetry,
	}
}

// Advance выполняет одну стадию claim'нутого (RUNNING) job и переводит
// его в следующее состояние. После возврата claim считается
// израсходованным: job либо снова PENDING, либо в терминальном статусе.
func (s *Service) Advance(ctx context.Context, job *domain.Job) error {
	logger := s.logger.With(
		"job_id", job.ID,
		"channel_id", job.ChannelID,
		"stage", job.Stage,
		"attempt", job.Attempt,
	)

	channel, err := s.channels.Get(ctx, job.ChannelID)
	if err != nil {
		return fmt.Errorf("get channel %s: %w", job.ChannelID, err)
	}

	if job.CancelRequested {
		logger.Info("job cancelled before stage start")
		if err := s.queue.FinishCancelled(ctx, job); err != nil {
			return err
		}
		s.notifyFinished(ctx, job)
		return nil
	}

	// TRANSFORM уже выполнен, job ждал слот публикации.
	if job.AwaitingSlot {
		return s.scheduleDistribution(ctx, channel, job, job.Payload)
	}

	executor, err := s.registry.Get(job.Stage)
	if err != nil {
		// Стадия без executor'а — ошибка конфигурации, retry бессмысленен.
		logger.Error("no executor for stage", "error", err)
		if failErr := s.queue.Fail(ctx, job, err.Error()); failErr != nil {
			return failErr
		}
		s.notifyFinished(ctx, job)
		return nil
	}

	policy := loadPolicy(ctx, s.policies, job.Stage)
	result, cancelled, execErr := s.execute(ctx, executor, job, channel, policy)
	if cancelled {
		logger.Info("job cancelled during stage")
		if err := s.queue.FinishCancelled(ctx, job); err != nil {
			return err
		}
		s.notifyFinished(ctx, job)
		return nil
	}
	if execErr != nil {
		return s.handleFailure(ctx, logger, job, policy, execErr)
	}

	return s.complete(ctx, logger, channel, job, result)
}

// execute вызывает executor с таймаутом стадии, поддерживая heartbeat
// и опрашивая флаг отмены. Возвращает cancelled=true, если выполнение
// прервано по запросу оператора.
func (s *Service) execute(ctx context.Context, executor stage.Executor, job *domain.Job, channel *domain.Channel, policy domain.RetryPolicy) (*stage.Result, bool, error) {
	execCtx, cancelExec := context.WithTimeout(ctx, policy.Timeout)
	defer cancelExec()

	var cancelSeen atomic.Bool
	stopBeat := make(chan struct{})
	beatDone := make(chan struct{})
	go func() {
		defer close(beatDone)
		ticker := time.NewTicker(s.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stopBeat:
				return
			case <-execCtx.Done():
				return
			case <-ticker.C:
				if err := s.queue.Heartbeat(ctx, job.ID); err != nil {
					s.logger.Warn("heartbeat failed", "job_id", job.ID, "error", err)
				}
				current, err := s.jobs.GetByID(ctx, job.ID)
				if err != nil {
					continue
				}
				if current.CancelRequested {
					cancelSeen.Store(true)
					cancelExec()
					return
				}
			}
		}
	}()

	startedAt := time.Now()
	result, execErr := executor.Execute(execCtx, job, channel)
	finishedAt := time.Now()

	close(stopBeat)
	<-beatDone

	cancelled := cancelSeen.Load()
	if cancelled {
		job.CancelRequested = true
	}

	s.recordRun(ctx, job, startedAt, finishedAt, execErr)

	outcome := string(domain.StageRunSucceeded)
	if execErr != nil {
		outcome = string(domain.StageRunFailed)
	}
	telemetry.StageDuration.WithLabelValues(string(job.Stage), outcome).
		Observe(finishedAt.Sub(startedAt).Seconds())

	if execErr != nil && errors.Is(execErr, context.DeadlineExceeded) && !cancelled {
		execErr = stage.Retryable("stage timed out", execErr)
	}

	return result, cancelled, execErr
}

// recordRun пишет аудит-запись вызова executor'а.
// Ошибка записи не прерывает конвейер.
func (s *Service) recordRun(ctx context.Context, job *domain.Job, startedAt, finishedAt time.Time, execErr error) {
	if s.audit == nil {
		return
	}
	run := &domain.StageRun{
		ID:         uuid.New(),
		JobID:      job.ID,
		ChannelID:  job.ChannelID,
		Stage:      job.Stage,
		Attempt:    job.Attempt,
		Outcome:    domain.StageRunSucceeded,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
	}
	if execErr != nil {
		run.Outcome = domain.StageRunFailed
		run.Fatal = stage.IsFatal(execErr)
		run.Error = execErr.Error()
	}
	if err := s.audit.Create(ctx, run); err != nil {
		s.logger.Warn("write stage run failed", "job_id", job.ID, "error", err)
	}
}

// handleFailure применяет retry-политику к ошибке executor'а.
func (s *Service) handleFailure(ctx context.Context, logger *slog.Logger, job *domain.Job, policy domain.RetryPolicy, execErr error) error {
	msg := execErr.Error()

	if stage.IsFatal(execErr) {
		logger.Error("stage failed fatally", "error", msg)
		if err := s.queue.Fail(ctx, job, msg); err != nil {
			return err
		}
		s.notifyFinished(ctx, job)
		return nil
	}

	if policy.Exhausted(job.Attempt) {
		logger.Error("stage retries exhausted", "error", msg, "max_attempts", policy.MaxAttempts)
		if err := s.queue.Fail(ctx, job, msg); err != nil {
			return err
		}
		s.notifyFinished(ctx, job)
		return nil
	}

	delay := policy.Backoff(job.Attempt)
	logger.Warn("stage failed, retry scheduled", "error", msg, "delay", delay)
	telemetry.StageRetries.WithLabelValues(string(job.Stage)).Inc()
	return s.queue.ScheduleRetry(ctx, job, msg, time.Now().Add(delay))
}

// complete переводит job после успешной стадии.
func (s *Service) complete(ctx context.Context, logger *slog.Logger, channel *domain.Channel, job *domain.Job, result *stage.Result) error {
	payload := job.Payload
	if result != nil && result.Payload != nil {
		payload = result.Payload
	}

	switch job.Stage {
	case domain.StageTransform:
		// Перед DISTRIBUTE нужен publish slot.
		return s.scheduleDistribution(ctx, channel, job, payload)

	case domain.StageDistribute:
		publishedAt := time.Now()
		if result != nil && result.PublishedAt != "" {
			if parsed, err := time.Parse(time.RFC3339, result.PublishedAt); err == nil {
				publishedAt = parsed
			} else {
				logger.Warn("bad published_at from executor", "value", result.PublishedAt)
			}
		}
		if job.SlotID != nil {
			err := s.slots.ConfirmPublish(ctx, *job.SlotID, publishedAt)
			switch {
			case err == nil:
				if s.notifier != nil {
					s.notifier.PublishConfirmed(ctx, job, *job.SlotID, publishedAt)
				}
			case errors.Is(err, scheduling.ErrSlotConsumed):
				// Повторный DISTRIBUTE после recovery — слот уже подтверждён.
			default:
				logger.Warn("confirm publish failed", "slot_id", *job.SlotID, "error", err)
			}
		}
		if err := s.queue.Succeed(ctx, job, payload); err != nil {
			return err
		}
		logger.Info("job succeeded", "published_at", publishedAt)
		s.notifyFinished(ctx, job)
		return nil

	default:
		next, ok := job.Stage.Next()
		if !ok || next == domain.StageDone {
			if err := s.queue.Succeed(ctx, job, payload); err != nil {
				return err
			}
			s.notifyFinished(ctx, job)
			return nil
		}
		return s.queue.CompleteStage(ctx, job, next, payload)
	}
}

// scheduleDistribution резервирует publish slot и переводит job на
// DISTRIBUTE. Если слота нет, результат TRANSFORM сохраняется и job
// ждёт в очереди.
func (s *Service) scheduleDistribution(ctx context.Context, channel *domain.Channel, job *domain.Job, payload map[string]any) error {
	slot, err := s.slots.Reserve(ctx, channel, job.ID, time.Now())
	if err != nil {
		retryAt := time.Now().Add(s.slotRetryDelay)
		if !errors.Is(err, scheduling.ErrUnavailable) {
			// Временная ошибка планировщика: короткая пауза вместо
			// потери результата TRANSFORM.
			s.logger.Warn("slot reservation failed",
				"job_id", job.ID,
				"channel_id", channel.ID,
				"error", err,
			)
			retryAt = time.Now().Add(time.Minute)
		}
		return s.queue.HoldAwaitingSlot(ctx, job, payload, retryAt)
	}

	return s.queue.ScheduleDistribution(ctx, job, payload, slot.ID, slot.PublishAt)
}

func (s *Service) notifyFinished(ctx context.Context, job *domain.Job) {
	if s.notifier != nil {
		s.notifier.JobFinished(ctx, job)
	}
}
