package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkurenkov/vidpipe/internal/domain"
	"github.com/dkurenkov/vidpipe/internal/mq"
	"github.com/dkurenkov/vidpipe/internal/queue"
	"github.com/dkurenkov/vidpipe/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval    = 10 * time.Second
	defaultReclaimInterval = time.Minute
	defaultStaleAfter      = 2 * time.Minute
)

// Claimer — выборка runnable jobs (queue.Service).
type Claimer interface {
	NextRunnable(ctx context.Context, channel *domain.Channel) (*domain.Job, error)
}

// Advancer — выполнение одной стадии job (pipeline.Service).
type Advancer interface {
	Advance(ctx context.Context, job *domain.Job) error
}

// Channels — источник активных каналов (channelcfg.Service).
type Channels interface {
	ListActive(ctx context.Context) ([]domain.Channel, error)
}

// Recovery — восстановление jobs после нечистого завершения
// (repo.JobRepo).
type Recovery interface {
	ResetRunning(ctx context.Context) (int64, error)
	ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Flags — durable флаги состояния (repo.SettingsRepo).
type Flags interface {
	GetBool(ctx context.Context, key string, fallback bool) (bool, error)
	SetBool(ctx context.Context, key string, value bool) error
}

// Orchestrator — Central Orchestration Service.
type Orchestrator struct {
	queue    Claimer
	pipeline Advancer
	channels Channels
	recovery Recovery
	flags    Flags

	// MQ — опционально: без брокера остаётся polling.
	conn        *mq.Connection
	jobConsumer *mq.Consumer

	pollInterval    time.Duration
	reclaimInterval time.Duration
	staleAfter      time.Duration

	// wake будит dispatch-цикл раньше очередного тика.
	wake chan struct{}

	// activeJobs — jobs, стадии которых выполняются прямо сейчас.
	activeJobs map[uuid.UUID]struct{}
	mu         sync.Mutex

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Orchestrator.
type Config struct {
	Queue    Claimer
	Pipeline Advancer
	Channels Channels
	Recovery Recovery
	Flags    Flags

	// Conn — соединение с RabbitMQ (опционально).
	Conn *mq.Connection

	// PollInterval — интервал dispatch-цикла (default: 10s).
	PollInterval time.Duration
	// ReclaimInterval — период поиска jobs с протухшим heartbeat.
	ReclaimInterval time.Duration
	// StaleAfter — возраст heartbeat, после которого claim считается
	// брошенным.
	StaleAfter time.Duration

	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	reclaimInterval := cfg.ReclaimInterval
	if reclaimInterval <= 0 {
		reclaimInterval = defaultReclaimInterval
	}
	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		queue:           cfg.Queue,
		pipeline:        cfg.Pipeline,
		channels:        cfg.Channels,
		recovery:        cfg.Recovery,
		flags:           cfg.Flags,
		conn:            cfg.Conn,
		pollInterval:    pollInterval,
		reclaimInterval: reclaimInterval,
		staleAfter:      staleAfter,
		wake:            make(chan struct{}, 1),
		activeJobs:      make(map[uuid.UUID]struct{}),
		logger:          logger,
	}
}

// Run запускает фоновые циклы оркестратора.
//
// Перед первым dispatch выполняется crash recovery: все RUNNING jobs
// возвращаются в PENDING с сохранением счётчика попыток. Дальше
// работают dispatch-цикл, reclaim-цикл и (при наличии брокера)
// consumer сигналов job.enqueued.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	if err := o.recover(ctx); err != nil {
		return err
	}

	o.logger.Info("starting orchestrator",
		"poll_interval", o.pollInterval,
		"reclaim_interval", o.reclaimInterval,
	)

	if o.conn != nil {
		o.jobConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueJobsEnqueued),
			Handler:  o.handleJobEnqueued,
			Prefetch: 10,
		})

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.jobConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("job consumer error", "error", err)
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.reclaimLoop(ctx)
	}()

	o.logger.Info("orchestrator started")

	o.dispatchLoop(ctx)
	return nil
}

// Stop останавливает фоновые циклы и дожидается in-flight стадий.
func (o *Orchestrator) Stop() {
	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}
	if o.jobConsumer != nil {
		o.jobConsumer.Stop()
	}

	o.wg.Wait()

	o.logger.Info("orchestrator stopped")
}

// recover возвращает RUNNING jobs в PENDING после нечистого завершения.
func (o *Orchestrator) recover(ctx context.Context) error {
	count, err := o.recovery.ResetRunning(ctx)
	if err != nil {
		return fmt.Errorf("reset running jobs: %w", err)
	}
	if count > 0 {
		telemetry.JobsRecovered.WithLabelValues("restart").Add(float64(count))
		o.logger.Warn("recovered jobs after restart", "count", count)
	}
	return nil
}

// handleJobEnqueued — обработчик сигнала job.enqueued.
// Сообщение лишь будит dispatch-цикл: сам job берётся из Postgres.
func (o *Orchestrator) handleJobEnqueued(ctx context.Context, msg *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.JobEnqueuedPayload](&msg.Message)
	if err != nil {
		return fmt.Errorf("parse job.enqueued: %w", err)
	}

	o.logger.Debug("job enqueued signal", "job_id", payload.JobID)
	o.Wake()
	return nil
}

// Wake будит dispatch-цикл раньше очередного тика.
func (o *Orchestrator) Wake() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// dispatchLoop — главный цикл: по тику или сигналу пробуждения
// выбирает runnable jobs для всех активных каналов.
func (o *Orchestrator) dispatchLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	// Первый dispatch сразу: подхватываем jobs, накопившиеся
	// пока процесс был выключен.
	o.dispatch(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.dispatch(ctx)
		case <-o.wake:
			o.dispatch(ctx)
		}
	}
}

// dispatch выполняет один цикл: для каждого активного канала забирает
// runnable jobs, пока очередь их выдаёт, и запускает стадии.
func (o *Orchestrator) dispatch(ctx context.Context) {
	state, err := o.State(ctx)
	if err != nil {
		o.logger.Error("read orchestration state", "error", err)
		return
	}
	if !state.Dispatchable() {
		return
	}

	channels, err := o.channels.ListActive(ctx)
	if err != nil {
		o.logger.Error("list active channels", "error", err)
		return
	}

	for i := range channels {
		channel := &channels[i]
		o.dispatchChannel(ctx, channel)
	}
}

// dispatchChannel забирает jobs одного канала до ErrNoRunnable.
// Concurrency limit канала применяется внутри claim'а атомарно.
func (o *Orchestrator) dispatchChannel(ctx context.Context, channel *domain.Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := o.queue.NextRunnable(ctx, channel)
		if err != nil {
			if !errors.Is(err, queue.ErrNoRunnable) {
				o.logger.Error("claim next job",
					"channel_id", channel.ID,
					"error", err,
				)
			}
			return
		}

		o.startJob(ctx, job)
	}
}

// startJob запускает выполнение стадии в отдельной горутине.
func (o *Orchestrator) startJob(ctx context.Context, job *domain.Job) {
	o.mu.Lock()
	o.activeJobs[job.ID] = struct{}{}
	o.mu.Unlock()

	telemetry.DispatchActive.Inc()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			o.mu.Lock()
			delete(o.activeJobs, job.ID)
			o.mu.Unlock()
			telemetry.DispatchActive.Dec()
			// Стадия завершилась — возможно, job снова runnable.
			o.Wake()
		}()

		if err := o.pipeline.Advance(ctx, job); err != nil {
			o.logger.Error("advance job failed",
				"job_id", job.ID,
				"channel_id", job.ChannelID,
				"stage", job.Stage,
				"error", err,
			)
		}
	}()
}

// ActiveJobsCount возвращает количество выполняющихся стадий.
func (o *Orchestrator) ActiveJobsCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.activeJobs)
}

// reclaimLoop периодически возвращает в PENDING jobs с протухшим
// heartbeat: их процесс-владелец умер, не дойдя до recovery при
// рестарте (например, убит SIGKILL на другом инстансе).
func (o *Orchestrator) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(o.reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-o.staleAfter)
			count, err := o.recovery.ReclaimStale(ctx, cutoff)
			if err != nil {
				o.logger.Error("reclaim stale jobs", "error", err)
				continue
			}
			if count > 0 {
				telemetry.JobsRecovered.WithLabelValues("stale").Add(float64(count))
				o.logger.Warn("reclaimed stale jobs", "count", count)
				o.Wake()
			}
		}
	}
}
