package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dkurenkov/vidpipe/internal/domain"
	"github.com/dkurenkov/vidpipe/internal/repo"
)

// JobQueue — операции очереди, нужные API (queue.Service).
type JobQueue interface {
	Enqueue(ctx context.Context, channelID uuid.UUID, payload map[string]any) (*domain.Job, error)
	Cancel(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Paused(ctx context.Context) (bool, error)
}

// Control — control-операции оркестрации (orchestrator.Orchestrator).
type Control interface {
	State(ctx context.Context) (domain.OrchestrationState, error)
	Start(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Shutdown(ctx context.Context) error
	ActiveJobsCount() int
}

// Slots — чтение и подтверждение слотов (scheduling.Service).
type Slots interface {
	Upcoming(ctx context.Context, channelID uuid.UUID, limit int) ([]domain.ScheduleSlot, error)
}

// ChannelCache — кэш конфигурации каналов (channelcfg.Service).
type ChannelCache interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Channel, error)
	ListActive(ctx context.Context) ([]domain.Channel, error)
	Invalidate(id uuid.UUID)
}

// JobReader — чтение jobs (repo.JobRepo).
type JobReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	List(ctx context.Context, filter repo.JobFilter) ([]domain.Job, error)
}

// StageRunLog — чтение истории стадий (repo.StageRunRepo).
type StageRunLog interface {
	ListByJobID(ctx context.Context, jobID uuid.UUID) ([]domain.StageRun, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	queue     JobQueue
	control   Control
	slots     Slots
	channels  ChannelCache
	jobs      JobReader
	stageRuns StageRunLog
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Queue     JobQueue
	Control   Control
	Slots     Slots
	Channels  ChannelCache
	Jobs      JobReader
	StageRuns StageRunLog
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		queue:     cfg.Queue,
		control:   cfg.Control,
		slots:     cfg.Slots,
		channels:  cfg.Channels,
		jobs:      cfg.Jobs,
		stageRuns: cfg.StageRuns,
		logger:    cfg.Logger,
	}
}
