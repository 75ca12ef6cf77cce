package mq

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dkurenkov/vidpipe/internal/domain"
)

// Notifier — best-effort адаптер событий конвейера к Publisher.
//
// Реализует интерфейсы Notifier пакетов queue и pipeline. Ошибки
// публикации логируются и не влияют на жизненный цикл job: источник
// истины — Postgres, MQ лишь сигнальный слой.
type Notifier struct {
	publisher *Publisher
	logger    *slog.Logger
}

// NewNotifier создаёт новый Notifier.
func NewNotifier(publisher *Publisher, logger *slog.Logger) *Notifier {
	return &Notifier{
		publisher: publisher,
		logger:    logger,
	}
}

// JobEnqueued сигнализирует оркестратору о новом job.
func (n *Notifier) JobEnqueued(ctx context.Context, job *domain.Job) {
	if err := n.publisher.PublishJobEnqueued(ctx, job.ID, job.ChannelID); err != nil {
		n.logger.Warn("publish job.enqueued failed", "job_id", job.ID, "error", err)
	}
}

// JobFinished публикует событие о терминальном статусе job.
func (n *Notifier) JobFinished(ctx context.Context, job *domain.Job) {
	payload := JobFinishedPayload{
		JobID:     job.ID,
		ChannelID: job.ChannelID,
		Status:    string(job.Status),
		Stage:     string(job.Stage),
		Error:     job.Error,
	}
	if err := n.publisher.PublishJobFinished(ctx, payload); err != nil {
		n.logger.Warn("publish job.finished failed", "job_id", job.ID, "error", err)
	}
}

// PublishConfirmed публикует событие о подтверждённой публикации.
func (n *Notifier) PublishConfirmed(ctx context.Context, job *domain.Job, slotID uuid.UUID, publishedAt time.Time) {
	payload := PublishConfirmedPayload{
		JobID:       job.ID,
		ChannelID:   job.ChannelID,
		SlotID:      slotID,
		PublishedAt: publishedAt,
	}
	if err := n.publisher.PublishPublishConfirmed(ctx, payload); err != nil {
		n.logger.Warn("publish publish.confirmed failed", "job_id", job.ID, "error", err)
	}
}
