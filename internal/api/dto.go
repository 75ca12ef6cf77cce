package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/dkurenkov/vidpipe/internal/domain"
)

// Job DTOs

// EnqueueJobRequest — запрос на постановку job в очередь.
type EnqueueJobRequest struct {
	ChannelID uuid.UUID      `json:"channel_id"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// JobResponse — ответ с job.
type JobResponse struct {
	ID              uuid.UUID        `json:"id"`
	ChannelID       uuid.UUID        `json:"channel_id"`
	Stage           domain.Stage     `json:"stage"`
	Status          domain.JobStatus `json:"status"`
	Attempt         int              `json:"attempt"`
	Payload         map[string]any   `json:"payload,omitempty"`
	SlotID          *uuid.UUID       `json:"slot_id,omitempty"`
	AwaitingSlot    bool             `json:"awaiting_slot,omitempty"`
	NotBefore       *time.Time       `json:"not_before,omitempty"`
	CancelRequested bool             `json:"cancel_requested,omitempty"`
	Error           string           `json:"error,omitempty"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	FinishedAt      *time.Time       `json:"finished_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// JobFromDomain конвертирует domain.Job в JobResponse.
func JobFromDomain(j domain.Job) JobResponse {
	return JobResponse{
		ID:              j.ID,
		ChannelID:       j.ChannelID,
		Stage:           j.Stage,
		Status:          j.Status,
		Attempt:         j.Attempt,
		Payload:         j.Payload,
		SlotID:          j.SlotID,
		AwaitingSlot:    j.AwaitingSlot,
		NotBefore:       j.NotBefore,
		CancelRequested: j.CancelRequested,
		Error:           j.Error,
		StartedAt:       j.StartedAt,
		FinishedAt:      j.FinishedAt,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}
}

// StageRunResponse — ответ с аудит-записью вызова executor'а.
type StageRunResponse struct {
	ID         uuid.UUID              `json:"id"`
	Stage      domain.Stage           `json:"stage"`
	Attempt    int                    `json:"attempt"`
	Outcome    domain.StageRunOutcome `json:"outcome"`
	Fatal      bool                   `json:"fatal,omitempty"`
	Error      string                 `json:"error,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	DurationMS int64                  `json:"duration_ms"`
}

// StageRunFromDomain конвертирует domain.StageRun в StageRunResponse.
func StageRunFromDomain(r domain.StageRun) StageRunResponse {
	return StageRunResponse{
		ID:         r.ID,
		Stage:      r.Stage,
		Attempt:    r.Attempt,
		Outcome:    r.Outcome,
		Fatal:      r.Fatal,
		Error:      r.Error,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		DurationMS: r.Duration().Milliseconds(),
	}
}

// Channel DTOs

// ChannelResponse — ответ с конфигурацией канала.
type ChannelResponse struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Active           bool      `json:"active"`
	ConcurrencyLimit int       `json:"concurrency_limit"`
	ScrapeSource     string    `json:"scrape_source,omitempty"`
	PresetID         string    `json:"preset_id,omitempty"`
	MusicTag         string    `json:"music_tag,omitempty"`
	MinSpacingSec    int       `json:"min_spacing_sec"`
	PublishCron      string    `json:"publish_cron,omitempty"`
	Timezone         string    `json:"timezone"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ChannelFromDomain конвертирует domain.Channel в ChannelResponse.
func ChannelFromDomain(c domain.Channel) ChannelResponse {
	return ChannelResponse{
		ID:               c.ID,
		Name:             c.Name,
		Active:           c.Active,
		ConcurrencyLimit: c.ConcurrencyLimit,
		ScrapeSource:     c.ScrapeSource,
		PresetID:         c.PresetID,
		MusicTag:         c.MusicTag,
		MinSpacingSec:    int(c.MinSpacing.Seconds()),
		PublishCron:      c.PublishCron,
		Timezone:         c.Timezone,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

// Slot DTOs

// SlotResponse — ответ со слотом публикации.
type SlotResponse struct {
	ID         uuid.UUID  `json:"id"`
	ChannelID  uuid.UUID  `json:"channel_id"`
	PublishAt  time.Time  `json:"publish_at"`
	JobID      uuid.UUID  `json:"job_id"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// SlotFromDomain конвертирует domain.ScheduleSlot в SlotResponse.
func SlotFromDomain(s domain.ScheduleSlot) SlotResponse {
	return SlotResponse{
		ID:         s.ID,
		ChannelID:  s.ChannelID,
		PublishAt:  s.PublishAt,
		JobID:      s.JobID,
		ConsumedAt: s.ConsumedAt,
		CreatedAt:  s.CreatedAt,
	}
}

// Control DTOs

// OrchestrationStateResponse — ответ с глобальным состоянием.
type OrchestrationStateResponse struct {
	Phase       domain.OrchestrationPhase `json:"phase"`
	Running     bool                      `json:"running"`
	Paused      bool                      `json:"paused"`
	QueuePaused bool                      `json:"queue_paused"`
	ActiveJobs  int                       `json:"active_jobs"`
}
