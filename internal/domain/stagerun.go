package domain

import (
	"time"

	"github.com/google/uuid"
)

// StageRun — аудит-запись одного вызова stage executor'а.
//
// Создаётся Pipeline Service на каждый вызов executor'а, включая
// неудачные попытки. История StageRun никогда не удаляется —
// по ней оператор видит, что именно происходило с job.
type StageRun struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// JobID — job, для которого выполнялась стадия.
	JobID uuid.UUID `json:"job_id"`

	// ChannelID — канал job (денормализовано для выборок по каналу).
	ChannelID uuid.UUID `json:"channel_id"`

	// Stage — выполнявшаяся стадия.
	Stage Stage `json:"stage"`

	// Attempt — номер попытки стадии.
	Attempt int `json:"attempt"`

	// Outcome — результат вызова.
	Outcome StageRunOutcome `json:"outcome"`

	// Fatal — ошибка была классифицирована как fatal (без retry).
	Fatal bool `json:"fatal,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала вызова executor'а.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения вызова.
	FinishedAt time.Time `json:"finished_at"`
}

// Duration возвращает продолжительность вызова executor'а.
func (r *StageRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
