package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job — единица работы: одно исходное видео, проходящее стадии
// конвейера для одного канала.
//
// Job создаётся когда:
// - Scraper-триггер находит новое видео у источника
// - Оператор добавляет видео вручную (через API/CLI)
//
// Job мутируется только Queue Service и Pipeline Service.
// Терминальные jobs (SUCCEEDED/FAILED/CANCELLED) сохраняются для аудита.
type Job struct {
	// ID — уникальный идентификатор job.
	ID uuid.UUID `json:"id"`

	// ChannelID — ссылка на канал, для которого выполняется job.
	ChannelID uuid.UUID `json:"channel_id"`

	// Stage — текущая стадия конвейера.
	Stage Stage `json:"stage"`

	// Status — текущий статус выполнения.
	Status JobStatus `json:"status"`

	// Attempt — номер попытки текущей стадии (начиная с 1).
	// Сбрасывается при переходе на следующую стадию,
	// сохраняется при crash recovery.
	Attempt int `json:"attempt"`

	// Payload — opaque данные, передаваемые между стадиями:
	// source URL → локальный файл → обработанный файл → подтверждение публикации.
	// Содержит dedupe_token для идемпотентности внешних side effects.
	Payload map[string]any `json:"payload,omitempty"`

	// SlotID — зарезервированный publish slot (перед стадией DISTRIBUTE).
	SlotID *uuid.UUID `json:"slot_id,omitempty"`

	// AwaitingSlot — job завершил TRANSFORM, но слот публикации
	// ещё не получен; остаётся PENDING до освобождения слота.
	AwaitingSlot bool `json:"awaiting_slot,omitempty"`

	// NotBefore — job не должен выбираться из очереди раньше этого времени.
	// Используется для backoff между retry и для ожидания слота.
	NotBefore *time.Time `json:"not_before,omitempty"`

	// CancelRequested — оператор запросил отмену RUNNING job.
	// Отмена кооперативная: executor сигнализируется, но не убивается.
	CancelRequested bool `json:"cancel_requested,omitempty"`

	// Error — текст последней ошибки. Для FAILED сохраняется дословно.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения текущей стадии.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время достижения терминального статуса.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// LastHeartbeat — последний heartbeat активного executor'а.
	// RUNNING jobs с протухшим heartbeat возвращаются в PENDING.
	LastHeartbeat *time.Time `json:"last_heartbeat,omitempty"`

	// CreatedAt — время создания job.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsFinished возвращает true, если job в терминальном статусе.
func (j *Job) IsFinished() bool {
	return j.Status.IsTerminal()
}

// Runnable проверяет, можно ли выбирать job из очереди в момент now.
func (j *Job) Runnable(now time.Time) bool {
	if j.Status != JobStatusPending {
		return false
	}
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	return true
}

// MarkRunning переводит job в RUNNING и увеличивает счётчик попыток.
func (j *Job) MarkRunning() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.Attempt++
	j.StartedAt = &now
	j.LastHeartbeat = &now
	j.NotBefore = nil
	j.UpdatedAt = now
}

// MarkPendingRetry возвращает job в PENDING для повторной попытки
// той же стадии не раньше notBefore.
func (j *Job) MarkPendingRetry(errMsg string, notBefore time.Time) {
	j.Status = JobStatusPending
	j.Error = errMsg
	j.NotBefore = &notBefore
	j.StartedAt = nil
	j.LastHeartbeat = nil
	j.UpdatedAt = time.Now()
}

// AdvanceStage переводит job на следующую стадию.
// Счётчик попыток сбрасывается: retry-лимит действует на каждую стадию.
func (j *Job) AdvanceStage(next Stage, payload map[string]any) {
	j.Stage = next
	j.Status = JobStatusPending
	j.Attempt = 0
	j.Payload = payload
	j.Error = ""
	j.NotBefore = nil
	j.StartedAt = nil
	j.LastHeartbeat = nil
	j.UpdatedAt = time.Now()
}

// AdvanceToDistribute переводит job на стадию DISTRIBUTE с привязанным
// слотом публикации. Стадия не выбирается из очереди раньше времени
// слота.
func (j *Job) AdvanceToDistribute(payload map[string]any, slotID uuid.UUID, publishAt time.Time) {
	j.AdvanceStage(StageDistribute, payload)
	j.SlotID = &slotID
	j.AwaitingSlot = false
	j.NotBefore = &publishAt
}

// HoldForSlot оставляет job PENDING на текущей стадии до retryAt:
// слот публикации не получен, TRANSFORM завершён.
func (j *Job) HoldForSlot(payload map[string]any, retryAt time.Time) {
	j.Status = JobStatusPending
	j.Payload = payload
	j.AwaitingSlot = true
	j.Attempt = 0
	j.NotBefore = &retryAt
	j.StartedAt = nil
	j.LastHeartbeat = nil
	j.UpdatedAt = time.Now()
}

// MarkSucceeded переводит job в SUCCEEDED.
func (j *Job) MarkSucceeded(payload map[string]any) {
	now := time.Now()
	j.Stage = StageDone
	j.Status = JobStatusSucceeded
	j.Payload = payload
	j.AwaitingSlot = false
	j.FinishedAt = &now
	j.LastHeartbeat = nil
	j.UpdatedAt = now
}

// MarkFailed переводит job в FAILED с дословным сохранением ошибки.
func (j *Job) MarkFailed(errMsg string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.Error = errMsg
	j.FinishedAt = &now
	j.LastHeartbeat = nil
	j.UpdatedAt = now
}

// MarkCancelled переводит job в CANCELLED.
func (j *Job) MarkCancelled() {
	now := time.Now()
	j.Status = JobStatusCancelled
	j.CancelRequested = false
	j.FinishedAt = &now
	j.LastHeartbeat = nil
	j.UpdatedAt = now
}

// ResetToPending возвращает RUNNING job в PENDING после нечистого
// завершения процесса. Attempt сохраняется: прошлая попытка считается
// израсходованной, executor обязан переживать повторный вызов.
func (j *Job) ResetToPending() {
	j.Status = JobStatusPending
	j.StartedAt = nil
	j.LastHeartbeat = nil
	j.UpdatedAt = time.Now()
}

// DedupeToken возвращает токен идемпотентности из payload.
func (j *Job) DedupeToken() string {
	if j.Payload == nil {
		return ""
	}
	token, _ := j.Payload["dedupe_token"].(string)
	return token
}
