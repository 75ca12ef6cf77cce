package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel — независимо настроенный канал публикации.
//
// Каналы принадлежат внешнему конфигурационному слою; оркестратор
// держит read-only представление с кэшем, инвалидируемым явно.
type Channel struct {
	// ID — уникальный идентификатор канала.
	ID uuid.UUID `json:"id"`

	// Name — имя канала для удобства.
	Name string `json:"name"`

	// Active — неактивные каналы не принимают новые jobs
	// и пропускаются poll-циклом.
	Active bool `json:"active"`

	// ConcurrencyLimit — максимум одновременных RUNNING jobs канала.
	ConcurrencyLimit int `json:"concurrency_limit"`

	// ScrapeSource — источник для стадии SCRAPE (URL/идентификатор).
	ScrapeSource string `json:"scrape_source,omitempty"`

	// PresetID — пресет трансформации, применяемый к видео канала.
	PresetID string `json:"preset_id,omitempty"`

	// MusicTag — тег лицензированной музыки для стадии TRANSFORM.
	MusicTag string `json:"music_tag,omitempty"`

	// MinSpacing — минимальный интервал между публикациями канала.
	MinSpacing time.Duration `json:"min_spacing"`

	// PublishCron — cron-выражение окон публикации.
	// Пример: "0 9-21 * * *" — слоты только с 9:00 до 21:00.
	// Пустое значение: слоты в любое время с шагом MinSpacing.
	PublishCron string `json:"publish_cron,omitempty"`

	// Timezone — часовой пояс для PublishCron. По умолчанию UTC.
	Timezone string `json:"timezone"`

	// StageEndpoints — HTTP endpoints внешних stage-сервисов
	// (scraper, downloader, transformer, distributor) для канала.
	// Пустая map: используются endpoints по умолчанию из окружения.
	StageEndpoints map[Stage]string `json:"stage_endpoints,omitempty"`

	// CreatedAt — время создания канала.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления конфигурации.
	UpdatedAt time.Time `json:"updated_at"`
}

// Endpoint возвращает endpoint stage-сервиса для стадии.
func (c *Channel) Endpoint(stage Stage) string {
	if c.StageEndpoints == nil {
		return ""
	}
	return c.StageEndpoints[stage]
}

// Location возвращает часовой пояс канала, UTC при невалидном значении.
func (c *Channel) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || c.Timezone == "" {
		return time.UTC
	}
	return loc
}
