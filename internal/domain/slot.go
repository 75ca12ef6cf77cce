package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleSlot — зарезервированное время публикации на канале.
//
// Слоты сериализуют публикации: не больше одного job на канал
// в конкретное время. Инвариант at-most-one обеспечивается
// уникальностью (channel_id, publish_at) в хранилище.
//
// Существование записи = резервация. Освобождение слота удаляет запись,
// после чего время может быть занято заново.
type ScheduleSlot struct {
	// ID — токен резервации (SlotToken из контракта Scheduling Service).
	ID uuid.UUID `json:"id"`

	// ChannelID — канал, которому принадлежит слот.
	ChannelID uuid.UUID `json:"channel_id"`

	// PublishAt — целевое время публикации.
	PublishAt time.Time `json:"publish_at"`

	// JobID — job, занимающий слот.
	JobID uuid.UUID `json:"job_id"`

	// ConsumedAt — фактическое время публикации.
	// Nil, пока публикация не подтверждена.
	// Не может предшествовать PublishAt.
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`

	// CreatedAt — время резервации.
	CreatedAt time.Time `json:"created_at"`
}

// IsConsumed возвращает true, если публикация подтверждена.
func (s *ScheduleSlot) IsConsumed() bool {
	return s.ConsumedAt != nil
}
