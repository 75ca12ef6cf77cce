package scheduling

import "errors"

var (
	// ErrUnavailable — в пределах горизонта планирования нет свободного
	// времени публикации. Временная ситуация, вызывающий повторяет позже.
	ErrUnavailable = errors.New("no publish slot available within horizon")

	// ErrSlotNotFound — слот с указанным токеном не существует.
	ErrSlotNotFound = errors.New("slot not found")

	// ErrSlotConsumed — слот уже подтверждён и не может быть изменён.
	ErrSlotConsumed = errors.New("slot already consumed")

	// ErrEarlyPublish — фактическое время публикации раньше
	// зарезервированного слота.
	ErrEarlyPublish = errors.New("publish happened before reserved slot time")

	// ErrBadCadence — cron-выражение канала не парсится.
	ErrBadCadence = errors.New("invalid publish cadence expression")
)
