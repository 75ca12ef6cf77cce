package scheduling

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dkurenkov/vidpipe/internal/domain"
)

// cronParser — парсер cron-выражений для publish cadence каналов.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// defaultStep — шаг перебора кандидатов, когда у канала не задан
// ни cron, ни минимальный интервал.
const defaultStep = 15 * time.Minute

// ValidateCadence проверяет валидность cron-выражения канала.
func ValidateCadence(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrBadCadence, expr, err)
	}
	return nil
}

// nextCandidate вычисляет ближайшее допустимое время публикации
// для канала строго позже from.
//
// Если у канала задан publish cron — следующее срабатывание cron в
// timezone канала. Иначе — from + MinSpacing (или defaultStep).
// Результат всегда в UTC.
func nextCandidate(ch *domain.Channel, from time.Time) (time.Time, error) {
	if ch.PublishCron != "" {
		schedule, err := cronParser.Parse(ch.PublishCron)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q: %v", ErrBadCadence, ch.PublishCron, err)
		}
		next := schedule.Next(from.In(ch.Location()))
		return next.UTC(), nil
	}

	step := ch.MinSpacing
	if step <= 0 {
		step = defaultStep
	}
	return from.Add(step).UTC(), nil
}

// alignToSpacing сдвигает кандидата вперёд, чтобы соблюсти минимальный
// интервал от последней зарезервированной публикации канала.
func alignToSpacing(ch *domain.Channel, candidate time.Time, lastPublish *time.Time) time.Time {
	if lastPublish == nil || ch.MinSpacing <= 0 {
		return candidate
	}
	earliest := lastPublish.Add(ch.MinSpacing)
	if candidate.Before(earliest) {
		return earliest.UTC()
	}
	return candidate
}
