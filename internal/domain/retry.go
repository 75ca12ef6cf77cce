package domain

import "time"

// RetryPolicy — политика повторов для одной стадии.
//
// Значения конфигурационные: defaults задаются кодом, переопределяются
// ключами settings store retry.<stage>.max_attempts,
// retry.<stage>.initial_delay_ms, retry.<stage>.max_delay_ms,
// retry.<stage>.timeout_sec.
type RetryPolicy struct {
	// MaxAttempts — максимум попыток стадии (включая первую).
	MaxAttempts int `json:"max_attempts"`

	// InitialDelay — задержка перед вторым вызовом.
	InitialDelay time.Duration `json:"initial_delay"`

	// MaxDelay — верхняя граница backoff.
	MaxDelay time.Duration `json:"max_delay"`

	// Timeout — лимит времени одного вызова executor'а.
	// Превышение трактуется как retryable-ошибка, не как crash.
	Timeout time.Duration `json:"timeout"`
}

// DefaultRetryPolicy — политика по умолчанию для всех стадий.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     5 * time.Minute,
		Timeout:      10 * time.Minute,
	}
}

// Backoff вычисляет задержку перед попыткой attempt+1.
// Экспоненциальный рост от InitialDelay с ограничением MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// Exhausted возвращает true, если попытки исчерпаны.
func (p RetryPolicy) Exhausted(attempt int) bool {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return attempt >= maxAttempts
}
