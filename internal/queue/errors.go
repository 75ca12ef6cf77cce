package queue

import "errors"

// Ошибки очереди.
var (
	// ErrInvalidChannel — канал не существует или неактивен.
	ErrInvalidChannel = errors.New("invalid or inactive channel")

	// ErrInvalidTransition — нарушено status-precondition перехода.
	// Признак бага конкурентности или двойного dispatch'а;
	// никогда не ретраится молча.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNoRunnable — нет runnable job (очередь пуста, лимит
	// исчерпан или очередь на паузе).
	ErrNoRunnable = errors.New("no runnable job")

	// ErrJobNotFound — job не найден.
	ErrJobNotFound = errors.New("job not found")

	// ErrNotCancellable — отмена возможна только из PENDING или RUNNING.
	ErrNotCancellable = errors.New("job is not cancellable")
)
