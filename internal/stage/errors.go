package stage

import (
	"errors"
	"fmt"
)

// Ошибки stage-слоя.
var (
	// ErrUnknownStage — нет executor'а для стадии.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrNoEndpoint — для стадии не настроен endpoint stage-сервиса.
	ErrNoEndpoint = errors.New("no stage endpoint configured")
)

// RetryableError — временная ошибка выполнения стадии.
// Pipeline применяет retry-политику с backoff.
type RetryableError struct {
	Reason string
	Err    error
}

func (e *RetryableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *RetryableError) Unwrap() error { return e.Err }

// FatalError — постоянная ошибка выполнения стадии.
// Retry не применяется, job сразу переходит в FAILED.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *FatalError) Unwrap() error { return e.Err }

// Retryable оборачивает ошибку как временную.
func Retryable(reason string, err error) error {
	return &RetryableError{Reason: reason, Err: err}
}

// Fatal оборачивает ошибку как постоянную.
func Fatal(reason string, err error) error {
	return &FatalError{Reason: reason, Err: err}
}

// IsFatal возвращает true, если ошибка классифицирована как fatal.
// Неклассифицированные ошибки считаются retryable.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
