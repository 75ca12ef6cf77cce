package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrAlreadyStarted — запуск при уже работающей оркестрации.
	ErrAlreadyStarted = errors.New("orchestration already started")

	// ErrNotStarted — операция требует запущенной оркестрации.
	ErrNotStarted = errors.New("orchestration not started")

	// ErrAlreadyPaused — пауза при уже приостановленной оркестрации.
	ErrAlreadyPaused = errors.New("orchestration already paused")

	// ErrNotPaused — resume без предшествующей паузы.
	ErrNotPaused = errors.New("orchestration not paused")
)
