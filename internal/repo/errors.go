package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — операция невозможна в текущем состоянии
	// (нарушено status-precondition при conditional update).
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict — проигран claim race; для вызывающего это
	// "job недоступен", а не ошибка оператора.
	ErrConflict = errors.New("storage conflict")
)
