// Package stage определяет контракт stage executor'ов.
//
// Executor — внешний исполнитель одной стадии конвейера (scrape,
// download, transform, distribute). Контракт единый для всех стадий:
//
//   - Вход: opaque payload предыдущей стадии + конфигурация канала
//   - Выход: payload для следующей стадии, либо типизированная ошибка
//     Retryable (временная) / Fatal (без retry)
//
// ВАЖНО: executor обязан переживать повторный вызов (at-least-once).
// После crash recovery стадия может быть вызвана заново с тем же
// payload; внешние side effects должны быть идемпотентны или
// использовать dedupe_token из payload.
//
// Registry отображает каждую стадию на её executor — явный lookup
// по enum вместо ветвления по строкам.
package stage
