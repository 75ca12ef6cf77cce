// Package queue реализует Queue Service — владельца очереди jobs.
//
// Queue Service отвечает за:
//   - Приём jobs (enqueue с проверкой активности канала)
//   - Выбор runnable jobs (FIFO внутри канала, per-channel
//     concurrency limit, notBefore, пауза очереди)
//   - Атомарные переходы статусов (claim PENDING→RUNNING ровно один раз)
//   - Pause/Resume очереди
//   - Отмену jobs (кооперативную для RUNNING)
//
// Все мутации статусов проходят через conditional update хранилища;
// нарушение precondition — ErrInvalidTransition, это признак бага
// конкурентности и он всегда поднимается наверх.
package queue
