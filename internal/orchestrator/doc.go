// Package orchestrator управляет диспетчеризацией jobs по каналам.
//
// Orchestrator отвечает за:
//   - Глобальное состояние конвейера (STOPPED/RUNNING/PAUSED),
//     переживающее рестарт процесса
//   - Dispatch-цикл: выбор runnable jobs по каждому активному каналу
//     и запуск стадий через Pipeline Service
//   - Crash recovery при старте: RUNNING jobs возвращаются в PENDING
//   - Периодический возврат jobs с протухшим heartbeat
//   - Пробуждение по сигналу job.enqueued из RabbitMQ
//     (polling остаётся как fallback)
//
// Orchestrator не выполняет стадии сам и не держит состояние jobs
// в памяти: источник истины — Postgres, поэтому любое количество
// информации в памяти можно потерять без последствий.
package orchestrator
