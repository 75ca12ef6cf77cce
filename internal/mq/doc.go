// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий конвейера
//   - consumer.go   — потребление сообщений из очередей
//   - notifier.go   — best-effort адаптер событий для queue/pipeline
//
// MQ — сигнальный слой, не источник истины: состояние jobs живёт в
// Postgres, оркестратор работает и без брокера (polling). Сообщение
// job.enqueued лишь будит dispatch-цикл раньше очередного тика.
//
// Типы сообщений:
//   - job.enqueued       — новый job поставлен в очередь
//   - job.finished       — job достиг терминального статуса
//   - publish.confirmed  — публикация подтверждена в слоте
//
// Exchanges:
//   - vidpipe.jobs    — сигналы для оркестратора
//   - vidpipe.events  — события жизненного цикла для внешних потребителей
//   - vidpipe.dlq     — dead letter queue
package mq
