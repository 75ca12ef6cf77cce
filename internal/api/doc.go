// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go         — Handler с DI (сервисы, репозитории, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (logging, recovery)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — Data Transfer Objects (request/response)
//   - job_handler.go     — обработчики для /jobs
//   - channel_handler.go — обработчики для /channels и слотов
//   - control_handler.go — управление оркестрацией и очередью
//
// API — операторская поверхность: постановка jobs, отмена, история
// стадий, пауза/возобновление конвейера.
package api
