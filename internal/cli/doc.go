// Package cli реализует инструмент командной строки vidpipe.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с vidpipe API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется операторами: постановка jobs, отмена, просмотр
// истории стадий, управление оркестрацией и очередью.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для vidpipe API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	jobs, err := client.ListJobs(cli.ListJobsOpts{})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: vidpipe job list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - job: list, enqueue, show, cancel, runs
//   - channel: list, show, slots, invalidate
//   - orchestration: status, start, pause, resume, stop
//   - queue: status, pause, resume
//
// Каждая группа создаётся через фабричную функцию (NewJobCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
