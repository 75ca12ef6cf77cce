// Package repo содержит репозитории для работы с PostgreSQL.
//
// Каждая сущность имеет свой репозиторий: JobRepo, SlotRepo,
// ChannelRepo, SettingsRepo, StageRunRepo.
//
// Ключевое требование к хранилищу — атомарность claim'а
// PENDING→RUNNING: JobRepo.ClaimNext выполняет выбор и переход
// в одной критической секции (advisory lock канала + conditional
// UPDATE), поэтому два конкурирующих worker'а никогда не получают
// один и тот же job и per-channel лимит не превышается.
package repo
