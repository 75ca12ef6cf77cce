// Package channelcfg предоставляет read-only представление
// конфигурации каналов с кэшем.
//
// Конфигурация каналов принадлежит внешнему слою; оркестратор
// читает её часто (каждый poll-цикл) и меняет редко, поэтому
// чтения кэшируются. Кэш инвалидируется явно — по уведомлению
// о внешнем обновлении (Invalidate) — и по TTL как страховка.
package channelcfg
