// Package scheduling реализует Scheduling Service — владельца
// publish slots.
//
// Слот — зарезервированное время публикации на канале. Сервис
// находит ближайшее свободное время с учётом cadence канала
// (минимальный интервал между публикациями + cron-окна) и резервирует
// его атомарно: при гонке за одно время выигрывает первая резервация,
// проигравший получает следующее свободное время, никогда не ошибку.
//
// Scheduling никогда не блокирует прогресс конвейера бесконечно —
// только откладывает финальную стадию. Если в пределах горизонта
// свободного времени нет, возвращается ErrUnavailable и вызывающий
// повторяет попытку позже.
package scheduling
