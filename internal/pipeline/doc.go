// Package pipeline реализует Pipeline Service — продвижение job
// по стадиям конвейера.
//
// Advance выполняет ровно одну стадию claim'нутого job: вызывает
// executor стадии с таймаутом, пишет аудит-запись StageRun и переводит
// job дальше через Queue Service. После каждой стадии job возвращается
// в очередь PENDING — это checkpoint, позволяющий пережить рестарт
// процесса без потери выполненной работы.
//
// Особые точки конвейера:
//   - после TRANSFORM резервируется publish slot; если свободного
//     времени нет, job остаётся PENDING (awaiting slot) и работа
//     TRANSFORM не теряется;
//   - DISTRIBUTE не выбирается из очереди раньше времени слота;
//   - после DISTRIBUTE слот подтверждается фактическим временем
//     публикации.
//
// Ошибки executor'ов классифицируются: retryable → повтор с
// экспоненциальным backoff в пределах retry-политики стадии,
// fatal → немедленный FAILED.
package pipeline
