package domain

// JobStatus — статус выполнения job.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → PENDING (следующая стадия или retry)
//	                  ↘ SUCCEEDED (после стадии DONE)
//	                  ↘ FAILED (после исчерпания retry или fatal-ошибки)
//	          (или) → CANCELLED (из PENDING или RUNNING)
type JobStatus string

const (
	// JobStatusPending — job ожидает выполнения текущей стадии.
	JobStatusPending JobStatus = "PENDING"

	// JobStatusRunning — стадия job выполняется executor'ом.
	// Инвариант: ровно один активный executor на job.
	JobStatusRunning JobStatus = "RUNNING"

	// JobStatusSucceeded — job прошёл все стадии до DONE.
	JobStatusSucceeded JobStatus = "SUCCEEDED"

	// JobStatusFailed — job завершился с ошибкой (после всех retry).
	JobStatusFailed JobStatus = "FAILED"

	// JobStatusCancelled — job отменён оператором.
	JobStatusCancelled JobStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный.
// Терминальные jobs сохраняются для аудита и никогда не удаляются.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Stage — стадия конвейера обработки видео.
//
// Последовательность фиксированная:
//
//	SCRAPE → DOWNLOAD → TRANSFORM → DISTRIBUTE → DONE
type Stage string

const (
	// StageScrape — поиск исходного видео у источника.
	StageScrape Stage = "SCRAPE"

	// StageDownload — скачивание исходника.
	StageDownload Stage = "DOWNLOAD"

	// StageTransform — применение эффектов/пресетов и наложение музыки.
	StageTransform Stage = "TRANSFORM"

	// StageDistribute — публикация на целевой платформе.
	// Перед этой стадией job обязан получить publish slot.
	StageDistribute Stage = "DISTRIBUTE"

	// StageDone — финальная стадия; executor для неё не вызывается.
	StageDone Stage = "DONE"
)

// stageOrder — фиксированный порядок стадий.
var stageOrder = []Stage{StageScrape, StageDownload, StageTransform, StageDistribute, StageDone}

// Stages возвращает исполняемые стадии в порядке выполнения (без DONE).
func Stages() []Stage {
	return stageOrder[:len(stageOrder)-1]
}

// Next возвращает следующую стадию.
// Для DONE и неизвестной стадии возвращает ok=false.
func (s Stage) Next() (Stage, bool) {
	for i, st := range stageOrder {
		if st == s && i+1 < len(stageOrder) {
			return stageOrder[i+1], true
		}
	}
	return "", false
}

// Valid проверяет, что стадия известна.
func (s Stage) Valid() bool {
	for _, st := range stageOrder {
		if st == s {
			return true
		}
	}
	return false
}

// StageRunOutcome — результат одного вызова executor'а.
type StageRunOutcome string

const (
	// StageRunSucceeded — executor вернул результат.
	StageRunSucceeded StageRunOutcome = "SUCCEEDED"

	// StageRunFailed — executor вернул ошибку (retryable или fatal).
	StageRunFailed StageRunOutcome = "FAILED"
)
