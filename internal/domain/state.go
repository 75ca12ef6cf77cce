package domain

// OrchestrationState — глобальное состояние оркестратора.
//
// Persisted в settings store, чтобы рестарт процесса сохранял
// намерение оператора. Мутируется только control-операциями
// Central Orchestration Service; читается poll-циклом перед
// каждым dispatch-циклом.
type OrchestrationState struct {
	// Running — оркестратор запущен (poll-цикл активен).
	Running bool `json:"running"`

	// Paused — новые jobs не выбираются; in-flight стадии дорабатывают.
	Paused bool `json:"paused"`

	// QueuePaused — NextRunnable очереди ничего не возвращает.
	QueuePaused bool `json:"queue_paused"`
}

// OrchestrationPhase — фаза state machine оркестратора.
type OrchestrationPhase string

const (
	// PhaseStopped — оркестратор остановлен.
	PhaseStopped OrchestrationPhase = "STOPPED"

	// PhaseRunning — оркестратор выполняет poll-циклы.
	PhaseRunning OrchestrationPhase = "RUNNING"

	// PhasePaused — оркестратор запущен, но dispatch приостановлен.
	PhasePaused OrchestrationPhase = "PAUSED"
)

// Phase возвращает текущую фазу state machine.
func (s OrchestrationState) Phase() OrchestrationPhase {
	switch {
	case !s.Running:
		return PhaseStopped
	case s.Paused:
		return PhasePaused
	default:
		return PhaseRunning
	}
}

// Dispatchable возвращает true, если poll-цикл может выбирать jobs.
func (s OrchestrationState) Dispatchable() bool {
	return s.Running && !s.Paused
}

// Ключи settings store для глобального состояния.
const (
	// SettingOrchestrationRunning — флаг Running.
	SettingOrchestrationRunning = "orchestration_running"

	// SettingOrchestrationPaused — флаг Paused.
	SettingOrchestrationPaused = "orchestration_paused"

	// SettingQueuePaused — флаг QueuePaused.
	SettingQueuePaused = "queue_paused"
)
