package api

import "net/http"

// GetOrchestrationState возвращает глобальное состояние конвейера.
// GET /api/v1/orchestration
func (h *Handler) GetOrchestrationState(w http.ResponseWriter, r *http.Request) {
	state, err := h.control.State(r.Context())
	if HandleServiceError(w, h.logger, err, "") {
		return
	}

	Success(w, OrchestrationStateResponse{
		Phase:       state.Phase(),
		Running:     state.Running,
		Paused:      state.Paused,
		QueuePaused: state.QueuePaused,
		ActiveJobs:  h.control.ActiveJobsCount(),
	})
}

// StartOrchestration запускает оркестрацию.
// POST /api/v1/orchestration/start
func (h *Handler) StartOrchestration(w http.ResponseWriter, r *http.Request) {
	if err := h.control.Start(r.Context()); HandleServiceError(w, h.logger, err, "") {
		return
	}
	h.GetOrchestrationState(w, r)
}

// PauseOrchestration приостанавливает выборку новых jobs.
// POST /api/v1/orchestration/pause
func (h *Handler) PauseOrchestration(w http.ResponseWriter, r *http.Request) {
	if err := h.control.Pause(r.Context()); HandleServiceError(w, h.logger, err, "") {
		return
	}
	h.GetOrchestrationState(w, r)
}

// ResumeOrchestration возобновляет выборку jobs.
// POST /api/v1/orchestration/resume
func (h *Handler) ResumeOrchestration(w http.ResponseWriter, r *http.Request) {
	if err := h.control.Resume(r.Context()); HandleServiceError(w, h.logger, err, "") {
		return
	}
	h.GetOrchestrationState(w, r)
}

// StopOrchestration останавливает оркестрацию.
// POST /api/v1/orchestration/stop
func (h *Handler) StopOrchestration(w http.ResponseWriter, r *http.Request) {
	if err := h.control.Shutdown(r.Context()); HandleServiceError(w, h.logger, err, "") {
		return
	}
	h.GetOrchestrationState(w, r)
}

// PauseQueue ставит очередь на паузу.
// POST /api/v1/queue/pause
func (h *Handler) PauseQueue(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Pause(r.Context()); HandleServiceError(w, h.logger, err, "") {
		return
	}
	h.GetQueueState(w, r)
}

// ResumeQueue снимает паузу очереди.
// POST /api/v1/queue/resume
func (h *Handler) ResumeQueue(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Resume(r.Context()); HandleServiceError(w, h.logger, err, "") {
		return
	}
	h.GetQueueState(w, r)
}

// GetQueueState возвращает состояние паузы очереди.
// GET /api/v1/queue
func (h *Handler) GetQueueState(w http.ResponseWriter, r *http.Request) {
	paused, err := h.queue.Paused(r.Context())
	if HandleServiceError(w, h.logger, err, "") {
		return
	}

	Success(w, map[string]bool{"paused": paused})
}
