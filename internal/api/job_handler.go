package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/dkurenkov/vidpipe/internal/domain"
	"github.com/dkurenkov/vidpipe/internal/repo"
)

// EnqueueJob ставит новый job в очередь.
// POST /api/v1/jobs
func (h *Handler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
	var req EnqueueJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.ChannelID == uuid.Nil {
		BadRequest(w, "channel_id is required")
		return
	}

	job, err := h.queue.Enqueue(r.Context(), req.ChannelID, req.Payload)
	if HandleServiceError(w, h.logger, err, "channel not found") {
		return
	}

	Created(w, JobFromDomain(*job))
}

// ListJobs возвращает список jobs с фильтрацией.
// GET /api/v1/jobs?channel_id=...&status=...&stage=...&limit=...&offset=...
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := repo.JobFilter{Limit: 50}

	if channelIDStr := r.URL.Query().Get("channel_id"); channelIDStr != "" {
		channelID, err := uuid.Parse(channelIDStr)
		if err != nil {
			BadRequest(w, "invalid channel_id")
			return
		}
		filter.ChannelID = &channelID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.JobStatus(status)
	}

	if stage := r.URL.Query().Get("stage"); stage != "" {
		parsed := domain.Stage(stage)
		if !parsed.Valid() {
			BadRequest(w, "invalid stage")
			return
		}
		filter.Stage = parsed
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		filter.Limit = parseIntDefault(limitStr, 50)
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		filter.Offset = parseIntDefault(offsetStr, 0)
	}

	jobs, err := h.jobs.List(r.Context(), filter)
	if HandleServiceError(w, h.logger, err, "") {
		return
	}

	result := make([]JobResponse, len(jobs))
	for i, job := range jobs {
		result[i] = JobFromDomain(job)
	}

	List(w, result, len(result))
}

// GetJob возвращает job по ID.
// GET /api/v1/jobs/{id}
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if HandleServiceError(w, h.logger, err, "job not found") {
		return
	}

	Success(w, JobFromDomain(*job))
}

// CancelJob отменяет job.
// POST /api/v1/jobs/{id}/cancel
//
// PENDING jobs отменяются немедленно; для RUNNING выставляется
// cancel_requested, и ответ показывает job ещё в RUNNING.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}

	job, err := h.queue.Cancel(r.Context(), id)
	if HandleServiceError(w, h.logger, err, "job not found") {
		return
	}

	Success(w, JobFromDomain(*job))
}

// ListJobStageRuns возвращает историю вызовов executor'ов для job.
// GET /api/v1/jobs/{id}/runs
func (h *Handler) ListJobStageRuns(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid job id")
		return
	}

	if _, err := h.jobs.GetByID(r.Context(), id); HandleServiceError(w, h.logger, err, "job not found") {
		return
	}

	runs, err := h.stageRuns.ListByJobID(r.Context(), id)
	if HandleServiceError(w, h.logger, err, "") {
		return
	}

	result := make([]StageRunResponse, len(runs))
	for i, run := range runs {
		result[i] = StageRunFromDomain(run)
	}

	List(w, result, len(result))
}

// parseIntDefault парсит строку в int с дефолтным значением.
func parseIntDefault(s string, defaultVal int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return n
}
