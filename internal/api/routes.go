package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Jobs
	mux.Handle("POST /api/v1/jobs", chain(http.HandlerFunc(h.EnqueueJob)))
	mux.Handle("GET /api/v1/jobs", chain(http.HandlerFunc(h.ListJobs)))
	mux.Handle("GET /api/v1/jobs/{id}", chain(http.HandlerFunc(h.GetJob)))
	mux.Handle("POST /api/v1/jobs/{id}/cancel", chain(http.HandlerFunc(h.CancelJob)))
	mux.Handle("GET /api/v1/jobs/{id}/runs", chain(http.HandlerFunc(h.ListJobStageRuns)))

	// Channels
	mux.Handle("GET /api/v1/channels", chain(http.HandlerFunc(h.ListChannels)))
	mux.Handle("GET /api/v1/channels/{id}", chain(http.HandlerFunc(h.GetChannel)))
	mux.Handle("POST /api/v1/channels/{id}/invalidate", chain(http.HandlerFunc(h.InvalidateChannel)))
	mux.Handle("GET /api/v1/channels/{id}/slots", chain(http.HandlerFunc(h.ListChannelSlots)))

	// Orchestration control
	mux.Handle("GET /api/v1/orchestration", chain(http.HandlerFunc(h.GetOrchestrationState)))
	mux.Handle("POST /api/v1/orchestration/start", chain(http.HandlerFunc(h.StartOrchestration)))
	mux.Handle("POST /api/v1/orchestration/pause", chain(http.HandlerFunc(h.PauseOrchestration)))
	mux.Handle("POST /api/v1/orchestration/resume", chain(http.HandlerFunc(h.ResumeOrchestration)))
	mux.Handle("POST /api/v1/orchestration/stop", chain(http.HandlerFunc(h.StopOrchestration)))

	// Queue control
	mux.Handle("GET /api/v1/queue", chain(http.HandlerFunc(h.GetQueueState)))
	mux.Handle("POST /api/v1/queue/pause", chain(http.HandlerFunc(h.PauseQueue)))
	mux.Handle("POST /api/v1/queue/resume", chain(http.HandlerFunc(h.ResumeQueue)))
}
