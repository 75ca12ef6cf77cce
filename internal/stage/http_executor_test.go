package stage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/dkurenkov/vidpipe/internal/domain"
)

func testJob() *domain.Job {
	return &domain.Job{
		ID:        uuid.New(),
		ChannelID: uuid.New(),
		Stage:     domain.StageDownload,
		Status:    domain.JobStatusRunning,
		Attempt:   2,
		Payload:   map[string]any{"source_url": "https://example.com/video"},
	}
}

func TestHTTPExecutorSuccess(t *testing.T) {
	var receivedBody stageRequest
	var receivedContentType string

	// Mock stage-сервис, возвращающий payload следующей стадии.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedContentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&receivedBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"payload": map[string]any{"local_file": "/data/raw/video.mp4"},
		})
	}))
	defer server.Close()

	exec := &HTTPExecutor{Stage: domain.StageDownload, Endpoint: server.URL}
	job := testJob()
	channel := &domain.Channel{ID: job.ChannelID, Name: "test-channel"}

	result, err := exec.Execute(context.Background(), job, channel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if receivedContentType != "application/json" {
		t.Errorf("content type = %q, want application/json", receivedContentType)
	}
	if receivedBody.JobID != job.ID {
		t.Errorf("request job_id = %s, want %s", receivedBody.JobID, job.ID)
	}
	if receivedBody.Stage != domain.StageDownload {
		t.Errorf("request stage = %s, want DOWNLOAD", receivedBody.Stage)
	}
	if receivedBody.Attempt != 2 {
		t.Errorf("request attempt = %d, want 2", receivedBody.Attempt)
	}
	if result.Payload["local_file"] != "/data/raw/video.mp4" {
		t.Errorf("result payload = %v", result.Payload)
	}
}

func TestHTTPExecutorServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	exec := &HTTPExecutor{Stage: domain.StageScrape, Endpoint: server.URL}

	_, err := exec.Execute(context.Background(), testJob(), &domain.Channel{})
	if err == nil {
		t.Fatal("expected error for HTTP 502")
	}
	if IsFatal(err) {
		t.Errorf("5xx should be retryable, got fatal: %v", err)
	}
}

func TestHTTPExecutorClientErrorIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{"error": "unsupported codec"})
	}))
	defer server.Close()

	exec := &HTTPExecutor{Stage: domain.StageTransform, Endpoint: server.URL}

	_, err := exec.Execute(context.Background(), testJob(), &domain.Channel{})
	if err == nil {
		t.Fatal("expected error for HTTP 422")
	}
	if !IsFatal(err) {
		t.Errorf("4xx should be fatal, got: %v", err)
	}
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %T", err)
	}
}

func TestHTTPExecutorFatalFlagInBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// HTTP 200, но сервис пометил ошибку как фатальную.
		json.NewEncoder(w).Encode(map[string]any{"error": "video removed by source", "fatal": true})
	}))
	defer server.Close()

	exec := &HTTPExecutor{Stage: domain.StageScrape, Endpoint: server.URL}

	_, err := exec.Execute(context.Background(), testJob(), &domain.Channel{})
	if !IsFatal(err) {
		t.Errorf("fatal=true in body should be fatal, got: %v", err)
	}
}

func TestHTTPExecutorErrorInBodyIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "rate limited by platform"})
	}))
	defer server.Close()

	exec := &HTTPExecutor{Stage: domain.StageDistribute, Endpoint: server.URL}

	_, err := exec.Execute(context.Background(), testJob(), &domain.Channel{})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsFatal(err) {
		t.Errorf("error without fatal flag should be retryable, got: %v", err)
	}
}

func TestHTTPExecutorNetworkErrorIsRetryable(t *testing.T) {
	// Закрытый сервер: соединение отклоняется.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	exec := &HTTPExecutor{Stage: domain.StageScrape, Endpoint: server.URL}

	_, err := exec.Execute(context.Background(), testJob(), &domain.Channel{})
	if err == nil {
		t.Fatal("expected network error")
	}
	if IsFatal(err) {
		t.Errorf("network error should be retryable, got: %v", err)
	}
}

func TestHTTPExecutorNoEndpoint(t *testing.T) {
	exec := &HTTPExecutor{Stage: domain.StageScrape}

	_, err := exec.Execute(context.Background(), testJob(), &domain.Channel{})
	if !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("expected ErrNoEndpoint, got: %v", err)
	}
	if !IsFatal(err) {
		t.Error("missing endpoint should be fatal")
	}
}

func TestHTTPExecutorChannelEndpointOverride(t *testing.T) {
	var called bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		json.NewEncoder(w).Encode(map[string]any{"payload": map[string]any{}})
	}))
	defer server.Close()

	// Default endpoint указывает в никуда; канал переопределяет его.
	exec := &HTTPExecutor{Stage: domain.StageTransform, Endpoint: "http://127.0.0.1:1/unused"}
	channel := &domain.Channel{
		StageEndpoints: map[domain.Stage]string{domain.StageTransform: server.URL},
	}

	if _, err := exec.Execute(context.Background(), testJob(), channel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("channel endpoint should take priority over default")
	}
}

func TestHTTPExecutorPublishedAt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"payload":      map[string]any{"platform_id": "yt:abc123"},
			"published_at": "2026-03-01T12:00:00Z",
		})
	}))
	defer server.Close()

	exec := &HTTPExecutor{Stage: domain.StageDistribute, Endpoint: server.URL}

	result, err := exec.Execute(context.Background(), testJob(), &domain.Channel{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PublishedAt != "2026-03-01T12:00:00Z" {
		t.Errorf("published_at = %q", result.PublishedAt)
	}
}

// --- Registry Tests ---

func TestRegistryGet(t *testing.T) {
	r := DefaultRegistry(map[domain.Stage]string{domain.StageScrape: "http://scraper:8081/run"}, nil)

	for _, st := range domain.Stages() {
		if _, err := r.Get(st); err != nil {
			t.Errorf("Get(%s) returned error: %v", st, err)
		}
	}

	if _, err := r.Get(domain.StageDone); !errors.Is(err, ErrUnknownStage) {
		t.Errorf("Get(DONE) should return ErrUnknownStage, got: %v", err)
	}
}
