package stage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dkurenkov/vidpipe/internal/domain"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPExecutor делегирует выполнение стадии внешнему stage-сервису
// по HTTP (scraper, downloader, transformer, distributor).
//
// Запрос: POST на endpoint стадии с JSON
//
//	{
//	    "job_id": "...",
//	    "channel_id": "...",
//	    "stage": "TRANSFORM",
//	    "attempt": 2,
//	    "payload": {...},          // payload предыдущей стадии
//	    "channel": {...}           // конфигурация канала
//	}
//
// Ответ 200:
//
//	{"payload": {...}, "published_at": "..."}  // published_at — только DISTRIBUTE
//
// Ответ с ошибкой:
//
//	{"error": "...", "fatal": true|false}
//
// Endpoint берётся из конфигурации канала (stage_endpoints), иначе
// из Endpoints executor'а. Сетевые ошибки и 5xx — retryable;
// 4xx и fatal=true в теле — fatal.
type HTTPExecutor struct {
	// Stage — стадия, которую обслуживает executor.
	Stage domain.Stage

	// Endpoint — endpoint по умолчанию, если канал не задаёт свой.
	Endpoint string

	// Client — HTTP-клиент; nil — клиент по умолчанию.
	Client *http.Client
}

// stageRequest — тело запроса к stage-сервису.
type stageRequest struct {
	JobID     uuid.UUID       `json:"job_id"`
	ChannelID uuid.UUID       `json:"channel_id"`
	Stage     domain.Stage    `json:"stage"`
	Attempt   int             `json:"attempt"`
	Payload   map[string]any  `json:"payload,omitempty"`
	Channel   *domain.Channel `json:"channel,omitempty"`
}

// stageResponse — тело ответа stage-сервиса.
type stageResponse struct {
	Payload     map[string]any `json:"payload,omitempty"`
	PublishedAt string         `json:"published_at,omitempty"`
	Error       string         `json:"error,omitempty"`
	Fatal       bool           `json:"fatal,omitempty"`
}

// Execute выполняет стадию через внешний stage-сервис.
func (e *HTTPExecutor) Execute(ctx context.Context, job *domain.Job, channel *domain.Channel) (*Result, error) {
	endpoint := channel.Endpoint(e.Stage)
	if endpoint == "" {
		endpoint = e.Endpoint
	}
	if endpoint == "" {
		return nil, Fatal("stage service not configured", fmt.Errorf("%w: %s", ErrNoEndpoint, e.Stage))
	}

	body, err := json.Marshal(stageRequest{
		JobID:     job.ID,
		ChannelID: job.ChannelID,
		Stage:     e.Stage,
		Attempt:   job.Attempt,
		Payload:   job.Payload,
		Channel:   channel,
	})
	if err != nil {
		return nil, Fatal("marshal stage request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, Fatal("create stage request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := e.Client
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		// Сетевые ошибки и таймауты — временные.
		return nil, Retryable("stage service request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Retryable("read stage response", err)
	}

	var parsed stageResponse
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, Retryable(fmt.Sprintf("invalid stage response (HTTP %d)", resp.StatusCode), err)
		}
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, Retryable(stageErrMsg(resp.StatusCode, parsed.Error), nil)
	case resp.StatusCode >= 400:
		return nil, Fatal(stageErrMsg(resp.StatusCode, parsed.Error), nil)
	}

	if parsed.Error != "" {
		if parsed.Fatal {
			return nil, Fatal(parsed.Error, nil)
		}
		return nil, Retryable(parsed.Error, nil)
	}

	return &Result{
		Payload:     parsed.Payload,
		PublishedAt: parsed.PublishedAt,
	}, nil
}

// stageErrMsg формирует сообщение об ошибке stage-сервиса.
func stageErrMsg(statusCode int, detail string) string {
	if detail == "" {
		return fmt.Sprintf("stage service returned HTTP %d", statusCode)
	}
	return fmt.Sprintf("stage service returned HTTP %d: %s", statusCode, detail)
}

// DefaultRegistry создаёт реестр с HTTP-executor'ами для всех стадий.
// endpoints — endpoints по умолчанию из окружения
// (STAGE_SCRAPE_URL и т.д.); каналы могут переопределять свои.
func DefaultRegistry(endpoints map[domain.Stage]string, client *http.Client) *Registry {
	r := NewRegistry()
	for _, st := range domain.Stages() {
		r.Register(st, &HTTPExecutor{
			Stage:    st,
			Endpoint: endpoints[st],
			Client:   client,
		})
	}
	return r
}
