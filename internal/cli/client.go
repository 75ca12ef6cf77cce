package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// JobResponse — job из API.
type JobResponse struct {
	ID              string         `json:"id"`
	ChannelID       string         `json:"channel_id"`
	Stage           string         `json:"stage"`
	Status          string         `json:"status"`
	Attempt         int            `json:"attempt"`
	Payload         map[string]any `json:"payload,omitempty"`
	SlotID          string         `json:"slot_id,omitempty"`
	AwaitingSlot    bool           `json:"awaiting_slot,omitempty"`
	NotBefore       string         `json:"not_before,omitempty"`
	CancelRequested bool           `json:"cancel_requested,omitempty"`
	Error           string         `json:"error,omitempty"`
	StartedAt       string         `json:"started_at,omitempty"`
	FinishedAt      string         `json:"finished_at,omitempty"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
}

// StageRunResponse — аудит-запись вызова executor'а из API.
type StageRunResponse struct {
	ID         string `json:"id"`
	Stage      string `json:"stage"`
	Attempt    int    `json:"attempt"`
	Outcome    string `json:"outcome"`
	Fatal      bool   `json:"fatal,omitempty"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	DurationMS int64  `json:"duration_ms"`
}

// ChannelResponse — канал из API.
type ChannelResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Active           bool   `json:"active"`
	ConcurrencyLimit int    `json:"concurrency_limit"`
	ScrapeSource     string `json:"scrape_source,omitempty"`
	PresetID         string `json:"preset_id,omitempty"`
	MusicTag         string `json:"music_tag,omitempty"`
	MinSpacingSec    int    `json:"min_spacing_sec"`
	PublishCron      string `json:"publish_cron,omitempty"`
	Timezone         string `json:"timezone"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// SlotResponse — слот публикации из API.
type SlotResponse struct {
	ID         string `json:"id"`
	ChannelID  string `json:"channel_id"`
	PublishAt  string `json:"publish_at"`
	JobID      string `json:"job_id"`
	ConsumedAt string `json:"consumed_at,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// OrchestrationStateResponse — глобальное состояние из API.
type OrchestrationStateResponse struct {
	Phase       string `json:"phase"`
	Running     bool   `json:"running"`
	Paused      bool   `json:"paused"`
	QueuePaused bool   `json:"queue_paused"`
	ActiveJobs  int    `json:"active_jobs"`
}

// QueueStateResponse — состояние очереди из API.
type QueueStateResponse struct {
	Paused bool `json:"paused"`
}

// --- Request types ---

// EnqueueJobRequest — постановка job в очередь.
type EnqueueJobRequest struct {
	ChannelID string         `json:"channel_id"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ListJobsOpts — параметры фильтрации jobs.
type ListJobsOpts struct {
	ChannelID string
	Status    string
	Stage     string
	Limit     int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для vidpipe API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Jobs ---

// ListJobs возвращает список jobs с фильтрацией.
func (c *Client) ListJobs(opts ListJobsOpts) ([]JobResponse, error) {
	params := url.Values{}
	if opts.ChannelID != "" {
		params.Set("channel_id", opts.ChannelID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Stage != "" {
		params.Set("stage", opts.Stage)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var jobs []JobResponse
	err := c.list("/api/v1/jobs", params, &jobs)
	return jobs, err
}

// EnqueueJob ставит новый job в очередь.
func (c *Client) EnqueueJob(req EnqueueJobRequest) (*JobResponse, error) {
	var job JobResponse
	err := c.post("/api/v1/jobs", req, &job)
	return &job, err
}

// GetJob возвращает job по ID.
func (c *Client) GetJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.get("/api/v1/jobs/"+id, &job)
	return &job, err
}

// CancelJob отменяет job.
func (c *Client) CancelJob(id string) (*JobResponse, error) {
	var job JobResponse
	err := c.post("/api/v1/jobs/"+id+"/cancel", nil, &job)
	return &job, err
}

// ListStageRuns возвращает историю стадий job.
func (c *Client) ListStageRuns(jobID string) ([]StageRunResponse, error) {
	var runs []StageRunResponse
	err := c.list("/api/v1/jobs/"+jobID+"/runs", nil, &runs)
	return runs, err
}

// --- Channels ---

// ListChannels возвращает активные каналы.
func (c *Client) ListChannels() ([]ChannelResponse, error) {
	var channels []ChannelResponse
	err := c.list("/api/v1/channels", nil, &channels)
	return channels, err
}

// GetChannel возвращает канал по ID.
func (c *Client) GetChannel(id string) (*ChannelResponse, error) {
	var channel ChannelResponse
	err := c.get("/api/v1/channels/"+id, &channel)
	return &channel, err
}

// InvalidateChannel сбрасывает кэш конфигурации канала.
func (c *Client) InvalidateChannel(id string) error {
	return c.post("/api/v1/channels/"+id+"/invalidate", nil, nil)
}

// ListChannelSlots возвращает предстоящие слоты канала.
func (c *Client) ListChannelSlots(channelID string, limit int) ([]SlotResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	var slots []SlotResponse
	err := c.list("/api/v1/channels/"+channelID+"/slots", params, &slots)
	return slots, err
}

// --- Orchestration control ---

// OrchestrationState возвращает глобальное состояние.
func (c *Client) OrchestrationState() (*OrchestrationStateResponse, error) {
	var state OrchestrationStateResponse
	err := c.get("/api/v1/orchestration", &state)
	return &state, err
}

// StartOrchestration запускает оркестрацию.
func (c *Client) StartOrchestration() (*OrchestrationStateResponse, error) {
	var state OrchestrationStateResponse
	err := c.post("/api/v1/orchestration/start", nil, &state)
	return &state, err
}

// PauseOrchestration приостанавливает оркестрацию.
func (c *Client) PauseOrchestration() (*OrchestrationStateResponse, error) {
	var state OrchestrationStateResponse
	err := c.post("/api/v1/orchestration/pause", nil, &state)
	return &state, err
}

// ResumeOrchestration возобновляет оркестрацию.
func (c *Client) ResumeOrchestration() (*OrchestrationStateResponse, error) {
	var state OrchestrationStateResponse
	err := c.post("/api/v1/orchestration/resume", nil, &state)
	return &state, err
}

// StopOrchestration останавливает оркестрацию.
func (c *Client) StopOrchestration() (*OrchestrationStateResponse, error) {
	var state OrchestrationStateResponse
	err := c.post("/api/v1/orchestration/stop", nil, &state)
	return &state, err
}

// --- Queue control ---

// QueueState возвращает состояние очереди.
func (c *Client) QueueState() (*QueueStateResponse, error) {
	var state QueueStateResponse
	err := c.get("/api/v1/queue", &state)
	return &state, err
}

// PauseQueue ставит очередь на паузу.
func (c *Client) PauseQueue() (*QueueStateResponse, error) {
	var state QueueStateResponse
	err := c.post("/api/v1/queue/pause", nil, &state)
	return &state, err
}

// ResumeQueue снимает паузу очереди.
func (c *Client) ResumeQueue() (*QueueStateResponse, error) {
	var state QueueStateResponse
	err := c.post("/api/v1/queue/resume", nil, &state)
	return &state, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
