package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dkurenkov/vidpipe/internal/domain"
	"github.com/dkurenkov/vidpipe/internal/repo"
)

// fakeJobStore — in-memory хранилище jobs с той же атомарностью
// переходов, что и repo.JobRepo.
type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.Job
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (s *fakeJobStore) put(job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *job
	s.jobs[job.ID] = &clone
}

func (s *fakeJobStore) Create(ctx context.Context, job *domain.Job) error {
	s.put(job)
	return nil
}

func (s *fakeJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func (s *fakeJobStore) UpdateIfStatus(ctx context.Context, job *domain.Job, expected domain.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.jobs[job.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if current.Status != expected {
		return repo.ErrInvalidState
	}
	clone := *job
	s.jobs[job.ID] = &clone
	return nil
}

func (s *fakeJobStore) ClaimNext(ctx context.Context, channelID uuid.UUID, limit int) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit > 0 {
		running := 0
		for _, j := range s.jobs {
			if j.ChannelID == channelID && j.Status == domain.JobStatusRunning {
				running++
			}
		}
		if running >= limit {
			return nil, repo.ErrConflict
		}
	}

	now := time.Now()
	var candidates []*domain.Job
	for _, j := range s.jobs {
		if j.ChannelID == channelID && j.Runnable(now) {
			candidates = append(candidates, j)
		}
	}
	if len(candidates) == 0 {
		return nil, repo.ErrNotFound
	}
	sort.Slice(candidates, func(i, k int) bool {
		return candidates[i].CreatedAt.Before(candidates[k].CreatedAt)
	})

	claimed := candidates[0]
	claimed.MarkRunning()
	clone := *claimed
	return &clone, nil
}

func (s *fakeJobStore) RequestCancel(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return repo.ErrNotFound
	}
	if job.Status != domain.JobStatusRunning {
		return repo.ErrInvalidState
	}
	job.CancelRequested = true
	return nil
}

func (s *fakeJobStore) Heartbeat(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return repo.ErrNotFound
	}
	now := time.Now()
	job.LastHeartbeat = &now
	return nil
}

func (s *fakeJobStore) CountByChannelAndStatus(ctx context.Context, channelID uuid.UUID, status domain.JobStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, j := range s.jobs {
		if j.ChannelID == channelID && j.Status == status {
			count++
		}
	}
	return count, nil
}

// fakeChannels — статичный источник каналов.
type fakeChannels struct {
	channels map[uuid.UUID]*domain.Channel
}

func (f *fakeChannels) Get(ctx context.Context, id uuid.UUID) (*domain.Channel, error) {
	ch, ok := f.channels[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return ch, nil
}

// fakeFlags — in-memory settings store.
type fakeFlags struct {
	mu    sync.Mutex
	flags map[string]bool
}

func newFakeFlags() *fakeFlags {
	return &fakeFlags{flags: make(map[string]bool)}
}

func (f *fakeFlags) GetBool(ctx context.Context, key string, fallback bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.flags[key]
	if !ok {
		return fallback, nil
	}
	return v, nil
}

func (f *fakeFlags) SetBool(ctx context.Context, key string, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags[key] = value
	return nil
}

// fakeSlots — запоминает освобождённые слоты.
type fakeSlots struct {
	mu       sync.Mutex
	released []uuid.UUID
}

func (f *fakeSlots) ReleaseSlot(ctx context.Context, token uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, token)
	return nil
}

// fakeNotifier — считает уведомления.
type fakeNotifier struct {
	mu       sync.Mutex
	enqueued []uuid.UUID
}

func (f *fakeNotifier) JobEnqueued(ctx context.Context, job *domain.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, job.ID)
}

type testEnv struct {
	svc      *Service
	store    *fakeJobStore
	flags    *fakeFlags
	slots    *fakeSlots
	notifier *fakeNotifier
	channel  *domain.Channel
}

func newTestEnv() *testEnv {
	channel := &domain.Channel{
		ID:               uuid.New(),
		Name:             "test-channel",
		Active:           true,
		ConcurrencyLimit: 2,
	}
	store := newFakeJobStore()
	flags := newFakeFlags()
	slots := &fakeSlots{}
	notifier := &fakeNotifier{}
	svc := New(Config{
		Store:    store,
		Channels: &fakeChannels{channels: map[uuid.UUID]*domain.Channel{channel.ID: channel}},
		Flags:    flags,
		Slots:    slots,
		Notifier: notifier,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return &testEnv{svc: svc, store: store, flags: flags, slots: slots, notifier: notifier, channel: channel}
}

// --- Enqueue Tests ---

func TestEnqueue(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	job, err := env.svc.Enqueue(ctx, env.channel.ID, map[string]any{"source_url": "https://example.com/v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.Stage != domain.StageScrape {
		t.Errorf("stage = %s, want SCRAPE", job.Stage)
	}
	if job.Status != domain.JobStatusPending {
		t.Errorf("status = %s, want PENDING", job.Status)
	}
	if job.DedupeToken() == "" {
		t.Error("dedupe_token should be generated")
	}
	if len(env.notifier.enqueued) != 1 || env.notifier.enqueued[0] != job.ID {
		t.Error("notifier should receive the enqueued job")
	}
}

func TestEnqueuePreservesDedupeToken(t *testing.T) {
	env := newTestEnv()

	job, err := env.svc.Enqueue(context.Background(), env.channel.ID,
		map[string]any{"dedupe_token": "manual-token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.DedupeToken() != "manual-token" {
		t.Errorf("dedupe_token = %q, want manual-token", job.DedupeToken())
	}
}

func TestEnqueueUnknownChannel(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.Enqueue(context.Background(), uuid.New(), nil)
	if !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("expected ErrInvalidChannel, got: %v", err)
	}
}

func TestEnqueueInactiveChannel(t *testing.T) {
	env := newTestEnv()
	env.channel.Active = false

	_, err := env.svc.Enqueue(context.Background(), env.channel.ID, nil)
	if !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("expected ErrInvalidChannel, got: %v", err)
	}
}

// --- NextRunnable Tests ---

func TestNextRunnableOldestFirst(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		job := &domain.Job{
			ID:        uuid.New(),
			ChannelID: env.channel.ID,
			Stage:     domain.StageScrape,
			Status:    domain.JobStatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		env.store.put(job)
		ids = append(ids, job.ID)
	}

	job, err := env.svc.NextRunnable(ctx, env.channel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.ID != ids[0] {
		t.Error("oldest job should be claimed first")
	}
	if job.Status != domain.JobStatusRunning {
		t.Errorf("claimed job status = %s, want RUNNING", job.Status)
	}
	if job.Attempt != 1 {
		t.Errorf("claimed job attempt = %d, want 1", job.Attempt)
	}
}

func TestNextRunnableEmpty(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.NextRunnable(context.Background(), env.channel)
	if !errors.Is(err, ErrNoRunnable) {
		t.Errorf("expected ErrNoRunnable, got: %v", err)
	}
}

func TestNextRunnableQueuePaused(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	env.store.put(&domain.Job{
		ID:        uuid.New(),
		ChannelID: env.channel.ID,
		Status:    domain.JobStatusPending,
		CreatedAt: time.Now(),
	})

	if err := env.svc.Pause(ctx); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if _, err := env.svc.NextRunnable(ctx, env.channel); !errors.Is(err, ErrNoRunnable) {
		t.Errorf("paused queue should return ErrNoRunnable, got: %v", err)
	}

	if err := env.svc.Resume(ctx); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if _, err := env.svc.NextRunnable(ctx, env.channel); err != nil {
		t.Errorf("resumed queue should claim the job, got: %v", err)
	}
}

func TestNextRunnableConcurrencyLimit(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// Limit канала — 2: третий claim обязан получить ErrNoRunnable.
	for i := 0; i < 3; i++ {
		env.store.put(&domain.Job{
			ID:        uuid.New(),
			ChannelID: env.channel.ID,
			Status:    domain.JobStatusPending,
			CreatedAt: time.Now(),
		})
	}

	for i := 0; i < 2; i++ {
		if _, err := env.svc.NextRunnable(ctx, env.channel); err != nil {
			t.Fatalf("claim %d failed: %v", i+1, err)
		}
	}
	if _, err := env.svc.NextRunnable(ctx, env.channel); !errors.Is(err, ErrNoRunnable) {
		t.Errorf("claim over concurrency limit should return ErrNoRunnable, got: %v", err)
	}
}

func TestNextRunnableRespectsNotBefore(t *testing.T) {
	env := newTestEnv()
	future := time.Now().Add(time.Hour)

	env.store.put(&domain.Job{
		ID:        uuid.New(),
		ChannelID: env.channel.ID,
		Status:    domain.JobStatusPending,
		NotBefore: &future,
		CreatedAt: time.Now(),
	})

	if _, err := env.svc.NextRunnable(context.Background(), env.channel); !errors.Is(err, ErrNoRunnable) {
		t.Errorf("job with future not_before should not be claimable, got: %v", err)
	}
}

func TestNextRunnableConcurrentClaim(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.channel.ConcurrencyLimit = 1

	env.store.put(&domain.Job{
		ID:        uuid.New(),
		ChannelID: env.channel.ID,
		Status:    domain.JobStatusPending,
		CreatedAt: time.Now(),
	})

	// 10 конкурентных claim'ов за один job: ровно один победитель.
	const claimers = 10
	var wg sync.WaitGroup
	results := make(chan error, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.NextRunnable(ctx, env.channel)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		if err == nil {
			winners++
		} else if !errors.Is(err, ErrNoRunnable) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want exactly 1", winners)
	}
}

// --- Transition Tests ---

func TestCompleteStage(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	job := &domain.Job{
		ID:        uuid.New(),
		ChannelID: env.channel.ID,
		Stage:     domain.StageScrape,
		Status:    domain.JobStatusRunning,
		Attempt:   1,
		CreatedAt: time.Now(),
	}
	env.store.put(job)

	payload := map[string]any{"source_url": "https://example.com/found"}
	if err := env.svc.CompleteStage(ctx, job, domain.StageDownload, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := env.store.GetByID(ctx, job.ID)
	if stored.Stage != domain.StageDownload {
		t.Errorf("stage = %s, want DOWNLOAD", stored.Stage)
	}
	if stored.Status != domain.JobStatusPending {
		t.Errorf("status = %s, want PENDING", stored.Status)
	}
	if stored.Attempt != 0 {
		t.Errorf("attempt = %d, want 0", stored.Attempt)
	}
}

func TestCompleteStageConflict(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	// Job в хранилище уже PENDING: conditional update обязан отказать.
	job := &domain.Job{
		ID:        uuid.New(),
		ChannelID: env.channel.ID,
		Stage:     domain.StageScrape,
		Status:    domain.JobStatusPending,
		CreatedAt: time.Now(),
	}
	env.store.put(job)

	workCopy := *job
	workCopy.Status = domain.JobStatusRunning
	err := env.svc.CompleteStage(ctx, &workCopy, domain.StageDownload, nil)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got: %v", err)
	}
}

func TestScheduleDistribution(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	job := &domain.Job{
		ID:        uuid.New(),
		ChannelID: env.channel.ID,
		Stage:     domain.StageTransform,
		Status:    domain.JobStatusRunning,
		Attempt:   1,
		CreatedAt: time.Now(),
	}
	env.store.put(job)

	slotID := uuid.New()
	publishAt := time.Now().Add(3 * time.Hour)
	if err := env.svc.ScheduleDistribution(ctx, job, map[string]any{"processed_file": "/tmp/v.mp4"}, slotID, publishAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := env.store.GetByID(ctx, job.ID)
	if stored.Stage != domain.StageDistribute {
		t.Errorf("stage = %s, want DISTRIBUTE", stored.Stage)
	}
	if stored.SlotID == nil || *stored.SlotID != slotID {
		t.Error("slot should be bound to the job")
	}
	if stored.NotBefore == nil || !stored.NotBefore.Equal(publishAt) {
		t.Error("not_before should equal slot publish time")
	}
}

func TestHoldAwaitingSlot(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	job := &domain.Job{
		ID:        uuid.New(),
		ChannelID: env.channel.ID,
		Stage:     domain.StageTransform,
		Status:    domain.JobStatusRunning,
		Attempt:   1,
		CreatedAt: time.Now(),
	}
	env.store.put(job)

	retryAt := time.Now().Add(30 * time.Minute)
	if err := env.svc.HoldAwaitingSlot(ctx, job, map[string]any{"processed_file": "/tmp/v.mp4"}, retryAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := env.store.GetByID(ctx, job.ID)
	if stored.Stage != domain.StageTransform {
		t.Errorf("stage = %s, want TRANSFORM (kept)", stored.Stage)
	}
	if !stored.AwaitingSlot {
		t.Error("awaiting_slot should be set")
	}
	if stored.Payload["processed_file"] != "/tmp/v.mp4" {
		t.Error("transform result should be preserved in payload")
	}
}

func TestScheduleRetryCountsAttempts(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	job := &domain.Job{
		ID:        uuid.New(),
		ChannelID: env.channel.ID,
		Stage:     domain.StageDownload,
		Status:    domain.JobStatusPending,
		CreatedAt: time.Now(),
	}
	env.store.put(job)

	// Две неудачные попытки, третья успешная: attempt растёт до 3.
	for i := 0; i < 2; i++ {
		claimed, err := env.svc.NextRunnable(ctx, env.channel)
		if err != nil {
			t.Fatalf("claim %d failed: %v", i+1, err)
		}
		if err := env.svc.ScheduleRetry(ctx, claimed, "temporary failure", time.Now().Add(-time.Second)); err != nil {
			t.Fatalf("retry %d failed: %v", i+1, err)
		}
	}

	claimed, err := env.svc.NextRunnable(ctx, env.channel)
	if err != nil {
		t.Fatalf("final claim failed: %v", err)
	}
	if claimed.Attempt != 3 {
		t.Errorf("attempt = %d, want 3", claimed.Attempt)
	}

	if err := env.svc.Succeed(ctx, claimed, nil); err != nil {
		t.Fatalf("succeed failed: %v", err)
	}
	stored, _ := env.store.GetByID(ctx, job.ID)
	if stored.Status != domain.JobStatusSucceeded {
		t.Errorf("status = %s, want SUCCEEDED", stored.Status)
	}
}

func TestFailPreservesErrorVerbatim(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	job := &domain.Job{
		ID:        uuid.New(),
		ChannelID: env.channel.ID,
		Stage:     domain.StageTransform,
		Status:    domain.JobStatusRunning,
		CreatedAt: time.Now(),
	}
	env.store.put(job)

	const errMsg = "stage service returned HTTP 422: unsupported codec"
	if err := env.svc.Fail(ctx, job, errMsg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := env.store.GetByID(ctx, job.ID)
	if stored.Error != errMsg {
		t.Errorf("error = %q, want verbatim %q", stored.Error, errMsg)
	}
	if stored.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}
}

// --- Cancel Tests ---

func TestCancelPendingReleasesSlot(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	slotID := uuid.New()
	job := &domain.Job{
		ID:        uuid.New(),
		ChannelID: env.channel.ID,
		Stage:     domain.StageDistribute,
		Status:    domain.JobStatusPending,
		SlotID:    &slotID,
		CreatedAt: time.Now(),
	}
	env.store.put(job)

	cancelled, err := env.svc.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.JobStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", cancelled.Status)
	}
	if len(env.slots.released) != 1 || env.slots.released[0] != slotID {
		t.Error("reserved slot should be released on cancel")
	}
}

func TestCancelRunningIsCooperative(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	job := &domain.Job{
		ID:        uuid.New(),
		ChannelID: env.channel.ID,
		Stage:     domain.StageDownload,
		Status:    domain.JobStatusRunning,
		CreatedAt: time.Now(),
	}
	env.store.put(job)

	cancelled, err := env.svc.Cancel(ctx, job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// RUNNING job не убивается: только выставляется флаг.
	if cancelled.Status != domain.JobStatusRunning {
		t.Errorf("status = %s, want RUNNING", cancelled.Status)
	}
	if !cancelled.CancelRequested {
		t.Error("cancel_requested should be set")
	}

	stored, _ := env.store.GetByID(ctx, job.ID)
	if !stored.CancelRequested {
		t.Error("cancel_requested should be persisted")
	}
}

func TestCancelTerminal(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	job := &domain.Job{
		ID:        uuid.New(),
		ChannelID: env.channel.ID,
		Status:    domain.JobStatusSucceeded,
		CreatedAt: time.Now(),
	}
	env.store.put(job)

	if _, err := env.svc.Cancel(ctx, job.ID); !errors.Is(err, ErrNotCancellable) {
		t.Errorf("expected ErrNotCancellable, got: %v", err)
	}
}

func TestCancelUnknownJob(t *testing.T) {
	env := newTestEnv()

	if _, err := env.svc.Cancel(context.Background(), uuid.New()); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got: %v", err)
	}
}

func TestFinishCancelledReleasesSlot(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	slotID := uuid.New()
	job := &domain.Job{
		ID:        uuid.New(),
		ChannelID: env.channel.ID,
		Stage:     domain.StageDistribute,
		Status:    domain.JobStatusRunning,
		SlotID:    &slotID,
		CreatedAt: time.Now(),
	}
	env.store.put(job)

	if err := env.svc.FinishCancelled(ctx, job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := env.store.GetByID(ctx, job.ID)
	if stored.Status != domain.JobStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", stored.Status)
	}
	if len(env.slots.released) != 1 {
		t.Error("slot should be released")
	}
}
