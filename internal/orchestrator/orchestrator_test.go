package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dkurenkov/vidpipe/internal/domain"
	"github.com/dkurenkov/vidpipe/internal/queue"
)

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

// fakeClaimer выдаёт заранее подготовленные jobs, затем ErrNoRunnable.
type fakeClaimer struct {
	mu   sync.Mutex
	jobs []*domain.Job
}

func (f *fakeClaimer) NextRunnable(ctx context.Context, channel *domain.Channel) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, job := range f.jobs {
		if job.ChannelID == channel.ID {
			f.jobs = append(f.jobs[:i], f.jobs[i+1:]...)
			return job, nil
		}
	}
	return nil, queue.ErrNoRunnable
}

// fakeAdvancer считает выполненные стадии.
type fakeAdvancer struct {
	mu       sync.Mutex
	advanced []uuid.UUID
	done     chan struct{}
}

func (f *fakeAdvancer) Advance(ctx context.Context, job *domain.Job) error {
	f.mu.Lock()
	f.advanced = append(f.advanced, job.ID)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	return nil
}

func (f *fakeAdvancer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.advanced)
}

// fakeChannels — статичный список активных каналов.
type fakeChannels struct {
	channels []domain.Channel
}

func (f *fakeChannels) ListActive(ctx context.Context) ([]domain.Channel, error) {
	return f.channels, nil
}

// fakeRecovery считает вызовы восстановления.
type fakeRecovery struct {
	mu         sync.Mutex
	resetCount int64
	resets     int
	reclaims   int
}

func (f *fakeRecovery) ResetRunning(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	return f.resetCount, nil
}

func (f *fakeRecovery) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reclaims++
	return 0, nil
}

func newTestOrchestrator(claimer *fakeClaimer, advancer *fakeAdvancer, channels []domain.Channel, flags *fakeFlags) *Orchestrator {
	return New(Config{
		Queue:        claimer,
		Pipeline:     advancer,
		Channels:     &fakeChannels{channels: channels},
		Recovery:     &fakeRecovery{},
		Flags:        flags,
		PollInterval: 10 * time.Millisecond,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

// --- Control State Machine Tests ---

func TestControlStartFromStopped(t *testing.T) {
	flags := newFakeFlags()
	o := newTestOrchestrator(&fakeClaimer{}, &fakeAdvancer{}, nil, flags)
	ctx := context.Background()

	state, err := o.State(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Phase() != domain.PhaseStopped {
		t.Errorf("initial phase = %s, want STOPPED", state.Phase())
	}

	if err := o.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	state, _ = o.State(ctx)
	if state.Phase() != domain.PhaseRunning {
		t.Errorf("phase = %s, want RUNNING", state.Phase())
	}
}

func TestControlStartTwice(t *testing.T) {
	flags := newFakeFlags()
	o := newTestOrchestrator(&fakeClaimer{}, &fakeAdvancer{}, nil, flags)
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := o.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got: %v", err)
	}
}

func TestControlPauseResume(t *testing.T) {
	flags := newFakeFlags()
	o := newTestOrchestrator(&fakeClaimer{}, &fakeAdvancer{}, nil, flags)
	ctx := context.Background()

	// Пауза до запуска недопустима.
	if err := o.Pause(ctx); !errors.Is(err, ErrNotStarted) {
		t.Errorf("expected ErrNotStarted, got: %v", err)
	}

	if err := o.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := o.Pause(ctx); err != nil {
		t.Fatalf("pause failed: %v", err)
	}

	state, _ := o.State(ctx)
	if state.Phase() != domain.PhasePaused {
		t.Errorf("phase = %s, want PAUSED", state.Phase())
	}

	if err := o.Pause(ctx); !errors.Is(err, ErrAlreadyPaused) {
		t.Errorf("expected ErrAlreadyPaused, got: %v", err)
	}

	if err := o.Resume(ctx); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	state, _ = o.State(ctx)
	if state.Phase() != domain.PhaseRunning {
		t.Errorf("phase = %s, want RUNNING", state.Phase())
	}

	if err := o.Resume(ctx); !errors.Is(err, ErrNotPaused) {
		t.Errorf("expected ErrNotPaused, got: %v", err)
	}
}

func TestControlShutdownIdempotent(t *testing.T) {
	flags := newFakeFlags()
	o := newTestOrchestrator(&fakeClaimer{}, &fakeAdvancer{}, nil, flags)
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := o.Pause(ctx); err != nil {
		t.Fatalf("pause failed: %v", err)
	}

	// Shutdown из любого состояния, повторный — no-op.
	for i := 0; i < 2; i++ {
		if err := o.Shutdown(ctx); err != nil {
			t.Fatalf("shutdown %d failed: %v", i+1, err)
		}
	}

	state, _ := o.State(ctx)
	if state.Phase() != domain.PhaseStopped {
		t.Errorf("phase = %s, want STOPPED", state.Phase())
	}
	if state.Paused {
		t.Error("paused flag should be cleared on shutdown")
	}
}

func TestControlStateSurvivesRestart(t *testing.T) {
	flags := newFakeFlags()
	ctx := context.Background()

	first := newTestOrchestrator(&fakeClaimer{}, &fakeAdvancer{}, nil, flags)
	if err := first.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := first.Pause(ctx); err != nil {
		t.Fatalf("pause failed: %v", err)
	}

	// Новый процесс с тем же settings store видит фазу оператора.
	second := newTestOrchestrator(&fakeClaimer{}, &fakeAdvancer{}, nil, flags)
	state, err := second.State(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Phase() != domain.PhasePaused {
		t.Errorf("phase after restart = %s, want PAUSED", state.Phase())
	}
}

// --- Dispatch Tests ---

func TestDispatchRunsClaimedJobs(t *testing.T) {
	channel := domain.Channel{ID: uuid.New(), Name: "ch-1", Active: true}
	claimer := &fakeClaimer{jobs: []*domain.Job{
		{ID: uuid.New(), ChannelID: channel.ID, Status: domain.JobStatusRunning},
		{ID: uuid.New(), ChannelID: channel.ID, Status: domain.JobStatusRunning},
	}}
	advancer := &fakeAdvancer{done: make(chan struct{}, 2)}
	flags := newFakeFlags()

	o := newTestOrchestrator(claimer, advancer, []domain.Channel{channel}, flags)
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	o.dispatch(ctx)

	for i := 0; i < 2; i++ {
		select {
		case <-advancer.done:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for stage execution")
		}
	}
	o.wg.Wait()

	if advancer.count() != 2 {
		t.Errorf("advanced = %d jobs, want 2", advancer.count())
	}
	if o.ActiveJobsCount() != 0 {
		t.Errorf("active jobs = %d, want 0 after completion", o.ActiveJobsCount())
	}
}

func TestDispatchSkippedWhenStopped(t *testing.T) {
	channel := domain.Channel{ID: uuid.New(), Active: true}
	claimer := &fakeClaimer{jobs: []*domain.Job{
		{ID: uuid.New(), ChannelID: channel.ID},
	}}
	advancer := &fakeAdvancer{}
	o := newTestOrchestrator(claimer, advancer, []domain.Channel{channel}, newFakeFlags())

	// Оркестрация не запущена: dispatch ничего не выбирает.
	o.dispatch(context.Background())
	o.wg.Wait()

	if advancer.count() != 0 {
		t.Errorf("advanced = %d jobs, want 0 while stopped", advancer.count())
	}
}

func TestDispatchSkippedWhenPaused(t *testing.T) {
	channel := domain.Channel{ID: uuid.New(), Active: true}
	claimer := &fakeClaimer{jobs: []*domain.Job{
		{ID: uuid.New(), ChannelID: channel.ID},
	}}
	advancer := &fakeAdvancer{}
	flags := newFakeFlags()
	o := newTestOrchestrator(claimer, advancer, []domain.Channel{channel}, flags)
	ctx := context.Background()

	if err := o.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := o.Pause(ctx); err != nil {
		t.Fatalf("pause failed: %v", err)
	}

	o.dispatch(ctx)
	o.wg.Wait()

	if advancer.count() != 0 {
		t.Errorf("advanced = %d jobs, want 0 while paused", advancer.count())
	}
}

func TestRunRecoversBeforeDispatch(t *testing.T) {
	recovery := &fakeRecovery{resetCount: 3}
	flags := newFakeFlags()
	o := New(Config{
		Queue:        &fakeClaimer{},
		Pipeline:     &fakeAdvancer{},
		Channels:     &fakeChannels{},
		Recovery:     recovery,
		Flags:        flags,
		PollInterval: 5 * time.Millisecond,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() {
		runDone <- o.Run(ctx)
	}()

	// Даём циклу сделать хотя бы один тик.
	time.Sleep(30 * time.Millisecond)
	cancel()
	o.Stop()

	select {
	case err := <-runDone:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}

	recovery.mu.Lock()
	defer recovery.mu.Unlock()
	if recovery.resets != 1 {
		t.Errorf("resets = %d, want 1 (crash recovery on startup)", recovery.resets)
	}
}

func TestWakeIsNonBlocking(t *testing.T) {
	o := newTestOrchestrator(&fakeClaimer{}, &fakeAdvancer{}, nil, newFakeFlags())

	// Повторные пробуждения без читателя не должны блокировать.
	for i := 0; i < 5; i++ {
		o.Wake()
	}
}
