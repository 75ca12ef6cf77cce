package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// --- Stage Tests ---

func TestStageNext(t *testing.T) {
	tests := []struct {
		stage Stage
		next  Stage
		ok    bool
	}{
		{StageScrape, StageDownload, true},
		{StageDownload, StageTransform, true},
		{StageTransform, StageDistribute, true},
		{StageDistribute, StageDone, true},
		{StageDone, "", false},
		{Stage("UNKNOWN"), "", false},
	}

	for _, tt := range tests {
		next, ok := tt.stage.Next()
		if ok != tt.ok {
			t.Errorf("Stage(%s).Next(): ok = %v, want %v", tt.stage, ok, tt.ok)
		}
		if next != tt.next {
			t.Errorf("Stage(%s).Next() = %s, want %s", tt.stage, next, tt.next)
		}
	}
}

func TestStagesExcludesDone(t *testing.T) {
	stages := Stages()
	if len(stages) != 4 {
		t.Fatalf("Stages() returned %d stages, want 4", len(stages))
	}
	for _, s := range stages {
		if s == StageDone {
			t.Error("Stages() should not include DONE")
		}
	}
	if stages[0] != StageScrape {
		t.Errorf("first stage = %s, want SCRAPE", stages[0])
	}
}

func TestStageValid(t *testing.T) {
	if !StageDone.Valid() {
		t.Error("DONE should be valid")
	}
	if Stage("PUBLISH").Valid() {
		t.Error("PUBLISH should not be valid")
	}
}

// --- JobStatus Tests ---

func TestJobStatusIsTerminal(t *testing.T) {
	terminal := []JobStatus{JobStatusSucceeded, JobStatusFailed, JobStatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if JobStatusPending.IsTerminal() || JobStatusRunning.IsTerminal() {
		t.Error("PENDING and RUNNING should not be terminal")
	}
}

// --- Job Tests ---

func TestJobMarkRunningIncrementsAttempt(t *testing.T) {
	job := &Job{Status: JobStatusPending, Stage: StageScrape}

	job.MarkRunning()

	if job.Status != JobStatusRunning {
		t.Errorf("status = %s, want RUNNING", job.Status)
	}
	if job.Attempt != 1 {
		t.Errorf("attempt = %d, want 1", job.Attempt)
	}
	if job.StartedAt == nil || job.LastHeartbeat == nil {
		t.Error("StartedAt and LastHeartbeat should be set")
	}
}

func TestJobAdvanceStageResetsAttempt(t *testing.T) {
	job := &Job{Status: JobStatusRunning, Stage: StageScrape, Attempt: 3, Error: "old error"}

	job.AdvanceStage(StageDownload, map[string]any{"source_url": "https://example.com/v1"})

	if job.Stage != StageDownload {
		t.Errorf("stage = %s, want DOWNLOAD", job.Stage)
	}
	if job.Status != JobStatusPending {
		t.Errorf("status = %s, want PENDING", job.Status)
	}
	// Retry-лимит действует на каждую стадию отдельно.
	if job.Attempt != 0 {
		t.Errorf("attempt = %d, want 0", job.Attempt)
	}
	if job.Error != "" {
		t.Error("error should be cleared on stage advance")
	}
}

func TestJobResetToPendingPreservesAttempt(t *testing.T) {
	// Crash recovery: прошлая попытка считается израсходованной.
	job := &Job{Status: JobStatusRunning, Stage: StageTransform, Attempt: 2}

	job.ResetToPending()

	if job.Status != JobStatusPending {
		t.Errorf("status = %s, want PENDING", job.Status)
	}
	if job.Attempt != 2 {
		t.Errorf("attempt = %d, want 2 (preserved)", job.Attempt)
	}
	if job.StartedAt != nil || job.LastHeartbeat != nil {
		t.Error("StartedAt and LastHeartbeat should be cleared")
	}
}

func TestJobRunnable(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		job  Job
		want bool
	}{
		{"pending without not_before", Job{Status: JobStatusPending}, true},
		{"pending with past not_before", Job{Status: JobStatusPending, NotBefore: &past}, true},
		{"pending with future not_before", Job{Status: JobStatusPending, NotBefore: &future}, false},
		{"running", Job{Status: JobStatusRunning}, false},
		{"succeeded", Job{Status: JobStatusSucceeded}, false},
	}

	for _, tt := range tests {
		if got := tt.job.Runnable(now); got != tt.want {
			t.Errorf("%s: Runnable() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestJobAdvanceToDistribute(t *testing.T) {
	job := &Job{Status: JobStatusRunning, Stage: StageTransform, Attempt: 1, AwaitingSlot: true}
	slotID := uuid.New()
	publishAt := time.Now().Add(2 * time.Hour)

	job.AdvanceToDistribute(map[string]any{"processed_file": "/tmp/out.mp4"}, slotID, publishAt)

	if job.Stage != StageDistribute {
		t.Errorf("stage = %s, want DISTRIBUTE", job.Stage)
	}
	if job.SlotID == nil || *job.SlotID != slotID {
		t.Error("SlotID should be bound to the reserved slot")
	}
	if job.AwaitingSlot {
		t.Error("AwaitingSlot should be cleared")
	}
	if job.NotBefore == nil || !job.NotBefore.Equal(publishAt) {
		t.Error("NotBefore should equal the slot publish time")
	}
	if !job.Runnable(publishAt.Add(time.Second)) {
		t.Error("job should be runnable after publish time")
	}
	if job.Runnable(publishAt.Add(-time.Minute)) {
		t.Error("job should not be runnable before publish time")
	}
}

func TestJobHoldForSlot(t *testing.T) {
	job := &Job{Status: JobStatusRunning, Stage: StageTransform, Attempt: 2}
	retryAt := time.Now().Add(30 * time.Minute)

	job.HoldForSlot(map[string]any{"processed_file": "/tmp/out.mp4"}, retryAt)

	if job.Status != JobStatusPending {
		t.Errorf("status = %s, want PENDING", job.Status)
	}
	// Стадия не меняется: результат TRANSFORM сохранён в payload.
	if job.Stage != StageTransform {
		t.Errorf("stage = %s, want TRANSFORM", job.Stage)
	}
	if !job.AwaitingSlot {
		t.Error("AwaitingSlot should be set")
	}
	if job.Attempt != 0 {
		t.Errorf("attempt = %d, want 0", job.Attempt)
	}
}

func TestJobMarkCancelledClearsRequest(t *testing.T) {
	job := &Job{Status: JobStatusRunning, CancelRequested: true}

	job.MarkCancelled()

	if job.Status != JobStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", job.Status)
	}
	if job.CancelRequested {
		t.Error("CancelRequested should be cleared")
	}
	if job.FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}
}

func TestJobDedupeToken(t *testing.T) {
	job := &Job{Payload: map[string]any{"dedupe_token": "ch1:video42"}}
	if got := job.DedupeToken(); got != "ch1:video42" {
		t.Errorf("DedupeToken() = %q, want %q", got, "ch1:video42")
	}

	empty := &Job{}
	if got := empty.DedupeToken(); got != "" {
		t.Errorf("DedupeToken() on empty payload = %q, want empty", got)
	}
}

// --- RetryPolicy Tests ---

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 10 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{10, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicyBackoffDefaults(t *testing.T) {
	// Нулевая политика не должна давать нулевой backoff.
	var p RetryPolicy
	if got := p.Backoff(1); got <= 0 {
		t.Errorf("Backoff(1) with zero policy = %v, want > 0", got)
	}
}

func TestRetryPolicyExhausted(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3}

	if p.Exhausted(2) {
		t.Error("attempt 2 of 3 should not be exhausted")
	}
	if !p.Exhausted(3) {
		t.Error("attempt 3 of 3 should be exhausted")
	}

	zero := RetryPolicy{}
	if !zero.Exhausted(1) {
		t.Error("zero policy should allow exactly one attempt")
	}
}

// --- OrchestrationState Tests ---

func TestOrchestrationStatePhase(t *testing.T) {
	tests := []struct {
		state OrchestrationState
		want  OrchestrationPhase
	}{
		{OrchestrationState{}, PhaseStopped},
		{OrchestrationState{Running: true}, PhaseRunning},
		{OrchestrationState{Running: true, Paused: true}, PhasePaused},
		{OrchestrationState{Paused: true}, PhaseStopped},
	}

	for _, tt := range tests {
		if got := tt.state.Phase(); got != tt.want {
			t.Errorf("Phase() for %+v = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestOrchestrationStateDispatchable(t *testing.T) {
	if (OrchestrationState{Running: true, Paused: true}).Dispatchable() {
		t.Error("paused orchestration should not be dispatchable")
	}
	if !(OrchestrationState{Running: true}).Dispatchable() {
		t.Error("running orchestration should be dispatchable")
	}
	if (OrchestrationState{}).Dispatchable() {
		t.Error("stopped orchestration should not be dispatchable")
	}
}
