package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dkurenkov/vidpipe/internal/domain"
)

// PolicySource — источник переопределений retry-политики
// (repo.SettingsRepo).
type PolicySource interface {
	GetInt(ctx context.Context, key string, fallback int) (int, error)
}

// policyKey строит ключ настройки для стадии:
// retry.scrape.max_attempts, retry.download.timeout_sec и т.д.
func policyKey(stage domain.Stage, suffix string) string {
	return fmt.Sprintf("retry.%s.%s", strings.ToLower(string(stage)), suffix)
}

// loadPolicy собирает retry-политику стадии: defaults из кода,
// переопределения из settings store. Ошибки чтения настроек не
// блокируют конвейер — действуют defaults.
func loadPolicy(ctx context.Context, src PolicySource, stage domain.Stage) domain.RetryPolicy {
	policy := domain.DefaultRetryPolicy()
	if src == nil {
		return policy
	}

	if v, err := src.GetInt(ctx, policyKey(stage, "max_attempts"), policy.MaxAttempts); err == nil && v > 0 {
		policy.MaxAttempts = v
	}
	if v, err := src.GetInt(ctx, policyKey(stage, "initial_delay_ms"), int(policy.InitialDelay/time.Millisecond)); err == nil && v > 0 {
		policy.InitialDelay = time.Duration(v) * time.Millisecond
	}
	if v, err := src.GetInt(ctx, policyKey(stage, "max_delay_ms"), int(policy.MaxDelay/time.Millisecond)); err == nil && v > 0 {
		policy.MaxDelay = time.Duration(v) * time.Millisecond
	}
	if v, err := src.GetInt(ctx, policyKey(stage, "timeout_sec"), int(policy.Timeout/time.Second)); err == nil && v > 0 {
		policy.Timeout = time.Duration(v) * time.Second
	}
	return policy
}
