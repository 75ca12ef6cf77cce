package stage

import (
	"context"
	"fmt"

	"github.com/dkurenkov/vidpipe/internal/domain"
)

// Executor — исполнитель одной стадии конвейера.
//
// Execute получает job с payload текущей стадии и конфигурацию канала.
// Успех: Result с payload для следующей стадии.
// Неудача: error, классифицированная через Retryable/Fatal (errors.go);
// неклассифицированная ошибка трактуется как retryable.
//
// Executor не должен предполагать exactly-once: после нечистого
// завершения процесса стадия вызывается заново с начала.
type Executor interface {
	Execute(ctx context.Context, job *domain.Job, channel *domain.Channel) (*Result, error)
}

// Result — результат успешного выполнения стадии.
type Result struct {
	// Payload — данные для следующей стадии.
	Payload map[string]any

	// PublishedAt — фактическое время публикации (только DISTRIBUTE).
	PublishedAt string
}

// Registry — реестр executor'ов по стадиям.
type Registry struct {
	executors map[domain.Stage]Executor
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[domain.Stage]Executor)}
}

// Register добавляет executor для стадии.
func (r *Registry) Register(stage domain.Stage, executor Executor) {
	r.executors[stage] = executor
}

// Get возвращает executor для стадии.
func (r *Registry) Get(stage domain.Stage) (Executor, error) {
	executor, ok := r.executors[stage]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}
	return executor, nil
}

// Stages возвращает стадии с зарегистрированными executor'ами.
func (r *Registry) Stages() []domain.Stage {
	stages := make([]domain.Stage, 0, len(r.executors))
	for _, st := range domain.Stages() {
		if _, ok := r.executors[st]; ok {
			stages = append(stages, st)
		}
	}
	return stages
}
