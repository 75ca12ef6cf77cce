package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkurenkov/vidpipe/internal/domain"
)

// StageRunRepo — репозиторий аудит-записей вызовов executor'ов.
type StageRunRepo struct {
	pool *pgxpool.Pool
}

// NewStageRunRepo создаёт новый StageRunRepo.
func NewStageRunRepo(pool *pgxpool.Pool) *StageRunRepo {
	return &StageRunRepo{pool: pool}
}

// Create создаёт аудит-запись.
func (r *StageRunRepo) Create(ctx context.Context, run *domain.StageRun) error {
	query := `
		INSERT INTO stage_runs (id, job_id, channel_id, stage, attempt, outcome,
		                        fatal, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.JobID,
		run.ChannelID,
		run.Stage,
		run.Attempt,
		run.Outcome,
		run.Fatal,
		nullString(run.Error),
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stage run: %w", err)
	}
	return nil
}

// ListByJobID возвращает историю вызовов для job в порядке выполнения.
func (r *StageRunRepo) ListByJobID(ctx context.Context, jobID uuid.UUID) ([]domain.StageRun, error) {
	query := `
		SELECT id, job_id, channel_id, stage, attempt, outcome, fatal, error,
		       started_at, finished_at
		FROM stage_runs
		WHERE job_id = $1
		ORDER BY started_at ASC
	`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list stage runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.StageRun
	for rows.Next() {
		var run domain.StageRun
		var runError *string
		err := rows.Scan(
			&run.ID,
			&run.JobID,
			&run.ChannelID,
			&run.Stage,
			&run.Attempt,
			&run.Outcome,
			&run.Fatal,
			&runError,
			&run.StartedAt,
			&run.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan stage run: %w", err)
		}
		if runError != nil {
			run.Error = *runError
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
