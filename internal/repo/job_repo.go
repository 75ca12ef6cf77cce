package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkurenkov/vidpipe/internal/domain"
)

// JobRepo — репозиторий для работы с jobs.
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

const jobColumns = `id, channel_id, stage, status, attempt, payload, slot_id,
	       awaiting_slot, not_before, cancel_requested, error,
	       started_at, finished_at, last_heartbeat, created_at, updated_at`

// Create создаёт новый job.
func (r *JobRepo) Create(ctx context.Context, job *domain.Job) error {
	payloadJSON, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO jobs (id, channel_id, stage, status, attempt, payload, slot_id,
		                  awaiting_slot, not_before, cancel_requested, error,
		                  created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.ChannelID,
		job.Stage,
		job.Status,
		job.Attempt,
		payloadJSON,
		job.SlotID,
		job.AwaitingSlot,
		job.NotBefore,
		job.CancelRequested,
		nullString(job.Error),
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetByID возвращает job по ID.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	return scanJob(r.pool.QueryRow(ctx, query, id))
}

// Update обновляет job.
func (r *JobRepo) Update(ctx context.Context, job *domain.Job) error {
	payloadJSON, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		UPDATE jobs
		SET stage = $2, status = $3, attempt = $4, payload = $5, slot_id = $6,
		    awaiting_slot = $7, not_before = $8, cancel_requested = $9, error = $10,
		    started_at = $11, finished_at = $12, last_heartbeat = $13, updated_at = $14
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Stage,
		job.Status,
		job.Attempt,
		payloadJSON,
		job.SlotID,
		job.AwaitingSlot,
		job.NotBefore,
		job.CancelRequested,
		nullString(job.Error),
		job.StartedAt,
		job.FinishedAt,
		job.LastHeartbeat,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateIfStatus обновляет job при условии, что его текущий статус в БД
// равен expected. Это conditional update, на котором держатся все
// атомарные переходы статусов.
func (r *JobRepo) UpdateIfStatus(ctx context.Context, job *domain.Job, expected domain.JobStatus) error {
	payloadJSON, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		UPDATE jobs
		SET stage = $2, status = $3, attempt = $4, payload = $5, slot_id = $6,
		    awaiting_slot = $7, not_before = $8, cancel_requested = $9, error = $10,
		    started_at = $11, finished_at = $12, last_heartbeat = $13, updated_at = $14
		WHERE id = $1 AND status = $15
	`
	result, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Stage,
		job.Status,
		job.Attempt,
		payloadJSON,
		job.SlotID,
		job.AwaitingSlot,
		job.NotBefore,
		job.CancelRequested,
		nullString(job.Error),
		job.StartedAt,
		job.FinishedAt,
		job.LastHeartbeat,
		job.UpdatedAt,
		expected,
	)
	if err != nil {
		return fmt.Errorf("conditional update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Либо job не существует, либо статус уже другой.
		if _, getErr := r.GetByID(ctx, job.ID); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrInvalidState
	}
	return nil
}

// ClaimNext атомарно выбирает старейший runnable PENDING job канала
// и переводит его в RUNNING.
//
// Критическая секция: advisory lock канала держит и проверку
// concurrency-лимита, и сам переход, поэтому при конкурирующих poll'ах
// лимит не превышается, а гонка за job разрешается в пользу ровно
// одного вызова. Возвращает ErrNotFound, если runnable job нет
// или лимит исчерпан.
func (r *JobRepo) ClaimNext(ctx context.Context, channelID uuid.UUID, limit int) (*domain.Job, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Сериализуем claim'ы внутри канала.
	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, channelID,
	); err != nil {
		return nil, fmt.Errorf("advisory lock: %w", err)
	}

	var running int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs WHERE channel_id = $1 AND status = 'RUNNING'`,
		channelID,
	).Scan(&running)
	if err != nil {
		return nil, fmt.Errorf("count running: %w", err)
	}
	if limit > 0 && running >= limit {
		return nil, ErrNotFound
	}

	query := `
		UPDATE jobs
		SET status = 'RUNNING', attempt = attempt + 1, not_before = NULL,
		    started_at = now(), last_heartbeat = now(), updated_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE channel_id = $1 AND status = 'PENDING'
			  AND (not_before IS NULL OR not_before <= now())
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + jobColumns
	job, err := scanJob(tx.QueryRow(ctx, query, channelID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim tx: %w", err)
	}
	return job, nil
}

// RequestCancel помечает RUNNING job для кооперативной отмены.
// Возвращает ErrInvalidState, если job уже не RUNNING.
func (r *JobRepo) RequestCancel(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE jobs SET cancel_requested = TRUE, updated_at = now()
		 WHERE id = $1 AND status = 'RUNNING'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrInvalidState
	}
	return nil
}

// Heartbeat обновляет last_heartbeat активного job.
func (r *JobRepo) Heartbeat(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE jobs SET last_heartbeat = now(), updated_at = now()
		 WHERE id = $1 AND status = 'RUNNING'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

// ResetRunning возвращает все RUNNING jobs в PENDING.
//
// Вызывается при старте процесса: RUNNING после нечистого завершения
// означает, что прошлый вызов executor'а не завершился. Attempt
// сохраняется — попытка считается израсходованной.
func (r *JobRepo) ResetRunning(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx,
		`UPDATE jobs
		 SET status = 'PENDING', started_at = NULL, last_heartbeat = NULL,
		     updated_at = now()
		 WHERE status = 'RUNNING'`,
	)
	if err != nil {
		return 0, fmt.Errorf("reset running jobs: %w", err)
	}
	return result.RowsAffected(), nil
}

// ReclaimStale возвращает в PENDING RUNNING jobs с heartbeat старше cutoff.
// Покрывает падение отдельного dispatch worker'а без рестарта процесса.
func (r *JobRepo) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx,
		`UPDATE jobs
		 SET status = 'PENDING', started_at = NULL, last_heartbeat = NULL,
		     updated_at = now()
		 WHERE status = 'RUNNING' AND last_heartbeat IS NOT NULL AND last_heartbeat < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return result.RowsAffected(), nil
}

// CountByChannelAndStatus возвращает количество jobs канала в статусе.
func (r *JobRepo) CountByChannelAndStatus(ctx context.Context, channelID uuid.UUID, status domain.JobStatus) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs WHERE channel_id = $1 AND status = $2`,
		channelID, status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return count, nil
}

// List возвращает список jobs с фильтрацией.
func (r *JobRepo) List(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE ($1::uuid IS NULL OR channel_id = $1)
		  AND ($2::text IS NULL OR status = $2::job_status)
		  AND ($3::text IS NULL OR stage = $3::job_stage)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.ChannelID),
		nullString(string(filter.Status)),
		nullString(string(filter.Stage)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJobFromRows(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// --- Helpers ---

// JobFilter — параметры фильтрации jobs.
type JobFilter struct {
	ChannelID *uuid.UUID
	Status    domain.JobStatus
	Stage     domain.Stage
	Limit     int
	Offset    int
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	job, err := scanJobRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return job, err
}

func scanJobFromRows(rows pgx.Rows) (*domain.Job, error) {
	return scanJobRow(rows)
}

func scanJobRow(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var payloadJSON []byte
	var jobError *string

	err := row.Scan(
		&job.ID,
		&job.ChannelID,
		&job.Stage,
		&job.Status,
		&job.Attempt,
		&payloadJSON,
		&job.SlotID,
		&job.AwaitingSlot,
		&job.NotBefore,
		&job.CancelRequested,
		&jobError,
		&job.StartedAt,
		&job.FinishedAt,
		&job.LastHeartbeat,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if payloadJSON != nil {
		if err := json.Unmarshal(payloadJSON, &job.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if jobError != nil {
		job.Error = *jobError
	}

	return &job, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
