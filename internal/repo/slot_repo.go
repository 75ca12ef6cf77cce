package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dkurenkov/vidpipe/internal/domain"
)

// SlotRepo — репозиторий для работы с publish slots.
//
// Инвариант at-most-one-job-per-slot держится на уникальном индексе
// (channel_id, publish_at): конкурирующие Reserve для одного времени
// разрешаются в пользу первого INSERT'а.
type SlotRepo struct {
	pool *pgxpool.Pool
}

// NewSlotRepo создаёт новый SlotRepo.
func NewSlotRepo(pool *pgxpool.Pool) *SlotRepo {
	return &SlotRepo{pool: pool}
}

const slotColumns = `id, channel_id, publish_at, job_id, consumed_at, created_at`

// Reserve пытается занять время publishAt для job.
// Возвращает ErrAlreadyExists, если время уже занято.
func (r *SlotRepo) Reserve(ctx context.Context, slot *domain.ScheduleSlot) error {
	query := `
		INSERT INTO schedule_slots (id, channel_id, publish_at, job_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (channel_id, publish_at) DO NOTHING
	`
	result, err := r.pool.Exec(ctx, query,
		slot.ID,
		slot.ChannelID,
		slot.PublishAt,
		slot.JobID,
		slot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert slot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// GetByID возвращает слот по токену резервации.
func (r *SlotRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduleSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM schedule_slots WHERE id = $1`
	return scanSlot(r.pool.QueryRow(ctx, query, id))
}

// Release освобождает неиспользованную резервацию.
// Идемпотентна: повторный вызов и вызов для подтверждённого слота — no-op.
func (r *SlotRepo) Release(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM schedule_slots WHERE id = $1 AND consumed_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

// Confirm помечает слот использованным.
// Возвращает ErrInvalidState, если слот уже подтверждён.
func (r *SlotRepo) Confirm(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE schedule_slots SET consumed_at = $2
		 WHERE id = $1 AND consumed_at IS NULL`,
		id, publishedAt,
	)
	if err != nil {
		return fmt.Errorf("confirm slot: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrInvalidState
	}
	return nil
}

// LatestForChannel возвращает самый поздний зарезервированный слот канала.
// Используется для расчёта следующего кандидата с учётом cadence.
func (r *SlotRepo) LatestForChannel(ctx context.Context, channelID uuid.UUID) (*domain.ScheduleSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM schedule_slots
		WHERE channel_id = $1
		ORDER BY publish_at DESC
		LIMIT 1
	`
	return scanSlot(r.pool.QueryRow(ctx, query, channelID))
}

// ListByChannel возвращает слоты канала начиная с from.
func (r *SlotRepo) ListByChannel(ctx context.Context, channelID uuid.UUID, from time.Time, limit int) ([]domain.ScheduleSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM schedule_slots
		WHERE channel_id = $1 AND publish_at >= $2
		ORDER BY publish_at ASC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, channelID, from, limit)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var slots []domain.ScheduleSlot
	for rows.Next() {
		slot, err := scanSlotRow(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *slot)
	}
	return slots, rows.Err()
}

// --- Helpers ---

func scanSlot(row pgx.Row) (*domain.ScheduleSlot, error) {
	slot, err := scanSlotRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return slot, err
}

func scanSlotRow(row pgx.Row) (*domain.ScheduleSlot, error) {
	var slot domain.ScheduleSlot
	err := row.Scan(
		&slot.ID,
		&slot.ChannelID,
		&slot.PublishAt,
		&slot.JobID,
		&slot.ConsumedAt,
		&slot.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan slot: %w", err)
	}
	return &slot, nil
}
