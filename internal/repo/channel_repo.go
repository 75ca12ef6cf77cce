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

// ChannelRepo — репозиторий для чтения конфигурации каналов.
//
// Каналы принадлежат внешнему конфигурационному слою; оркестратор
// только читает их. Мутаций здесь нет сознательно.
type ChannelRepo struct {
	pool *pgxpool.Pool
}

// NewChannelRepo создаёт новый ChannelRepo.
func NewChannelRepo(pool *pgxpool.Pool) *ChannelRepo {
	return &ChannelRepo{pool: pool}
}

const channelColumns = `id, name, active, concurrency_limit, scrape_source,
	       preset_id, music_tag, min_spacing_sec, publish_cron, timezone,
	       stage_endpoints, created_at, updated_at`

// GetByID возвращает канал по ID.
func (r *ChannelRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE id = $1`
	return scanChannel(r.pool.QueryRow(ctx, query, id))
}

// ListActive возвращает активные каналы в стабильном порядке.
func (r *ChannelRepo) ListActive(ctx context.Context) ([]domain.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE active ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active channels: %w", err)
	}
	defer rows.Close()

	var channels []domain.Channel
	for rows.Next() {
		ch, err := scanChannelRow(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *ch)
	}
	return channels, rows.Err()
}

// --- Helpers ---

func scanChannel(row pgx.Row) (*domain.Channel, error) {
	ch, err := scanChannelRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ch, err
}

func scanChannelRow(row pgx.Row) (*domain.Channel, error) {
	var ch domain.Channel
	var scrapeSource, presetID, musicTag, publishCron, timezone *string
	var minSpacingSec int
	var endpointsJSON []byte

	err := row.Scan(
		&ch.ID,
		&ch.Name,
		&ch.Active,
		&ch.ConcurrencyLimit,
		&scrapeSource,
		&presetID,
		&musicTag,
		&minSpacingSec,
		&publishCron,
		&timezone,
		&endpointsJSON,
		&ch.CreatedAt,
		&ch.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan channel: %w", err)
	}

	if scrapeSource != nil {
		ch.ScrapeSource = *scrapeSource
	}
	if presetID != nil {
		ch.PresetID = *presetID
	}
	if musicTag != nil {
		ch.MusicTag = *musicTag
	}
	if publishCron != nil {
		ch.PublishCron = *publishCron
	}
	if timezone != nil {
		ch.Timezone = *timezone
	}
	ch.MinSpacing = time.Duration(minSpacingSec) * time.Second

	if endpointsJSON != nil {
		if err := json.Unmarshal(endpointsJSON, &ch.StageEndpoints); err != nil {
			return nil, fmt.Errorf("unmarshal stage_endpoints: %w", err)
		}
	}

	return &ch, nil
}
