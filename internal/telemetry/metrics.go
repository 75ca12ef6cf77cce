package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики оркестратора. Регистрируются в default registry,
// экспортируются демоном на /metrics.
var (
	// JobsEnqueued — принятые в очередь jobs по каналам.
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidpipe",
		Name:      "jobs_enqueued_total",
		Help:      "Jobs accepted into the queue.",
	}, []string{"channel_id"})

	// JobsClaimed — успешные claim'ы PENDING→RUNNING по каналам.
	JobsClaimed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidpipe",
		Name:      "jobs_claimed_total",
		Help:      "Successful PENDING to RUNNING claims.",
	}, []string{"channel_id"})

	// JobsFinished — jobs, достигшие терминального статуса.
	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidpipe",
		Name:      "jobs_finished_total",
		Help:      "Jobs reaching a terminal status.",
	}, []string{"status"})

	// StageDuration — продолжительность вызовов stage executor'ов.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vidpipe",
		Name:      "stage_duration_seconds",
		Help:      "Stage executor invocation duration.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
	}, []string{"stage", "outcome"})

	// StageRetries — запланированные retry по стадиям.
	StageRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidpipe",
		Name:      "stage_retries_total",
		Help:      "Stage retries scheduled after retryable failures.",
	}, []string{"stage"})

	// SlotConflicts — проигранные гонки за publish slot.
	SlotConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vidpipe",
		Name:      "slot_conflicts_total",
		Help:      "Publish slot reservations lost to a concurrent reserver.",
	})

	// JobsRecovered — RUNNING jobs, возвращённые в PENDING
	// при crash recovery или reclaim'е протухших heartbeat'ов.
	JobsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vidpipe",
		Name:      "jobs_recovered_total",
		Help:      "RUNNING jobs reset to PENDING by recovery.",
	}, []string{"reason"})

	// DispatchActive — количество выполняющихся стадий.
	DispatchActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vidpipe",
		Name:      "dispatch_active",
		Help:      "Stage executions currently in flight.",
	})
)
