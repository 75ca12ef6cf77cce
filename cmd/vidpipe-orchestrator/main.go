// Vidpipe Orchestrator — daemon конвейера публикации видео.
//
// Запускает:
//   - Central Orchestration Service (dispatch, recovery, reclaim)
//   - HTTP API для операторов (jobs, каналы, управление)
//   - /healthz и /metrics
//
// RabbitMQ опционален: без брокера оркестратор работает в
// polling-only режиме.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dkurenkov/vidpipe/internal/api"
	"github.com/dkurenkov/vidpipe/internal/channelcfg"
	"github.com/dkurenkov/vidpipe/internal/domain"
	"github.com/dkurenkov/vidpipe/internal/mq"
	"github.com/dkurenkov/vidpipe/internal/orchestrator"
	"github.com/dkurenkov/vidpipe/internal/pipeline"
	"github.com/dkurenkov/vidpipe/internal/queue"
	"github.com/dkurenkov/vidpipe/internal/repo"
	"github.com/dkurenkov/vidpipe/internal/scheduling"
	"github.com/dkurenkov/vidpipe/internal/stage"
	"github.com/dkurenkov/vidpipe/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting vidpipe-orchestrator")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	jobRepo := repo.NewJobRepo(pool)
	slotRepo := repo.NewSlotRepo(pool)
	channelRepo := repo.NewChannelRepo(pool)
	settingsRepo := repo.NewSettingsRepo(pool)
	stageRunRepo := repo.NewStageRunRepo(pool)

	// RabbitMQ
	var mqConn *mq.Connection
	var notifier *mq.Notifier
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err = mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		notifier = mq.NewNotifier(mq.NewPublisher(mqConn, logger), logger)
	}

	// Сервисы
	channels := channelcfg.New(channelRepo, 0)

	scheduler := scheduling.New(scheduling.Config{
		Store:  slotRepo,
		Logger: logger,
	})

	queueCfg := queue.Config{
		Store:    jobRepo,
		Channels: channels,
		Flags:    settingsRepo,
		Slots:    scheduler,
		Logger:   logger,
	}
	if notifier != nil {
		queueCfg.Notifier = notifier
	}
	jobQueue := queue.New(queueCfg)

	registry := stage.DefaultRegistry(stageEndpoints(), nil)

	pipeCfg := pipeline.Config{
		Queue:    jobQueue,
		Slots:    scheduler,
		Channels: channels,
		Jobs:     jobRepo,
		Registry: registry,
		Policies: settingsRepo,
		Audit:    stageRunRepo,
		Logger:   logger,
	}
	if notifier != nil {
		pipeCfg.Notifier = notifier
	}
	pipe := pipeline.New(pipeCfg)

	orch := orchestrator.New(orchestrator.Config{
		Queue:    jobQueue,
		Pipeline: pipe,
		Channels: channels,
		Recovery: jobRepo,
		Flags:    settingsRepo,
		Conn:     mqConn,
		Logger:   logger,
	})

	// HTTP: API + healthz + metrics
	handler := api.NewHandler(api.Config{
		Queue:     jobQueue,
		Control:   orch,
		Slots:     scheduler,
		Channels:  channels,
		Jobs:      jobRepo,
		StageRuns: stageRunRepo,
		Logger:    logger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8080"
	if v := os.Getenv("VIDPIPE_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Фоновые циклы оркестратора; блокирует до сигнала завершения
	go func() {
		if err := orch.Run(ctx); err != nil {
			logger.Error("orchestrator error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	orch.Stop()
	logger.Info("vidpipe-orchestrator stopped")
}

// stageEndpoints собирает endpoints stage-сервисов по умолчанию
// из окружения. Каналы могут переопределять свои.
func stageEndpoints() map[domain.Stage]string {
	endpoints := make(map[domain.Stage]string)
	for st, env := range map[domain.Stage]string{
		domain.StageScrape:     "STAGE_SCRAPE_URL",
		domain.StageDownload:   "STAGE_DOWNLOAD_URL",
		domain.StageTransform:  "STAGE_TRANSFORM_URL",
		domain.StageDistribute: "STAGE_DISTRIBUTE_URL",
	} {
		if v := os.Getenv(env); v != "" {
			endpoints[st] = v
		}
	}
	return endpoints
}
