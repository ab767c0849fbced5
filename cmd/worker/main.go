package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Copium-archive/boardcast/internal/infra/config"
	"github.com/Copium-archive/boardcast/internal/infra/email"
	"github.com/Copium-archive/boardcast/internal/infra/metrics"
	miniostorage "github.com/Copium-archive/boardcast/internal/infra/minio"
	"github.com/Copium-archive/boardcast/internal/infra/postgres"
	"github.com/Copium-archive/boardcast/internal/infra/process"
	"github.com/Copium-archive/boardcast/internal/infra/rabbitmq"
	"github.com/Copium-archive/boardcast/internal/infra/remotion"
	"github.com/Copium-archive/boardcast/internal/infra/tracing"
	"github.com/Copium-archive/boardcast/internal/usecase"
	"github.com/Copium-archive/boardcast/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting boardcast-export-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	// Migrations
	err = postgres.RunMigrations(cfg.DatabaseURL, "migrations")
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     cfg.MinIOEndpoint,
		AccessKey:    cfg.MinIOAccessKey,
		SecretKey:    cfg.MinIOSecretKey,
		UseSSL:       cfg.MinIOUseSSL,
		ClipBucket:   cfg.MinIOClipBucket,
		OutputBucket: cfg.MinIOOutputBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Infra adapters
	processTimeout := time.Duration(cfg.ProcessTimeoutSecs) * time.Second
	repo := postgres.NewExportJobRepository(pool)
	runner := process.NewRunner(cfg.ProcessKillOnTimeout, log)
	renderer := remotion.NewRenderer(runner, remotion.RendererConfig{
		Bin:         cfg.RemotionBin,
		Entry:       cfg.RemotionEntry,
		Composition: cfg.RemotionComposition,
		OutputPath:  cfg.ExportWorkDir + "/chess-animation.mp4",
		RootDir:     cfg.ProjectRoot,
		Timeout:     processTimeout,
	}, log)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	// Use case
	uc := usecase.NewExportVideoUseCase(
		repo, storage, renderer, runner,
		statusPub, dlqPub, notifier,
		log,
		usecase.ExportConfig{
			ProjectRoot:       cfg.ProjectRoot,
			ExportJSONPath:    cfg.ExportJSONPath,
			WorkDir:           cfg.ExportWorkDir,
			FFmpegBin:         cfg.FFmpegBin,
			ProcessTimeout:    processTimeout,
			AnimationDuration: cfg.AnimationDuration,
		},
	)

	// Metrics server
	metricsSrv := metrics.StartOpsServer(cfg.MetricsPort, log)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQExportQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("boardcast-export-service started, consuming export requests")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("boardcast-export-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
