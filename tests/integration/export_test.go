package integration

import (
	"context"
	"encoding/json"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/Copium-archive/boardcast/internal/domain/entity"
	"github.com/Copium-archive/boardcast/internal/domain/port"
	"github.com/Copium-archive/boardcast/internal/infra/email"
	miniostorage "github.com/Copium-archive/boardcast/internal/infra/minio"
	"github.com/Copium-archive/boardcast/internal/infra/postgres"
	"github.com/Copium-archive/boardcast/internal/infra/process"
	"github.com/Copium-archive/boardcast/internal/infra/rabbitmq"
	"github.com/Copium-archive/boardcast/internal/planner"
	"github.com/Copium-archive/boardcast/internal/usecase"
	"github.com/Copium-archive/boardcast/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

// testRenderer stands in for the Remotion CLI: it synthesizes the animation
// clip with ffmpeg so the rest of the pipeline runs for real.
type testRenderer struct {
	runner  port.CommandRunner
	outPath string
	rootDir string
}

func (r *testRenderer) RenderAnimation(ctx context.Context) port.CommandOutcome {
	return r.runner.Run(ctx, "ffmpeg", []string{
		"-f", "lavfi", "-i", "testsrc=duration=2:size=160x120:rate=10",
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		"-y", r.outPath,
	}, r.rootDir, time.Minute)
}

func TestExportEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Start PostgreSQL container
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("exports"),
		tcpostgres.WithUsername("export_user"),
		tcpostgres.WithPassword("export_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Start RabbitMQ container
	rmqContainer, err := tcrabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
	)
	require.NoError(t, err)
	defer rmqContainer.Terminate(ctx)

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// Start MinIO container
	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	// Run migrations
	err = postgres.RunMigrations(pgConnStr, "../../migrations")
	require.NoError(t, err)

	// Setup MinIO storage
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     minioEndpoint,
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		UseSSL:       false,
		ClipBucket:   "clips",
		OutputBucket: "exports",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	log, _ := logger.New("debug")
	runner := process.NewRunner(true, log)
	projectRoot := t.TempDir()
	workDir := filepath.Join(projectRoot, "sample_exporting")

	// Generate board footage and upload it as the background clip.
	bgPath := filepath.Join(projectRoot, "board.mp4")
	gen := runner.Run(ctx, "ffmpeg", []string{
		"-f", "lavfi", "-i", "smptebars=duration=8:size=320x240:rate=10",
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		"-y", bgPath,
	}, projectRoot, time.Minute)
	require.True(t, gen.Success, "generate background clip: %s", gen.Error)

	minioClient, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)

	backgroundKey := "testuser/board.mp4"
	_, err = minioClient.FPutObject(ctx, "clips", backgroundKey, bgPath, miniogo.PutObjectOptions{
		ContentType: "video/mp4",
	})
	require.NoError(t, err)

	// Setup RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, "boardcast.export")
	require.NoError(t, err)

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, "export.requests.dlq")

	// Setup DB pool
	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	defer pool.Close()

	// Setup use case
	repo := postgres.NewExportJobRepository(pool)
	renderer := &testRenderer{
		runner:  runner,
		outPath: filepath.Join(workDir, "chess-animation.mp4"),
		rootDir: projectRoot,
	}
	notifier := email.NewSMTPNotifier("localhost", 1025, "test@test.local", log)

	uc := usecase.NewExportVideoUseCase(
		repo, storage, renderer, runner,
		statusPub, dlqPub, notifier,
		log,
		usecase.ExportConfig{
			ProjectRoot:       projectRoot,
			ExportJSONPath:    "remotion/export.json",
			WorkDir:           "sample_exporting",
			FFmpegBin:         "ffmpeg",
			ProcessTimeout:    2 * time.Minute,
			AnimationDuration: planner.DefaultAnimationEnd,
		},
	)

	// Setup consumer
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         rmqURL,
		Queue:       "export.requests",
		Exchange:    "boardcast.export",
		DLQ:         "export.requests.dlq",
		StatusQueue: "export.status",
		Prefetch:    1,
		WorkerCount: 1,
	}, uc.Execute, log)
	require.NoError(t, err)
	defer consumer.Close()

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()
	go consumer.Start(consumerCtx)

	// Publish an export request.
	jobID := uuid.New()
	request := entity.ExportRequestMessage{
		JobID:         jobID,
		UserID:        "testuser",
		BackgroundKey: backgroundKey,
		Timeline: entity.MoveTimeline{
			Timestamps:  []float64{0.2, 0.4, 0.6},
			TimePerMove: 0.2,
			XOffset:     10,
			YOffset:     20,
		},
	}
	body, err := json.Marshal(request)
	require.NoError(t, err)

	pubCh, err := rmqConn.Channel()
	require.NoError(t, err)
	err = pubCh.PublishWithContext(ctx, "boardcast.export", "export.requests", false, false,
		amqp.Publishing{ContentType: "application/json", Body: body},
	)
	require.NoError(t, err)

	// Await the status message.
	statusCh, err := rmqConn.Channel()
	require.NoError(t, err)
	deliveries, err := statusCh.ConsumeWithContext(ctx, "export.status", "", true, false, false, false, nil)
	require.NoError(t, err)

	var status entity.ExportStatusMessage
	select {
	case d := <-deliveries:
		require.NoError(t, json.Unmarshal(d.Body, &status))
	case <-time.After(3 * time.Minute):
		t.Fatal("timed out waiting for export status")
	}

	require.Equal(t, entity.JobStatusCompleted, status.Status, "error: %s (stage %s)", status.ErrorMessage, status.FailedStage)
	require.NotNil(t, status.Result)
	assert.Equal(t, "success", status.Result.Status)
	assert.Len(t, status.Result.OverlaySegments, 3)

	// Output object landed in the exports bucket.
	_, err = minioClient.StatObject(ctx, "exports", status.OutputKey, miniogo.StatObjectOptions{})
	assert.NoError(t, err)

	// Job record is terminal in Postgres.
	job, err := repo.FindByID(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
}
