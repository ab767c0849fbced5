package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Copium-archive/boardcast/internal/domain/entity"
	"github.com/Copium-archive/boardcast/internal/domain/port"
	"github.com/Copium-archive/boardcast/internal/infra/ffmpeg"
	"github.com/Copium-archive/boardcast/internal/infra/metrics"
	"github.com/Copium-archive/boardcast/internal/planner"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Pipeline stage names, used in failure messages, metrics, and spans.
const (
	StagePersist    = "persist"
	StageFetch      = "fetch"
	StageRender     = "render"
	StagePlan       = "plan"
	StageSynthesize = "synthesize"
	StageComposite  = "composite"
	StageUpload     = "upload"
)

type ExportVideoUseCase struct {
	repo      port.ExportJobRepository
	storage   port.ClipStorage
	renderer  port.AnimationRenderer
	runner    port.CommandRunner
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	cfg       ExportConfig
}

type ExportConfig struct {
	// ProjectRoot anchors every relative path and is the working directory
	// for both external tools.
	ProjectRoot       string
	ExportJSONPath    string
	WorkDir           string
	FFmpegBin         string
	ProcessTimeout    time.Duration
	AnimationDuration float64
}

func NewExportVideoUseCase(
	repo port.ExportJobRepository,
	storage port.ClipStorage,
	renderer port.AnimationRenderer,
	runner port.CommandRunner,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg ExportConfig,
) *ExportVideoUseCase {
	return &ExportVideoUseCase{
		repo:      repo,
		storage:   storage,
		renderer:  renderer,
		runner:    runner,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

func (uc *ExportVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ExportVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.ExportRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal export request", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.Int("job.move_count", len(msg.Timeline.Timestamps)),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("user_id", msg.UserID))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewExportJob(msg.UserID, msg.BackgroundKey, len(msg.Timeline.Timestamps))
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			// Route through the failure path like any other stage: the
			// request must reach the DLQ even when the database is down.
			log.Error("failed to create export job record", zap.Error(err))
			return uc.handleStageFailure(ctx, job, msg, rawMsg, StagePersist, "create job record: "+err.Error(), log)
		}
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return uc.handleStageFailure(ctx, job, msg, rawMsg, StagePersist, "update job record: "+err.Error(), log)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.runExportPipeline(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	return nil
}

func (uc *ExportVideoUseCase) runExportPipeline(
	ctx context.Context,
	job *entity.ExportJob,
	msg entity.ExportRequestMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	// Persist the timeline for the rendering tool.
	persistStart := time.Now()
	_, spanPersist := tracer.Start(ctx, "persist_timeline")
	exportPath := filepath.Join(uc.cfg.ProjectRoot, uc.cfg.ExportJSONPath)
	if err := uc.persistTimeline(msg.Timeline, exportPath); err != nil {
		spanPersist.End()
		log.Error("failed to persist timeline", zap.Error(err), zap.String("path", exportPath))
		return uc.handleStageFailure(ctx, job, msg, rawMsg, StagePersist, err.Error(), log)
	}
	spanPersist.End()
	metrics.StageDuration.WithLabelValues(StagePersist).Observe(time.Since(persistStart).Seconds())

	workDir := filepath.Join(uc.cfg.ProjectRoot, uc.cfg.WorkDir)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return uc.handleStageFailure(ctx, job, msg, rawMsg, StagePersist, "create work dir: "+err.Error(), log)
	}

	// Fetch the board footage when the request references an uploaded clip;
	// otherwise the background file is expected on disk already.
	if msg.BackgroundKey != "" {
		fetchStart := time.Now()
		ctxFetch, spanFetch := tracer.Start(ctx, "fetch_background")
		bgPath := filepath.Join(workDir, ffmpeg.DefaultBackgroundFile)
		if err := uc.storage.DownloadClip(ctxFetch, msg.BackgroundKey, bgPath); err != nil {
			spanFetch.End()
			log.Error("failed to fetch background clip", zap.Error(err), zap.String("key", msg.BackgroundKey))
			return uc.handleStageFailure(ctx, job, msg, rawMsg, StageFetch, err.Error(), log)
		}
		spanFetch.End()
		metrics.StageDuration.WithLabelValues(StageFetch).Observe(time.Since(fetchStart).Seconds())
	}

	// Render the animation clip.
	renderStart := time.Now()
	ctxRender, spanRender := tracer.Start(ctx, "render_animation")
	renderOutcome := uc.renderer.RenderAnimation(ctxRender)
	spanRender.End()
	if !renderOutcome.Success {
		log.Error("animation rendering failed", zap.String("error", renderOutcome.Error))
		return uc.handleStageFailure(ctx, job, msg, rawMsg, StageRender, renderOutcome.Error, log)
	}
	metrics.StageDuration.WithLabelValues(StageRender).Observe(time.Since(renderStart).Seconds())

	// Plan the overlay/background segments.
	_, spanPlan := tracer.Start(ctx, "plan_segments")
	timePerMove := msg.Timeline.TimePerMove
	if timePerMove == 0 {
		timePerMove = entity.DefaultTimePerMove
	}
	segPlan, err := planner.Plan(
		msg.Timeline.Timestamps,
		timePerMove,
		entity.Offset{X: msg.Timeline.XOffset, Y: msg.Timeline.YOffset},
		uc.cfg.AnimationDuration,
	)
	spanPlan.End()
	if err != nil {
		log.Error("segment planning failed", zap.Error(err))
		return uc.handleStageFailure(ctx, job, msg, rawMsg, StagePlan, err.Error(), log)
	}
	metrics.SegmentsPlannedTotal.Add(float64(len(segPlan.Overlay)))

	// Synthesize the compositing engine invocation.
	_, spanSynth := tracer.Start(ctx, "synthesize_filter_graph")
	compPlan := entity.CompositionPlan{
		Overlay:    segPlan.Overlay,
		Background: segPlan.Background,
		Offset:     segPlan.Offset,
	}
	if err := ffmpeg.ResolveClipPaths(&compPlan, uc.cfg.ProjectRoot, uc.cfg.WorkDir); err != nil {
		spanSynth.End()
		return uc.handleStageFailure(ctx, job, msg, rawMsg, StageSynthesize, err.Error(), log)
	}
	args, err := ffmpeg.BuildOverlayArgs(compPlan)
	spanSynth.End()
	if err != nil {
		log.Error("filter graph synthesis failed", zap.Error(err))
		return uc.handleStageFailure(ctx, job, msg, rawMsg, StageSynthesize, err.Error(), log)
	}

	// Run the compositing engine.
	compositeStart := time.Now()
	ctxComp, spanComp := tracer.Start(ctx, "composite_video")
	outcome := uc.runner.Run(ctxComp, uc.cfg.FFmpegBin, args, uc.cfg.ProjectRoot, uc.cfg.ProcessTimeout)
	spanComp.End()
	if !outcome.Success {
		log.Error("compositing failed", zap.String("error", outcome.Error))
		return uc.handleStageFailure(ctx, job, msg, rawMsg, StageComposite, outcome.Error, log)
	}
	metrics.StageDuration.WithLabelValues(StageComposite).Observe(time.Since(compositeStart).Seconds())

	// Upload the composited clip when the request came with an uploaded
	// background (storage-backed flow).
	var outputKey string
	if msg.BackgroundKey != "" {
		uploadStart := time.Now()
		ctxUp, spanUp := tracer.Start(ctx, "upload_output")
		outputKey = fmt.Sprintf("%s/export_%s.mp4", msg.UserID, job.ID.String())
		if err := uc.uploadOutput(ctxUp, compPlan.OutputPath, outputKey); err != nil {
			spanUp.End()
			log.Error("output upload failed", zap.Error(err))
			return uc.handleStageFailure(ctx, job, msg, rawMsg, StageUpload, err.Error(), log)
		}
		spanUp.End()
		metrics.StageDuration.WithLabelValues(StageUpload).Observe(time.Since(uploadStart).Seconds())
	}

	// A row-update failure after a successful export must not lose the
	// result: the status message below carries the COMPLETED state anyway.
	job.MarkCompleted(outputKey)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
	}

	result := &entity.ExportResult{
		Status:             "success",
		OverlaySegments:    segPlan.Overlay,
		BackgroundSegments: segPlan.Background,
		XYOffset:           [2]float64{segPlan.Offset.X, segPlan.Offset.Y},
		FFmpegCommand:      uc.cfg.FFmpegBin + " " + strings.Join(args, " "),
		FFmpegOutput:       engineOutput(outcome),
		Message:            "Video processing completed successfully",
	}
	uc.publishStatus(ctx, job, result, log)

	metrics.ExportsProcessedTotal.WithLabelValues("completed").Inc()

	log.Info("export completed successfully",
		zap.Int("segments", len(segPlan.Overlay)),
		zap.String("output", compPlan.OutputPath),
		zap.String("output_key", outputKey),
	)

	return nil
}

func (uc *ExportVideoUseCase) persistTimeline(timeline entity.MoveTimeline, path string) error {
	content, err := json.MarshalIndent(timeline, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize timeline: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("write export json: %w", err)
	}
	return nil
}

func (uc *ExportVideoUseCase) uploadOutput(ctx context.Context, outputPath, outputKey string) error {
	f, err := os.Open(outputPath)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat output: %w", err)
	}

	return uc.storage.UploadOutput(ctx, outputKey, f, stat.Size())
}

// handleStageFailure converts any stage failure into a terminal job state:
// the original request goes to the DLQ, the UI gets a status message naming
// the stage and cause, and the user is emailed when an address is known.
// Nothing is retried.
func (uc *ExportVideoUseCase) handleStageFailure(
	ctx context.Context,
	job *entity.ExportJob,
	msg entity.ExportRequestMessage,
	rawMsg []byte,
	stage string,
	cause string,
	log *zap.Logger,
) error {
	errMsg := stage + ": " + cause

	job.MarkFailed(stage, cause)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, nil, log)

	metrics.ExportsProcessedTotal.WithLabelValues("failed").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), stage, cause)
	}

	return nil
}

func (uc *ExportVideoUseCase) publishStatus(ctx context.Context, job *entity.ExportJob, result *entity.ExportResult, log *zap.Logger) {
	statusMsg := entity.ExportStatusMessage{
		JobID:         job.ID,
		UserID:        job.UserID,
		Status:        job.Status,
		BackgroundKey: job.BackgroundKey,
		OutputKey:     job.OutputKey,
		MoveCount:     job.MoveCount,
		FailedStage:   job.FailedStage,
		ErrorMessage:  job.ErrorMessage,
		Result:        result,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

// engineOutput picks the most useful captured stream: ffmpeg reports its
// progress on stderr even on success.
func engineOutput(outcome port.CommandOutcome) string {
	if strings.TrimSpace(outcome.Stdout) != "" {
		return outcome.Stdout
	}
	return outcome.Stderr
}
