package remotion

import (
	"context"
	"time"

	"github.com/Copium-archive/boardcast/internal/domain/port"
	"go.uber.org/zap"
)

// Renderer drives the Remotion CLI to produce the animation clip from the
// timeline persisted at remotion/export.json.
type Renderer struct {
	runner      port.CommandRunner
	bin         string
	entry       string
	composition string
	outputPath  string
	rootDir     string
	timeout     time.Duration
	logger      *zap.Logger
}

type RendererConfig struct {
	Bin         string
	Entry       string
	Composition string
	OutputPath  string
	RootDir     string
	Timeout     time.Duration
}

func NewRenderer(runner port.CommandRunner, cfg RendererConfig, logger *zap.Logger) *Renderer {
	return &Renderer{
		runner:      runner,
		bin:         cfg.Bin,
		entry:       cfg.Entry,
		composition: cfg.Composition,
		outputPath:  cfg.OutputPath,
		rootDir:     cfg.RootDir,
		timeout:     cfg.Timeout,
		logger:      logger,
	}
}

func (r *Renderer) RenderAnimation(ctx context.Context) port.CommandOutcome {
	args := []string{"remotion", "render", r.entry, r.composition, r.outputPath}

	r.logger.Info("rendering animation",
		zap.String("bin", r.bin),
		zap.Strings("args", args),
		zap.String("work_dir", r.rootDir),
	)

	return r.runner.Run(ctx, r.bin, args, r.rootDir, r.timeout)
}
