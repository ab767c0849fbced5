package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/Copium-archive/boardcast/internal/domain/port"
	"go.uber.org/zap"
)

// Runner executes external commands with a wall-clock ceiling. Every failure
// mode is folded into the returned CommandOutcome so callers never branch on
// an error value.
type Runner struct {
	killOnTimeout bool
	logger        *zap.Logger
}

// NewRunner creates a runner. When killOnTimeout is false, a process that
// outlives its ceiling is left running and its eventual completion is logged
// instead of force-terminated.
func NewRunner(killOnTimeout bool, logger *zap.Logger) *Runner {
	return &Runner{killOnTimeout: killOnTimeout, logger: logger}
}

func (r *Runner) Run(ctx context.Context, command string, args []string, workDir string, timeout time.Duration) port.CommandOutcome {
	cmd := exec.Command(command, args...)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return port.CommandOutcome{
			Success: false,
			Error:   fmt.Sprintf("failed to spawn %s: %v", command, err),
		}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		r.logger.Debug("command finished",
			zap.String("command", command),
			zap.Duration("elapsed", time.Since(start)),
		)
		return r.completed(command, stdout.String(), stderr.String(), err)

	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		code := port.TimeoutExitCode
		return port.CommandOutcome{
			Success:  false,
			ExitCode: &code,
			Error:    fmt.Sprintf("%s cancelled: %v", command, ctx.Err()),
		}

	case <-timer.C:
		r.reapOrDetach(command, cmd, done)
		code := port.TimeoutExitCode
		return port.CommandOutcome{
			Success:  false,
			ExitCode: &code,
			Error:    fmt.Sprintf("%s timed out after %s", command, timeout),
		}
	}
}

// reapOrDetach applies the configured timeout policy. A detached process is
// never silently discarded: its eventual exit is logged.
func (r *Runner) reapOrDetach(command string, cmd *exec.Cmd, done <-chan error) {
	if r.killOnTimeout {
		_ = cmd.Process.Kill()
		<-done
		r.logger.Warn("killed command after timeout", zap.String("command", command))
		return
	}

	r.logger.Warn("detaching from command after timeout", zap.String("command", command))
	go func() {
		err := <-done
		r.logger.Info("detached command finished",
			zap.String("command", command),
			zap.Error(err),
		)
	}()
}

func (r *Runner) completed(command, stdout, stderr string, err error) port.CommandOutcome {
	if err == nil {
		code := 0
		// stderr is kept even on success: diagnostic tools log warnings there.
		return port.CommandOutcome{
			Success:  true,
			Stdout:   stdout,
			Stderr:   stderr,
			ExitCode: &code,
		}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		return port.CommandOutcome{
			Success:  false,
			Stdout:   stdout,
			Stderr:   stderr,
			ExitCode: &code,
			Error: fmt.Sprintf("%s exited with code %d\nSTDERR: %s\nSTDOUT: %s",
				command, code, stderr, stdout),
		}
	}

	return port.CommandOutcome{
		Success: false,
		Stdout:  stdout,
		Stderr:  stderr,
		Error:   fmt.Sprintf("%s failed: %v", command, err),
	}
}
