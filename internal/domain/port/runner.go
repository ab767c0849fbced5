package port

import (
	"context"
	"time"
)

// CommandOutcome is the structured result of one external process run. Run
// never returns an error: spawn failures, non-zero exits, and timeouts are
// all encoded here so the caller has a single place to look.
type CommandOutcome struct {
	Success  bool
	Stdout   string
	Stderr   string
	ExitCode *int
	Error    string
}

// TimeoutExitCode is the sentinel exit code reported when the wall-clock
// ceiling elapses before the process finishes.
const TimeoutExitCode = -1

// CommandRunner runs an external command in workDir with a wall-clock
// timeout. The process runs in its own OS process; the caller blocks only on
// the bounded wait.
type CommandRunner interface {
	Run(ctx context.Context, command string, args []string, workDir string, timeout time.Duration) CommandOutcome
}
