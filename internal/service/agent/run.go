package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"
)

// Run executes the agent in print mode and waits for it to exit or for the
// non-streaming deadline. Failures are folded into the returned text.
func (r *Runner) Run(ctx context.Context, inv Invocation) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	if err := checkWorkingDirectory(inv.WorkingDirectory); err != nil {
		r.logger.Error("cannot start agent", "session", inv.SessionID, "err", err)
		return Result{Text: fmt.Sprintf(TextExecError, err), Outcome: OutcomeError, ExitCode: -1, Duration: time.Since(start)}
	}

	cmd := r.command(ctx, inv, false)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running agent", "session", inv.SessionID, "dir", inv.WorkingDirectory, "prompt_len", len(inv.Prompt))
	runErr := cmd.Run()

	res := r.classify(ctx, runErr, stdout.String(), stderr.String())
	res.Duration = time.Since(start)
	r.logger.Debug("agent finished",
		"session", inv.SessionID,
		"outcome", res.Outcome,
		"code", res.ExitCode,
		"stdout_len", stdout.Len(),
		"stderr_len", stderr.Len(),
		"elapsed", res.Duration.Round(time.Millisecond),
	)
	return res
}

func (r *Runner) classify(ctx context.Context, runErr error, stdout, stderr string) Result {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.logger.Error("agent timed out", "timeout", r.cfg.Timeout)
		return Result{Text: r.timeoutText(r.cfg.Timeout), Outcome: OutcomeTimeout, ExitCode: -1}
	}

	code := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(runErr, &exitErr):
			code = exitErr.ExitCode()
		case isNotFound(runErr):
			r.logger.Error("agent executable not found", "command", r.executable())
			return Result{Text: r.notFoundText(), Outcome: OutcomeNotFound, ExitCode: -1}
		default:
			r.logger.Error("agent execution failed", "err", runErr)
			return Result{Text: fmt.Sprintf(TextExecError, runErr), Outcome: OutcomeError, ExitCode: -1}
		}
	}

	out := strings.TrimSpace(stdout)
	errOut := strings.TrimSpace(stderr)
	switch {
	case code == 0 && out != "":
		return Result{Text: out, Outcome: OutcomeOK}
	case code == 0:
		return Result{Text: TextCompleted, Outcome: OutcomeEmpty}
	case errOut != "":
		r.logger.Error("agent exited with error", "code", code, "stderr", errOut)
		return Result{Text: fmt.Sprintf(TextFailed, errOut), Outcome: OutcomeFailed, ExitCode: code}
	default:
		return Result{Text: TextNoResponse, Outcome: OutcomeNoResponse, ExitCode: code}
	}
}

// isNotFound reports a missing executable. The working directory is checked
// before spawning, so ENOENT from exec can only mean the binary.
func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
