package agent

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/zhouzirui/claude-code-chat/backend/internal/model/stream"
)

const (
	lineBuffer  = 64
	maxLineSize = 16 * 1024 * 1024
)

// Stream runs the agent in stream-json mode and publishes one event per
// recognised output line as it arrives. The returned text is what the
// session history keeps. Stream never publishes the terminal sentinel; the
// transport does that once Stream has returned.
func (r *Runner) Stream(ctx context.Context, inv Invocation, pub Publisher) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.StreamTimeout)
	defer cancel()

	pub.Publish(stream.Event{Type: stream.EventInit, Message: MessageStarting, SessionID: inv.SessionID})

	fail := func(res Result) Result {
		res.Duration = time.Since(start)
		pub.Publish(stream.Event{Type: stream.EventError, Message: res.Text, Error: string(res.Outcome), SessionID: inv.SessionID})
		return res
	}

	if err := checkWorkingDirectory(inv.WorkingDirectory); err != nil {
		r.logger.Error("cannot start agent", "session", inv.SessionID, "err", err)
		return fail(Result{Text: fmt.Sprintf(TextExecError, err), Outcome: OutcomeError, ExitCode: -1})
	}

	cmd := r.command(ctx, inv, true)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fail(Result{Text: fmt.Sprintf(TextExecError, err), Outcome: OutcomeError, ExitCode: -1})
	}
	if err := cmd.Start(); err != nil {
		if isNotFound(err) {
			r.logger.Error("agent executable not found", "command", r.executable())
			return fail(Result{Text: r.notFoundText(), Outcome: OutcomeNotFound, ExitCode: -1})
		}
		r.logger.Error("agent start failed", "session", inv.SessionID, "err", err)
		return fail(Result{Text: fmt.Sprintf(TextExecError, err), Outcome: OutcomeError, ExitCode: -1})
	}
	r.logger.Debug("agent streaming", "session", inv.SessionID, "pid", cmd.Process.Pid, "dir", inv.WorkingDirectory)

	lines := make(chan string, lineBuffer)
	go r.readLines(ctx, stdout, lines)

	var assistantText, resultText string
	collect := func(ev stream.Event) {
		pub.Publish(ev)
		switch ev.Type {
		case stream.EventAssistant:
			assistantText = ev.Content
		case stream.EventResult:
			resultText = ev.Content
		}
	}
	r.consume(ctx, inv.SessionID, lines, collect)

	graceExpired, waitErr := r.wait(ctx, cmd, cancel)

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) && !graceExpired:
		r.logger.Error("agent stream timed out", "session", inv.SessionID, "timeout", r.cfg.StreamTimeout)
		return fail(Result{Text: r.timeoutText(r.cfg.StreamTimeout), Outcome: OutcomeTimeout, ExitCode: -1})
	case errors.Is(ctx.Err(), context.Canceled) && !graceExpired:
		return fail(Result{Text: fmt.Sprintf(TextExecError, ctx.Err()), Outcome: OutcomeError, ExitCode: -1})
	case graceExpired:
		r.logger.Warn("agent did not exit after closing output, killed", "session", inv.SessionID, "grace", r.cfg.WaitGrace)
		if text := firstNonEmpty(assistantText, resultText); text != "" {
			return Result{Text: text, Outcome: OutcomeOK, ExitCode: -1, Duration: time.Since(start)}
		}
		return fail(Result{Text: fmt.Sprintf(TextExecError, "process did not exit"), Outcome: OutcomeError, ExitCode: -1})
	}

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return fail(Result{Text: fmt.Sprintf(TextExecError, waitErr), Outcome: OutcomeError, ExitCode: -1})
		}
		code = exitErr.ExitCode()
	}

	if code != 0 {
		errOut := strings.TrimSpace(stderr.String())
		r.logger.Error("agent exited with error", "session", inv.SessionID, "code", code, "stderr", errOut)
		return fail(Result{Text: fmt.Sprintf(TextFailed, errOut), Outcome: OutcomeFailed, ExitCode: code})
	}

	res := Result{Text: TextCompleted, Outcome: OutcomeEmpty, Duration: time.Since(start)}
	if text := firstNonEmpty(assistantText, resultText); text != "" {
		res.Text, res.Outcome = text, OutcomeOK
	}
	r.logger.Debug("agent stream finished", "session", inv.SessionID, "outcome", res.Outcome, "elapsed", res.Duration.Round(time.Millisecond))
	return res
}

// readLines is the producer side: it forwards non-empty stdout lines until
// EOF or until ctx is done, then closes lines.
func (r *Runner) readLines(ctx context.Context, stdout io.Reader, lines chan<- string) {
	defer close(lines)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case lines <- line:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		r.anomalies.Add(1)
		r.logger.Warn("stopped reading agent output", "err", err)
		// keep the pipe drained so the agent never blocks on a full buffer
		_, _ = io.Copy(io.Discard, stdout)
	}
}

// consume is the consumer side: decode, publish, stop on EOF or deadline.
func (r *Runner) consume(ctx context.Context, sessionID string, lines <-chan string, emit func(stream.Event)) {
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			ev, publish, err := Interpret([]byte(line), sessionID)
			if err != nil {
				r.anomalies.Add(1)
				r.logger.Debug("skipping undecodable line", "session", sessionID, "err", err, "line", truncate(line, 200))
				continue
			}
			if publish {
				emit(ev)
			}
		case <-ctx.Done():
			return
		}
	}
}

// wait reaps the process. After stdout closes the process gets WaitGrace to
// exit before it is killed.
func (r *Runner) wait(ctx context.Context, cmd *exec.Cmd, cancel context.CancelFunc) (graceExpired bool, err error) {
	if ctx.Err() != nil {
		return false, cmd.Wait()
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(r.cfg.WaitGrace)
	defer timer.Stop()

	select {
	case err = <-done:
		return false, err
	case <-ctx.Done():
		return false, <-done
	case <-timer.C:
		cancel()
		return true, <-done
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
