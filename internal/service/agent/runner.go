// Package agent launches the external Claude Code CLI and relays its output.
package agent

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/zhouzirui/claude-code-chat/backend/internal/model/stream"
)

// Config controls how the agent process is invoked.
type Config struct {
	CommandPrefix        string
	DangerousPermissions bool
	Timeout              time.Duration
	StreamTimeout        time.Duration
	// WaitGrace bounds how long a process may linger after closing stdout.
	WaitGrace time.Duration
}

// Invocation is one request-scoped run of the agent.
type Invocation struct {
	SessionID        string
	Prompt           string
	WorkingDirectory string
}

// Outcome classifies how an invocation ended.
type Outcome string

const (
	OutcomeOK         Outcome = "ok"
	OutcomeEmpty      Outcome = "empty"
	OutcomeFailed     Outcome = "failed"
	OutcomeNoResponse Outcome = "no_response"
	OutcomeTimeout    Outcome = "timeout"
	OutcomeNotFound   Outcome = "not_found"
	OutcomeError      Outcome = "error"
)

// Result is the text kept for history plus how it was obtained.
type Result struct {
	Text     string
	Outcome  Outcome
	ExitCode int
	Duration time.Duration
}

// Publisher receives events in the order the agent produced them.
// Implementations must not block indefinitely and swallow their own write errors.
type Publisher interface {
	Publish(ev stream.Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ev stream.Event)

// Publish calls f(ev).
func (f PublisherFunc) Publish(ev stream.Event) { f(ev) }

// Runner spawns one agent process per invocation.
type Runner struct {
	cfg       Config
	logger    *log.Logger
	anomalies atomic.Int64
}

// NewRunner fills in defaults for zero-valued settings.
func NewRunner(cfg Config, logger *log.Logger) *Runner {
	if strings.TrimSpace(cfg.CommandPrefix) == "" {
		cfg.CommandPrefix = "claude"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 180 * time.Second
	}
	if cfg.WaitGrace <= 0 {
		cfg.WaitGrace = 10 * time.Second
	}
	return &Runner{cfg: cfg, logger: logger.WithPrefix("agent")}
}

// Anomalies returns how many stream lines failed to decode since start.
func (r *Runner) Anomalies() int64 {
	return r.anomalies.Load()
}

func (r *Runner) executable() string {
	return strings.Fields(r.cfg.CommandPrefix)[0]
}

// Args returns the full argv for an invocation, executable first.
func (r *Runner) Args(prompt string, streaming bool) []string {
	args := strings.Fields(r.cfg.CommandPrefix)
	if streaming {
		args = append(args, "-p")
	} else {
		args = append(args, "--print")
	}
	if r.cfg.DangerousPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}
	if streaming {
		args = append(args, "--output-format", "stream-json", "--verbose")
	}
	return append(args, prompt)
}

func (r *Runner) command(ctx context.Context, inv Invocation, streaming bool) *exec.Cmd {
	argv := r.Args(inv.Prompt, streaming)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = os.Environ()
	if inv.WorkingDirectory != "" {
		cmd.Dir = inv.WorkingDirectory
		cmd.Env = append(cmd.Env,
			"CWD="+inv.WorkingDirectory,
			"PWD="+inv.WorkingDirectory,
			"CLAUDE_WORKING_DIR="+inv.WorkingDirectory,
		)
	}
	cmd.WaitDelay = r.cfg.WaitGrace
	configureProcess(cmd)
	return cmd
}

func checkWorkingDirectory(dir string) error {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("working directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("working directory %s is not a directory", dir)
	}
	return nil
}

func (r *Runner) timeoutText(d time.Duration) string {
	return fmt.Sprintf(TextTimeout, d)
}

func (r *Runner) notFoundText() string {
	return fmt.Sprintf(TextNotFound, r.executable())
}
