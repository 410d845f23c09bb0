package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/claude-code-chat/backend/internal/logging"
)

func TestArgs(t *testing.T) {
	r := newTestRunner("npx  claude", nil)

	assert.Equal(t, []string{"npx", "claude", "--print", "--dangerously-skip-permissions", "hi there"}, r.Args("hi there", false))
	assert.Equal(t,
		[]string{"npx", "claude", "-p", "--dangerously-skip-permissions", "--output-format", "stream-json", "--verbose", "hi there"},
		r.Args("hi there", true))

	safe := newTestRunner("claude", func(c *Config) { c.DangerousPermissions = false })
	assert.Equal(t, []string{"claude", "--print", "p"}, safe.Args("p", false))
}

func TestNewRunnerDefaults(t *testing.T) {
	r := NewRunner(Config{}, logging.Discard())
	assert.Equal(t, "claude", r.cfg.CommandPrefix)
	assert.Equal(t, 60*time.Second, r.cfg.Timeout)
	assert.Equal(t, 180*time.Second, r.cfg.StreamTimeout)
	assert.Equal(t, 10*time.Second, r.cfg.WaitGrace)
}

func TestRunOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		text    string
		outcome Outcome
		code    int
	}{
		{name: "stdout", script: "echo '  hi  '", text: "hi", outcome: OutcomeOK},
		{name: "silent success", script: "exit 0", text: TextCompleted, outcome: OutcomeEmpty},
		{name: "failure with stderr", script: "echo boom >&2; exit 3", text: fmt.Sprintf(TextFailed, "boom"), outcome: OutcomeFailed, code: 3},
		{name: "failure without stderr", script: "exit 1", text: TextNoResponse, outcome: OutcomeNoResponse, code: 1},
		{name: "stdout wins on success", script: "echo out; echo noise >&2", text: "out", outcome: OutcomeOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRunner(writeAgent(t, tt.script), nil)

			res := r.Run(context.Background(), Invocation{SessionID: "s1", Prompt: "hello"})

			assert.Equal(t, tt.text, res.Text)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, tt.code, res.ExitCode)
		})
	}
}

func TestRunTimeout(t *testing.T) {
	r := newTestRunner(writeAgent(t, "sleep 5"), func(c *Config) { c.Timeout = 200 * time.Millisecond })

	start := time.Now()
	res := r.Run(context.Background(), Invocation{SessionID: "s1", Prompt: "hello"})

	assert.Equal(t, OutcomeTimeout, res.Outcome)
	assert.Equal(t, fmt.Sprintf(TextTimeout, 200*time.Millisecond), res.Text)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestRunNotFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-claude")
	r := newTestRunner(missing, nil)

	res := r.Run(context.Background(), Invocation{SessionID: "s1", Prompt: "hello"})

	assert.Equal(t, OutcomeNotFound, res.Outcome)
	assert.Equal(t, fmt.Sprintf(TextNotFound, missing), res.Text)
}

func TestRunMissingWorkingDirectory(t *testing.T) {
	r := newTestRunner(writeAgent(t, "echo hi"), nil)

	res := r.Run(context.Background(), Invocation{
		SessionID:        "s1",
		Prompt:           "hello",
		WorkingDirectory: filepath.Join(t.TempDir(), "gone"),
	})

	assert.Equal(t, OutcomeError, res.Outcome)
	assert.True(t, strings.HasPrefix(res.Text, "❌ Claude Code execution error:"), res.Text)
}

func TestRunWorkingDirectoryAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	r := newTestRunner(writeAgent(t, `echo "$(pwd -P)|$CWD|$PWD|$CLAUDE_WORKING_DIR"`), nil)

	res := r.Run(context.Background(), Invocation{SessionID: "s1", Prompt: "hello", WorkingDirectory: dir})
	require.Equal(t, OutcomeOK, res.Outcome)

	real, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	parts := strings.Split(res.Text, "|")
	require.Len(t, parts, 4)
	assert.Equal(t, real, parts[0])
	assert.Equal(t, []string{dir, dir, dir}, parts[1:])
}

func TestRunPassesPromptAsSingleArgument(t *testing.T) {
	r := newTestRunner(writeAgent(t, `printf '%s\n' "$@"`), nil)
	prompt := "line one\nline \"two\" with $HOME"

	res := r.Run(context.Background(), Invocation{SessionID: "s1", Prompt: prompt})

	require.Equal(t, OutcomeOK, res.Outcome)
	assert.Equal(t, "--print\n--dangerously-skip-permissions\n"+prompt, res.Text)
}

func TestRunInheritsEnvironment(t *testing.T) {
	t.Setenv("AGENT_TEST_MARKER", "present")
	r := newTestRunner(writeAgent(t, `echo "$AGENT_TEST_MARKER"`), nil)

	res := r.Run(context.Background(), Invocation{SessionID: "s1", Prompt: "x"})
	assert.Equal(t, "present", res.Text)
}
