//go:build linux || darwin || freebsd || netbsd || openbsd

package agent

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamTimeoutKillsProcessGroup(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "child.pid")
	script := `sleep 30 &
echo $! > "` + pidFile + `"
wait`
	r := newTestRunner(writeAgent(t, script), func(c *Config) { c.StreamTimeout = 300 * time.Millisecond })

	res := r.Stream(context.Background(), Invocation{SessionID: "s1", Prompt: "hi"}, &recorder{})
	require.Equal(t, OutcomeTimeout, res.Outcome)

	data, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return !alive(pid)
	}, 2*time.Second, 50*time.Millisecond, "background child %d survived the timeout", pid)
}

// alive treats zombies as dead; an orphan may wait a while for its reaper.
func alive(pid int) bool {
	if syscall.Kill(pid, 0) != nil {
		return false
	}
	stat, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat")
	if err != nil {
		return true
	}
	return !strings.Contains(string(stat), ") Z ")
}
