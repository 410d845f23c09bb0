package agent

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/claude-code-chat/backend/internal/logging"
	"github.com/zhouzirui/claude-code-chat/backend/internal/model/stream"
)

// writeAgent writes an executable shell script standing in for the CLI.
func writeAgent(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("agent stubs need /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "fake-claude")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func newTestRunner(prefix string, mutate func(*Config)) *Runner {
	cfg := Config{
		CommandPrefix:        prefix,
		DangerousPermissions: true,
		Timeout:              5 * time.Second,
		StreamTimeout:        5 * time.Second,
		WaitGrace:            time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewRunner(cfg, logging.Discard())
}

type recorder struct {
	mu     sync.Mutex
	events []stream.Event
}

func (r *recorder) Publish(ev stream.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []stream.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]stream.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) last() stream.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}
