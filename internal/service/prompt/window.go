package prompt

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/claude-code-chat/backend/internal/model/chat"
)

// Window returns the most recent turns the agent should see. Streaming
// requests get twice the window so user/assistant pairs survive. The result
// is a copy; history itself is never modified.
func Window(history []chat.Turn, size int, streaming bool) []chat.Turn {
	if streaming {
		size *= 2
	}
	if size <= 0 || len(history) == 0 {
		return []chat.Turn{}
	}

	start := len(history) - size
	if start < 0 {
		start = 0
	}

	window := make([]chat.Turn, len(history)-start)
	copy(window, history[start:])
	return window
}

// FormatContext renders turns one per line as "User: ..." / "Assistant: ...".
// User turns carry the directory they were sent from.
func FormatContext(turns []chat.Turn) string {
	if len(turns) == 0 {
		return ""
	}

	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		line := fmt.Sprintf("%s: %s", speaker(turn.Role), turn.Text)
		if turn.Role == chat.RoleUser && turn.Directory != "" {
			line += fmt.Sprintf(" [working directory: %s]", turn.Directory)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func speaker(role chat.Role) string {
	switch role {
	case chat.RoleAssistant:
		return "Assistant"
	case chat.RoleUser:
		return "User"
	default:
		return string(role)
	}
}
