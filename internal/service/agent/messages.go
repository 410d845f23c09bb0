package agent

// User-visible texts. They end up in session history, so they stay stable.
const (
	MessageStarting     = "Starting..."
	MessageInitializing = "Claude Code initializing..."
	MessageCompleted    = "Completed"

	TextCompleted  = "Processing completed."
	TextNoResponse = "No response from Claude Code."
	TextNotFound   = "❌ Error: Claude Code CLI not found. Make sure the '%s' command is on your PATH."
	TextTimeout    = "⏰ Claude Code timed out (%s)"
	TextFailed     = "⚠️ Claude Code error:\n%s"
	TextExecError  = "❌ Claude Code execution error: %v"
)
