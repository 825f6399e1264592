package agent

// Engine defaults.
const (
	// DefaultMaxTokens is the default maximum output tokens per response.
	DefaultMaxTokens = 4096

	// DefaultMaxTurns is the default max assistant turns (0 = unlimited).
	DefaultMaxTurns = 0

	// DefaultStreamBufferSize is the default channel buffer size for
	// streaming events.
	DefaultStreamBufferSize = 64

	// DefaultTruncateMaxLines is the default tool output line cap.
	DefaultTruncateMaxLines = 2000

	// DefaultTruncateMaxBytes is the default tool output byte cap.
	DefaultTruncateMaxBytes = 50 * 1024
)
