// Package truncate caps oversized tool outputs before they enter the
// conversation. The full content is spilled to a temp file so the model can
// recover it with the Read or Grep tools.
package truncate

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Mode selects which end of the output is kept.
type Mode string

const (
	Head Mode = "head"
	Tail Mode = "tail"
)

// DefaultSubdir is the process-wide spill directory under the OS temp dir.
const DefaultSubdir = "formagent-sdk-output"

// DefaultRetention is how long spilled files are kept before Sweep removes them.
const DefaultRetention = 7 * 24 * time.Hour

// Config controls truncation limits and placement.
type Config struct {
	MaxLines int
	MaxBytes int
	Mode     Mode
	// Dir is the spill directory; empty means {os.TempDir()}/formagent-sdk-output.
	Dir string
}

// Result reports what happened to one output.
type Result struct {
	// Content is the (possibly truncated) text to attach to the conversation.
	Content string
	// Truncated reports whether limits were exceeded.
	Truncated bool
	// SpillPath is the temp file holding the original bytes, when truncated.
	SpillPath string
}

// SpillDir resolves the spill directory.
func (c Config) SpillDir() string {
	if c.Dir != "" {
		return c.Dir
	}
	return filepath.Join(os.TempDir(), DefaultSubdir)
}

// Apply checks content against the line and byte limits. Within limits the
// content passes through unchanged. Otherwise a head or tail slice that
// respects both limits is kept, the full content is written to a temp file,
// and a marker plus recovery hint replace the removed portion.
func Apply(content string, cfg Config) (*Result, error) {
	if cfg.Mode == "" {
		cfg.Mode = Head
	}
	lines := strings.Split(content, "\n")
	if len(lines) <= cfg.MaxLines && len(content) <= cfg.MaxBytes {
		return &Result{Content: content}, nil
	}

	preview, unit, removed := slice(lines, cfg)

	dir := cfg.SpillDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spill dir: %w", err)
	}
	sweepOnce(dir)
	path := filepath.Join(dir, spillName())
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write spill file: %w", err)
	}

	marker := fmt.Sprintf("...%d %s truncated...", removed, unit)
	hint := fmt.Sprintf("Full output saved to: %s (use the Read or Grep tools to inspect it)", path)

	out := marker + "\n" + hint
	switch {
	case preview == "":
		// A single line longer than MaxBytes keeps nothing.
	case cfg.Mode == Tail:
		out += "\n" + preview
	default:
		out = preview + "\n" + out
	}
	return &Result{Content: out, Truncated: true, SpillPath: path}, nil
}

// sweptDirs tracks spill directories already swept this process.
var sweptDirs sync.Map

// sweepOnce removes expired spills the first time a directory receives a
// spill in this process. Failures are ignored.
func sweepOnce(dir string) {
	if _, seen := sweptDirs.LoadOrStore(dir, struct{}{}); seen {
		return
	}
	_, _ = Sweep(dir, DefaultRetention)
}

// slice extends the kept region line by line until adding the next line would
// violate either limit. The reported unit is whichever limit was hit first.
func slice(lines []string, cfg Config) (preview, unit string, removed int) {
	kept := 0
	bytes := 0
	hitBytes := false
	for kept < len(lines) {
		var next string
		if cfg.Mode == Tail {
			next = lines[len(lines)-1-kept]
		} else {
			next = lines[kept]
		}
		add := len(next)
		if kept > 0 {
			add++ // joining newline
		}
		if bytes+add > cfg.MaxBytes {
			hitBytes = true
			break
		}
		if kept+1 > cfg.MaxLines {
			break
		}
		bytes += add
		kept++
	}

	var keptLines []string
	if cfg.Mode == Tail {
		keptLines = lines[len(lines)-kept:]
	} else {
		keptLines = lines[:kept]
	}
	preview = strings.Join(keptLines, "\n")

	if hitBytes {
		total := 0
		for i, l := range lines {
			total += len(l)
			if i > 0 {
				total++
			}
		}
		return preview, "bytes", total - bytes
	}
	return preview, "lines", len(lines) - kept
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// spillName builds tool_{epochMillis}_{6-char base36}.txt.
func spillName() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = base36[int(b[i])%len(base36)]
	}
	return fmt.Sprintf("tool_%d_%s.txt", time.Now().UnixMilli(), string(b))
}

// Sweep deletes tool_* spill files older than maxAge, using the timestamp
// embedded in the filename. It returns the number of files removed.
func Sweep(dir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read spill dir: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "tool_") {
			continue
		}
		parts := strings.SplitN(strings.TrimSuffix(name, ".txt"), "_", 3)
		if len(parts) < 3 {
			continue
		}
		ms, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		if time.UnixMilli(ms).Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, name)); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
