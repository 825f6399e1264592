package config

import (
	"os"
	"path/filepath"
	"strings"
)

// contextFileNames are the project-context markdown files scanned in each
// setting-source directory, in precedence order.
var contextFileNames = []string{"CLAUDE.md", "CLAUDE.local.md", "AGENTS.md"}

// LoadContextFiles scans the given directories for project-context markdown
// files and merges their contents in order, separated by blank lines.
// Missing directories and files are skipped silently.
func LoadContextFiles(dirs ...string) string {
	var parts []string
	for _, dir := range dirs {
		for _, name := range contextFileNames {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				continue
			}
			content := strings.TrimSpace(string(data))
			if content != "" {
				parts = append(parts, content)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}
