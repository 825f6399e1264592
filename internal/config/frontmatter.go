package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFrontmatter splits a markdown document into its YAML frontmatter and
// body. Frontmatter is delimited by "---" lines at the top of the file; a
// document without frontmatter returns a nil map and the full content.
func ParseFrontmatter(content string) (map[string]any, string, error) {
	trimmed := strings.TrimLeft(content, "\uFEFF")
	if !strings.HasPrefix(trimmed, "---") {
		return nil, content, nil
	}
	rest := trimmed[3:]
	if !strings.HasPrefix(rest, "\n") && !strings.HasPrefix(rest, "\r\n") {
		return nil, content, nil
	}
	rest = strings.TrimPrefix(strings.TrimPrefix(rest, "\r\n"), "\n")

	end := -1
	lines := strings.SplitAfter(rest, "\n")
	offset := 0
	for _, line := range lines {
		if strings.TrimRight(line, "\r\n") == "---" {
			end = offset
			offset += len(line)
			break
		}
		offset += len(line)
	}
	if end < 0 {
		return nil, content, nil
	}

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(rest[:end]), &meta); err != nil {
		return nil, content, fmt.Errorf("parse frontmatter: %w", err)
	}
	body := strings.TrimPrefix(rest[offset:], "\n")
	return meta, body, nil
}

// FrontmatterString reads a string value from parsed frontmatter.
func FrontmatterString(meta map[string]any, key string) string {
	if v, ok := meta[key]; ok {
		switch s := v.(type) {
		case string:
			return s
		case nil:
			return ""
		default:
			return fmt.Sprintf("%v", s)
		}
	}
	return ""
}

// FrontmatterStrings reads a string list from parsed frontmatter, accepting
// both inline and block arrays as well as a single scalar.
func FrontmatterStrings(meta map[string]any, key string) []string {
	v, ok := meta[key]
	if !ok || v == nil {
		return nil
	}
	switch items := v.(type) {
	case []any:
		out := make([]string, 0, len(items))
		for _, it := range items {
			out = append(out, fmt.Sprintf("%v", it))
		}
		return out
	case string:
		return []string{items}
	default:
		return []string{fmt.Sprintf("%v", items)}
	}
}
