// Package config handles system-prompt presets, settings files, project
// context files, and frontmatter parsing for the agent SDK.
package config

import (
	"regexp"
	"strings"
)

// Presets maps preset names to their system prompt templates. Placeholders
// of the form {name} are filled from the prompt context substitutions.
var Presets = map[string]string{
	"claude_code": "You are an AI assistant with access to tools for reading, writing, and editing files, running shell commands, and searching the codebase. Use tools to help the user with software engineering tasks.\n\nAvailable tools: {tools}\nWorking directory: {cwd}\nPlatform: {platform}\nShell: {shell}\nCurrent time: {timestamp}",

	"default": "You are a helpful AI assistant.\n\nAvailable tools: {tools}\nCurrent time: {timestamp}",

	"minimal": "You are a helpful AI assistant.",
}

// GetPreset returns the template for the given preset name.
// Returns empty string and false if the preset is not found.
func GetPreset(name string) (string, bool) {
	content, ok := Presets[name]
	return content, ok
}

var placeholderRe = regexp.MustCompile(`\{[a-z]+\}`)
var emptyLabelRe = regexp.MustCompile(`^[\w ]+:\s*$`)

// Substitute fills {name} placeholders from subs. Lines whose placeholders
// resolved to nothing are elided so empty sections do not appear.
func Substitute(template string, subs map[string]string) string {
	for k, v := range subs {
		template = strings.ReplaceAll(template, "{"+k+"}", v)
	}
	lines := strings.Split(template, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if placeholderRe.MatchString(line) || emptyLabelRe.MatchString(line) {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
