// Package skill loads named, trigger-activated blocks of supplementary
// system-prompt content from directories of markdown files.
//
// A skill file is markdown with optional YAML frontmatter:
//
//	---
//	name: release-notes
//	description: Drafts release notes from commit history
//	triggers: [release, changelog]
//	---
//	When drafting release notes, group changes by ...
package skill

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/formagent/agent-sdk-go/internal/config"
)

// Skill is one loaded skill definition.
type Skill struct {
	Name        string
	Description string
	// Triggers are keywords that activate the skill when they appear in a
	// user message.
	Triggers []string
	// Content is the markdown body injected into the system prompt on
	// activation.
	Content string
	// Path is the file the skill was loaded from.
	Path string
}

// DiscoverOptions controls skill discovery.
type DiscoverOptions struct {
	// Directories are explicit skill source directories.
	Directories []string
	// IncludeUser adds ~/.claude/skills.
	IncludeUser bool
	// IncludeProject adds ./.claude/skills.
	IncludeProject bool
	// MaxDepth limits directory recursion (0 = top level only).
	MaxDepth int
}

// Activation is the outcome of checking a message against loaded skills.
type Activation struct {
	ShouldActivate       bool
	Skills               []Skill
	SystemPromptAddition string
}

// Loader discovers and activates skills.
type Loader interface {
	Discover(ctx context.Context, opts DiscoverOptions) ([]Skill, error)
	Search(query string) []Skill
	CheckActivation(message string) Activation
}

// DirLoader is the file-system Loader implementation.
type DirLoader struct {
	skills []Skill
}

var _ Loader = (*DirLoader)(nil)

// NewDirLoader creates an empty DirLoader; call Discover to populate it.
func NewDirLoader() *DirLoader {
	return &DirLoader{}
}

// Discover scans the configured directories for *.md skill files, parses
// their frontmatter, and retains the result for Search and CheckActivation.
// Missing directories are skipped silently.
func (l *DirLoader) Discover(ctx context.Context, opts DiscoverOptions) ([]Skill, error) {
	dirs := append([]string(nil), opts.Directories...)
	if opts.IncludeUser {
		if home, err := os.UserHomeDir(); err == nil {
			dirs = append(dirs, filepath.Join(home, ".claude", "skills"))
		}
	}
	if opts.IncludeProject {
		if cwd, err := os.Getwd(); err == nil {
			dirs = append(dirs, filepath.Join(cwd, ".claude", "skills"))
		}
	}

	var skills []Skill
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		root := dir
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return fs.SkipDir
			}
			if d.IsDir() {
				if depth(root, path) > opts.MaxDepth {
					return fs.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(d.Name(), ".md") {
				return nil
			}
			s, err := loadSkillFile(path)
			if err != nil {
				return nil
			}
			skills = append(skills, s)
			return nil
		})
	}
	l.skills = skills
	return append([]Skill(nil), skills...), nil
}

// Search finds skills whose name, description, or content contains the
// query (case-insensitive).
func (l *DirLoader) Search(query string) []Skill {
	q := strings.ToLower(query)
	var matches []Skill
	for _, s := range l.skills {
		if strings.Contains(strings.ToLower(s.Name), q) ||
			strings.Contains(strings.ToLower(s.Description), q) ||
			strings.Contains(strings.ToLower(s.Content), q) {
			matches = append(matches, s)
		}
	}
	return matches
}

// CheckActivation matches the message against each skill's triggers and
// builds the combined system-prompt addition for those that fire. Skills
// without triggers never auto-activate; they remain reachable via Search.
func (l *DirLoader) CheckActivation(message string) Activation {
	lower := strings.ToLower(message)
	var activated []Skill
	for _, s := range l.skills {
		for _, trigger := range s.Triggers {
			if trigger != "" && strings.Contains(lower, strings.ToLower(trigger)) {
				activated = append(activated, s)
				break
			}
		}
	}
	if len(activated) == 0 {
		return Activation{}
	}
	return Activation{
		ShouldActivate:       true,
		Skills:               activated,
		SystemPromptAddition: FormatPrompt(activated),
	}
}

// Skills returns the currently loaded skills.
func (l *DirLoader) Skills() []Skill {
	return append([]Skill(nil), l.skills...)
}

// FormatPrompt formats skills into a block suitable for appending to a
// system prompt.
func FormatPrompt(skills []Skill) string {
	if len(skills) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("# Active Skills\n\n")
	for _, s := range skills {
		sb.WriteString("## ")
		sb.WriteString(s.Name)
		sb.WriteString("\n\n")
		sb.WriteString(strings.TrimSpace(s.Content))
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}

func loadSkillFile(path string) (Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, err
	}
	meta, body, err := config.ParseFrontmatter(string(data))
	if err != nil {
		return Skill{}, err
	}
	s := Skill{
		Name:        config.FrontmatterString(meta, "name"),
		Description: config.FrontmatterString(meta, "description"),
		Triggers:    config.FrontmatterStrings(meta, "triggers"),
		Content:     body,
		Path:        path,
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), ".md")
	}
	return s, nil
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(rel, string(filepath.Separator)))
}
