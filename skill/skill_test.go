package skill

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func discoverDir(t *testing.T, dir string) *DirLoader {
	t.Helper()
	l := NewDirLoader()
	_, err := l.Discover(context.Background(), DiscoverOptions{Directories: []string{dir}, MaxDepth: 1})
	require.NoError(t, err)
	return l
}

func TestDiscoverParsesFrontmatter(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "release.md",
		"---\nname: release-notes\ndescription: drafts release notes\ntriggers: [release, changelog]\n---\nGroup changes by area.\n")

	l := discoverDir(t, dir)
	skills := l.Skills()
	require.Len(t, skills, 1)
	s := skills[0]
	assert.Equal(t, "release-notes", s.Name)
	assert.Equal(t, "drafts release notes", s.Description)
	assert.Equal(t, []string{"release", "changelog"}, s.Triggers)
	assert.Equal(t, "Group changes by area.\n", s.Content)
}

func TestDiscoverNameDefaultsToFilename(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "bare.md", "No frontmatter at all.")

	l := discoverDir(t, dir)
	require.Len(t, l.Skills(), 1)
	assert.Equal(t, "bare", l.Skills()[0].Name)
}

func TestDiscoverSkipsMissingDirAndNonMarkdown(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "real.md", "content")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	l := NewDirLoader()
	skills, err := l.Discover(context.Background(), DiscoverOptions{
		Directories: []string{dir, filepath.Join(dir, "does-not-exist")},
		MaxDepth:    1,
	})
	require.NoError(t, err)
	assert.Len(t, skills, 1)
}

func TestSearch(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "deploy.md", "---\nname: deploy\ndescription: ship to production\n---\nsteps")
	writeSkill(t, dir, "review.md", "---\nname: review\ndescription: code review checklist\n---\nsteps")

	l := discoverDir(t, dir)
	assert.Len(t, l.Search("review"), 1)
	assert.Len(t, l.Search("PRODUCTION"), 1)
	assert.Len(t, l.Search(""), 2)
	assert.Empty(t, l.Search("nonexistent"))
}

func TestCheckActivation(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "deploy.md", "---\nname: deploy\ntriggers: [deploy, ship]\n---\nDeploy steps.")
	writeSkill(t, dir, "passive.md", "---\nname: passive\n---\nNever auto-activates.")

	l := discoverDir(t, dir)

	act := l.CheckActivation("please DEPLOY the service")
	assert.True(t, act.ShouldActivate)
	require.Len(t, act.Skills, 1)
	assert.Equal(t, "deploy", act.Skills[0].Name)
	assert.Contains(t, act.SystemPromptAddition, "# Active Skills")
	assert.Contains(t, act.SystemPromptAddition, "Deploy steps.")

	none := l.CheckActivation("unrelated message")
	assert.False(t, none.ShouldActivate)
	assert.Empty(t, none.SystemPromptAddition)
}

func TestFormatPrompt(t *testing.T) {
	assert.Equal(t, "", FormatPrompt(nil))
	got := FormatPrompt([]Skill{
		{Name: "a", Content: "alpha"},
		{Name: "b", Content: "beta"},
	})
	assert.Contains(t, got, "## a")
	assert.Contains(t, got, "## b")
	assert.Contains(t, got, "alpha")
}
