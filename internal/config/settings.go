package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Settings holds merged configuration from JSON settings files.
// Later sources override earlier ones (user < project).
type Settings struct {
	Model           string   `json:"model,omitempty"`
	SystemPrompt    string   `json:"systemPrompt,omitempty"`
	MaxTurns        int      `json:"maxTurns,omitempty"`
	MaxBudgetUSD    float64  `json:"maxBudgetUSD,omitempty"`
	AllowedTools    []string `json:"allowedTools,omitempty"`
	DisallowedTools []string `json:"disallowedTools,omitempty"`
}

// LoadSettings merges settings from multiple JSON file paths.
// Later paths override earlier ones. Missing or invalid files are skipped.
func LoadSettings(paths ...string) (*Settings, error) {
	merged := &Settings{}
	for _, path := range paths {
		s, err := loadSettingsFile(path)
		if err != nil {
			continue
		}
		mergeSettings(merged, s)
	}
	return merged, nil
}

// DefaultSettingsPaths returns the standard settings file search paths.
func DefaultSettingsPaths(projectDir string) []string {
	home, _ := os.UserHomeDir()
	var paths []string
	if home != "" {
		paths = append(paths, filepath.Join(home, ".claude", "settings.json"))
	}
	if projectDir != "" {
		paths = append(paths, filepath.Join(projectDir, ".claude", "settings.json"))
	}
	return paths
}

func loadSettingsFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func mergeSettings(dst, src *Settings) {
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.SystemPrompt != "" {
		dst.SystemPrompt = src.SystemPrompt
	}
	if src.MaxTurns > 0 {
		dst.MaxTurns = src.MaxTurns
	}
	if src.MaxBudgetUSD > 0 {
		dst.MaxBudgetUSD = src.MaxBudgetUSD
	}
	if len(src.AllowedTools) > 0 {
		dst.AllowedTools = src.AllowedTools
	}
	if len(src.DisallowedTools) > 0 {
		dst.DisallowedTools = src.DisallowedTools
	}
}
