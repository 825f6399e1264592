package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/formagent/agent-sdk-go/skill"
)

// SkillToolName is the name of the built-in tool that exposes loaded skills
// to the model.
const SkillToolName = "Skill"

var skillToolSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"action": map[string]any{
			"type":        "string",
			"enum":        []any{"list", "invoke", "search"},
			"description": "list available skills, invoke one by name, or search by keyword",
		},
		"name": map[string]any{
			"type":        "string",
			"description": "skill name, required for invoke",
		},
		"query": map[string]any{
			"type":        "string",
			"description": "search keyword, required for search",
		},
	},
	"required": []any{"action"},
}

// newSkillTool builds the Skill tool over a loader.
func newSkillTool(loader skill.Loader) ToolDefinition {
	return FuncTool(SkillToolName,
		"Access the loaded skills. Use action=list to see what is available, action=invoke with a name to load a skill's instructions, or action=search with a query to find relevant skills.",
		skillToolSchema,
		func(ctx context.Context, input map[string]any, _ ToolContext) (*ToolOutput, error) {
			action, _ := input["action"].(string)
			switch action {
			case "list":
				return TextOutput(formatSkillList(loader.Search(""))), nil
			case "invoke":
				name, _ := input["name"].(string)
				if name == "" {
					return ErrorOutput("invoke requires a skill name"), nil
				}
				for _, s := range loader.Search(name) {
					if strings.EqualFold(s.Name, name) {
						return TextOutput(skill.FormatPrompt([]skill.Skill{s})), nil
					}
				}
				return ErrorOutput(fmt.Sprintf("skill not found: %s", name)), nil
			case "search":
				query, _ := input["query"].(string)
				if query == "" {
					return ErrorOutput("search requires a query"), nil
				}
				matches := loader.Search(query)
				if len(matches) == 0 {
					return TextOutput("No skills matched."), nil
				}
				return TextOutput(formatSkillList(matches)), nil
			default:
				return ErrorOutput(fmt.Sprintf("unknown action: %q", action)), nil
			}
		})
}

func formatSkillList(skills []skill.Skill) string {
	if len(skills) == 0 {
		return "No skills are loaded."
	}
	var sb strings.Builder
	sb.WriteString("Available skills:\n")
	for _, s := range skills {
		sb.WriteString("- ")
		sb.WriteString(s.Name)
		if s.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(s.Description)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
