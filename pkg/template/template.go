// Package template renders variables into action configuration.
package template

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/dukex/tripwire/pkg/models"
)

var (
	placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

	// bareVariable matches {{name}} in a text/template source; field and pipeline
	// syntax starts with a dot or contains spaces and is not matched.
	bareVariable = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.\-]*)\s*\}\}`)
)

// verbatimKeys are configuration keys that are parsed before their placeholders
// are resolved. They keep their {{name}} references through RenderAction.
var verbatimKeys = map[models.ActionType][]string{
	models.ActionConditional: {"expression"},
	models.ActionForward:     {"template"},
}

var templateKeywords = map[string]bool{
	"end": true, "else": true, "break": true, "continue": true,
	"nil": true, "true": true, "false": true,
}

var templateFuncs = template.FuncMap{
	"now": func() string {
		return time.Now().UTC().Format(time.RFC3339)
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"trim":  strings.TrimSpace,
}

// Substitute replaces {{name}} placeholders with values from variables.
// Unknown placeholders are left untouched.
func Substitute(input string, variables map[string]string) string {
	if !strings.Contains(input, "{{") {
		return input
	}

	return placeholder.ReplaceAllStringFunc(input, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		if value, ok := variables[name]; ok {
			return value
		}

		return match
	})
}

// SubstituteAll walks a decoded configuration value and substitutes every string
// it contains. Maps and slices are copied, so the input is never mutated.
func SubstituteAll(value any, variables map[string]string) any {
	switch v := value.(type) {
	case string:
		return Substitute(v, variables)
	case map[string]any:
		rendered := make(map[string]any, len(v))
		for key, nested := range v {
			rendered[key] = SubstituteAll(nested, variables)
		}

		return rendered
	case []any:
		rendered := make([]any, len(v))
		for i, nested := range v {
			rendered[i] = SubstituteAll(nested, variables)
		}

		return rendered
	case []string:
		rendered := make([]string, len(v))
		for i, nested := range v {
			rendered[i] = Substitute(nested, variables)
		}

		return rendered
	default:
		return value
	}
}

// RenderAction returns a copy of the action with every configuration string rendered,
// except the action type's verbatim keys. Branches are left alone; they are
// rendered when chosen.
func RenderAction(action models.Action, variables map[string]string) models.Action {
	if action.Configuration == nil {
		return action
	}

	rendered, _ := SubstituteAll(action.Configuration, variables).(map[string]any)

	for _, key := range verbatimKeys[action.Type] {
		if raw, ok := action.Configuration[key]; ok {
			rendered[key] = raw
		}
	}

	action.Configuration = rendered

	return action
}

// Render executes a text/template against the execution variables, exposed as
// .vars, plus the execution identity under .execution. A plain {{name}} reads
// the variable of that name, so variable values are output and never parsed.
func Render(templateStr string, execCtx *models.ExecutionContext) (string, error) {
	tmpl, err := template.
		New("transform").
		Option("missingkey=zero").
		Funcs(templateFuncs).
		Parse(variableReferences(templateStr))
	if err != nil {
		return "", fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	data := map[string]any{
		"vars":    execCtx.Variables,
		"trigger": execCtx.TriggerData,
		"execution": map[string]any{
			"id":          execCtx.ID,
			"workflow_id": execCtx.WorkflowID,
			"user_id":     execCtx.UserID,
		},
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	return buf.String(), nil
}

// variableReferences rewrites {{name}} into an index on .vars. Functions and
// template keywords keep their meaning.
func variableReferences(templateStr string) string {
	if !strings.Contains(templateStr, "{{") {
		return templateStr
	}

	return bareVariable.ReplaceAllStringFunc(templateStr, func(match string) string {
		name := bareVariable.FindStringSubmatch(match)[1]
		if _, isFunc := templateFuncs[name]; isFunc || templateKeywords[name] {
			return match
		}

		return fmt.Sprintf("{{index .vars %q}}", name)
	})
}
