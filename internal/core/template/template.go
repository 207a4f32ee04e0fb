// SPDX-License-Identifier: Apache-2.0

package template

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"text/template"

	"github.com/opsdeck/remedy/internal/core/models"
)

var placeholderRegex = regexp.MustCompile(`\{\{\.([^}]+)\}\}`)

// Render processes a command template string with the given parameters.
// Missing keys are an error so a validated command can never render a
// "<no value>" into a shell line.
func Render(text string, params map[string]interface{}) (string, error) {
	tmpl, err := template.New("command").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("error parsing command template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("error executing command template: %w", err)
	}

	return buf.String(), nil
}

// Placeholders extracts the {{.name}} parameter references from a
// command template, deduplicated and sorted.
func Placeholders(text string) []string {
	seen := make(map[string]bool)
	for _, match := range placeholderRegex.FindAllStringSubmatch(text, -1) {
		if len(match) > 1 {
			seen[match[1]] = true
		}
	}

	result := make([]string, 0, len(seen))
	for name := range seen {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// MissingParameters returns the placeholders referenced by the plan's
// commands (including rollback commands) that are absent from the
// context map.
func MissingParameters(plan models.RemediationPlan, context map[string]interface{}) []string {
	seen := make(map[string]bool)
	var missing []string

	collect := func(text string) {
		for _, name := range Placeholders(text) {
			if seen[name] {
				continue
			}
			if _, ok := context[name]; !ok {
				seen[name] = true
				missing = append(missing, name)
			}
		}
	}

	for _, action := range plan.Actions {
		collect(action.Command)
		collect(action.RollbackCommand)
	}

	sort.Strings(missing)
	return missing
}

// ValidateContext checks at submission time that every placeholder in
// the plan's commands is present in the context. A missing placeholder
// is a submission-time validation failure, never a runtime one.
func ValidateContext(plan models.RemediationPlan, context map[string]interface{}) error {
	if missing := MissingParameters(plan, context); len(missing) > 0 {
		return fmt.Errorf("context is missing required parameters: %v", missing)
	}
	return nil
}
