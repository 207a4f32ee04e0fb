// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/opsdeck/remedy/internal/core/format"
	"github.com/opsdeck/remedy/internal/core/models"
)

// ErrPlanNotFound is returned when a plan id is not in the catalog
var ErrPlanNotFound = errors.New("plan not found")

// planSchema is the JSON schema every catalog entry must satisfy before
// it is unmarshaled into a plan. Durations appear as strings here
// ("30s", "5m") and are parsed during unmarshaling.
const planSchema = `{
	"type": "object",
	"required": ["id", "title", "actions"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"title": {"type": "string", "minLength": 1},
		"description": {"type": "string"},
		"estimated_duration": {"type": "string"},
		"resources": {"type": "array", "items": {"type": "string"}},
		"approval_required": {"type": "boolean"},
		"auto_execute": {"type": "boolean"},
		"actions": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "name", "type", "command", "timeout"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"name": {"type": "string", "minLength": 1},
					"type": {"type": "string", "enum": ["shell_command", "orchestrator_cli", "infra_as_code", "api_call"]},
					"command": {"type": "string", "minLength": 1},
					"timeout": {"type": "string"},
					"rollback_command": {"type": "string"},
					"risk_tier": {"type": "string", "enum": ["very_low", "low", "medium", "high", "critical"]},
					"requires_approval": {"type": "boolean"}
				}
			}
		}
	}
}`

// Catalog is the immutable set of remediation plans known to the
// engine, loaded once at startup.
type Catalog struct {
	plans map[string]models.RemediationPlan
	order []string
}

// Load reads every plan file from a directory into a catalog.
// Duplicate plan ids across files are a load error.
func Load(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading catalog directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog path is not a directory: %s", dir)
	}

	catalog := &Catalog{plans: make(map[string]models.RemediationPlan)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error listing catalog directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !format.IsPlanFile(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		plan, err := LoadPlanFile(path)
		if err != nil {
			return nil, fmt.Errorf("error loading plan file %s: %w", entry.Name(), err)
		}

		if _, exists := catalog.plans[plan.ID]; exists {
			return nil, fmt.Errorf("duplicate plan id %q in %s", plan.ID, entry.Name())
		}

		catalog.plans[plan.ID] = *plan
		catalog.order = append(catalog.order, plan.ID)
	}

	if len(catalog.plans) == 0 {
		return nil, fmt.Errorf("no plans found in catalog directory %s", dir)
	}

	sort.Strings(catalog.order)
	return catalog, nil
}

// LoadPlanFile loads and validates a single plan definition
func LoadPlanFile(path string) (*models.RemediationPlan, error) {
	// Parse into a generic map first so the schema sees the raw shape
	var raw map[string]interface{}
	if err := format.ParseFile(path, &raw); err != nil {
		return nil, err
	}

	if err := validateShape(raw); err != nil {
		return nil, err
	}

	var plan models.RemediationPlan
	if err := format.ParseFile(path, &plan); err != nil {
		return nil, err
	}

	if err := ValidatePlan(plan); err != nil {
		return nil, err
	}

	return &plan, nil
}

// validateShape checks a raw plan document against the catalog schema
func validateShape(raw map[string]interface{}) error {
	docBytes, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("error serializing plan for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(planSchema),
		gojsonschema.NewBytesLoader(docBytes),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("plan definition invalid: %s", strings.Join(msgs, "; "))
	}

	return nil
}

// ValidatePlan applies the semantic checks the JSON schema cannot
// express: unique action ids, known types, positive timeouts.
func ValidatePlan(plan models.RemediationPlan) error {
	seen := make(map[string]bool)
	for _, action := range plan.Actions {
		if seen[action.ID] {
			return fmt.Errorf("plan %q has duplicate action id %q", plan.ID, action.ID)
		}
		seen[action.ID] = true

		if !models.ValidActionType(action.Type) {
			return fmt.Errorf("plan %q action %q has unknown type %q", plan.ID, action.ID, action.Type)
		}

		if action.Timeout.Std() <= 0 {
			return fmt.Errorf("plan %q action %q has non-positive timeout", plan.ID, action.ID)
		}
	}

	return nil
}

// Get returns the plan with the given id
func (c *Catalog) Get(id string) (models.RemediationPlan, error) {
	plan, ok := c.plans[id]
	if !ok {
		return models.RemediationPlan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return plan, nil
}

// List returns all plans, ordered by id
func (c *Catalog) List() []models.RemediationPlan {
	result := make([]models.RemediationPlan, 0, len(c.order))
	for _, id := range c.order {
		result = append(result, c.plans[id])
	}
	return result
}

// Len returns the number of plans in the catalog
func (c *Catalog) Len() int {
	return len(c.plans)
}
