// SPDX-License-Identifier: Apache-2.0

package format

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseFile reads and parses a file, trying YAML first, then JSON
func ParseFile(filePath string, v interface{}) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}

	return ParseData(data, v)
}

// ParseData parses data, trying YAML first, then JSON
func ParseData(data []byte, v interface{}) error {
	// Try YAML first (preferred format)
	err := yaml.Unmarshal(data, v)
	if err == nil {
		return nil
	}

	// If YAML fails, try JSON for backward compatibility
	jsonErr := json.Unmarshal(data, v)
	if jsonErr == nil {
		return nil
	}

	// Both failed - return the more informative error
	return fmt.Errorf("failed to parse as YAML (%v) or JSON (%v)", err, jsonErr)
}

// FormatData formats data as YAML or JSON string
func FormatData(v interface{}, useYAML bool) (string, error) {
	var data []byte
	var err error

	if useYAML {
		data, err = yaml.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
	}

	if err != nil {
		return "", fmt.Errorf("error formatting data: %w", err)
	}

	return string(data), nil
}

// IsPlanFile returns true if the file extension is one the catalog
// loader understands
func IsPlanFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	return ext == ".yaml" || ext == ".yml" || ext == ".json"
}
