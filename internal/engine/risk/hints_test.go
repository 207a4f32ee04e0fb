// SPDX-License-Identifier: Apache-2.0

package risk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsdeck/remedy/internal/engine/risk"
)

func TestExtractHints(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []risk.Hint
	}{
		{
			name:     "empty text",
			text:     "",
			expected: nil,
		},
		{
			name:     "no trigger phrases",
			text:     "This plan restarts a stateless service and is routine.",
			expected: nil,
		},
		{
			name:     "data loss",
			text:     "Dropping this table is irreversible and may cause data loss.",
			expected: []risk.Hint{risk.HintDataLoss},
		},
		{
			name:     "case insensitive",
			text:     "Expect DOWNTIME while the cluster restarts.",
			expected: []risk.Hint{risk.HintDowntime},
		},
		{
			name:     "multiple hints sorted",
			text:     "High risk change; expect an outage. Proceed carefully.",
			expected: []risk.Hint{risk.HintCaution, risk.HintDowntime, risk.HintHighRisk},
		},
		{
			name:     "repeated phrases raise one hint",
			text:     "downtime now, downtime later, more downtime",
			expected: []risk.Hint{risk.HintDowntime},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, risk.ExtractHints(tt.text))
		})
	}
}
