// SPDX-License-Identifier: Apache-2.0

package risk

import (
	"sort"
	"strings"
)

// Hint is a coarse risk tag extracted from free-text commentary.
type Hint string

const (
	HintDataLoss Hint = "data_loss"
	HintHighRisk Hint = "high_risk"
	HintDowntime Hint = "downtime"
	HintCaution  Hint = "caution"
)

// hintPhrases maps each hint to the trigger phrases that raise it.
// Keyword matching over LLM text is a best-effort signal; everything
// downstream of ExtractHints is deterministic.
var hintPhrases = map[Hint][]string{
	HintDataLoss: {"data loss", "data-loss", "irreversible", "destructive", "cannot be undone"},
	HintHighRisk: {"high risk", "high-risk", "dangerous", "severe impact", "significant risk"},
	HintDowntime: {"downtime", "outage", "service interruption", "unavailable"},
	HintCaution:  {"caution", "proceed carefully", "review recommended", "double-check"},
}

// ExtractHints scans commentary text for trigger phrases and returns
// the set of matched hints, sorted for determinism. Empty text yields
// no hints.
func ExtractHints(text string) []Hint {
	if text == "" {
		return nil
	}

	lowered := strings.ToLower(text)
	var hints []Hint
	for hint, phrases := range hintPhrases {
		for _, phrase := range phrases {
			if strings.Contains(lowered, phrase) {
				hints = append(hints, hint)
				break
			}
		}
	}

	sort.Slice(hints, func(i, j int) bool { return hints[i] < hints[j] })
	return hints
}
