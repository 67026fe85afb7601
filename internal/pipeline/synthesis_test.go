package pipeline

import (
	"testing"
	"time"

	"github.com/quietridge/analystd/internal/retrieval"
	"github.com/quietridge/analystd/internal/store"
	"github.com/stretchr/testify/require"
)

func TestRenderSynthesisBlock_IncludesAllSections(t *testing.T) {
	hc := &retrieval.HybridContext{
		GraphContext: retrieval.GraphContext{Peers: []string{"AMD", "INTC"}, Risks: []string{"supply chain"}},
		BiasWarnings: []retrieval.BiasWarning{{Bias: "recency", Occurrences: 2, LastImpact: "chased a rally"}},
	}
	past := []store.AnalysisResult{
		{Recommendation: "BUY", Confidence: 70, DocDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	adj := ConfidenceAdjustment{
		Adjusted:  65,
		Modifiers: map[string]int{ModifierBiasWarnings: -6, ModifierPatternConfirms: 5},
		Pattern:   PatternConfirms,
	}

	block := renderSynthesisBlock(hc, past, adj)

	require.Contains(t, block, "## Synthesis")
	require.Contains(t, block, "### Past Recommendations")
	require.Contains(t, block, "2026-03-01")
	require.Contains(t, block, "AMD, INTC")
	require.Contains(t, block, "supply chain")
	require.Contains(t, block, "recency")
	require.Contains(t, block, "bias_warnings | -6")
	require.Contains(t, block, "pattern_confirms | +5")
	require.Contains(t, block, "Confirms recent historical sentiment")
}

func TestRenderSynthesisBlock_EmptySectionsSayNone(t *testing.T) {
	hc := &retrieval.HybridContext{IsFirstAnalysis: true}
	adj := ConfidenceAdjustment{Adjusted: 50, Modifiers: map[string]int{}, Pattern: PatternFirstAnalysis}

	block := renderSynthesisBlock(hc, nil, adj)

	require.Contains(t, block, "No adjustments applied.")
	require.Contains(t, block, "First analysis - establishing baseline")
}

func TestOrderedModifierKeys_FollowsLadderOrder(t *testing.T) {
	modifiers := map[string]int{
		ModifierPatternContradicts: -10,
		ModifierFirstAnalysis:      -10,
		ModifierBiasWarnings:       -9,
	}
	keys := orderedModifierKeys(modifiers)
	require.Equal(t, []string{ModifierFirstAnalysis, ModifierBiasWarnings, ModifierPatternContradicts}, keys)
}
