package pipeline

import (
	"testing"

	"github.com/quietridge/analystd/internal/retrieval"
	"github.com/quietridge/analystd/internal/store"
	"github.com/stretchr/testify/require"
)

func TestAdjustConfidence_FirstAnalysis(t *testing.T) {
	hc := &retrieval.HybridContext{IsFirstAnalysis: true, HasGraphData: true}
	adj := adjustConfidence(60, "BUY", hc, nil)

	require.Equal(t, -10, adj.Modifiers[ModifierFirstAnalysis])
	require.NotContains(t, adj.Modifiers, ModifierNoGraph)
	require.Equal(t, 50, adj.Adjusted)
	require.Equal(t, PatternFirstAnalysis, adj.Pattern)
}

// TestAdjustConfidence_FirstAnalysisWithNoGraph matches spec.md §8 Scenario
// S1: a first analysis (no prior AnalysisResult, no graph data) applies
// first_analysis and no_graph together, 76 -> 61.
func TestAdjustConfidence_FirstAnalysisWithNoGraph(t *testing.T) {
	hc := &retrieval.HybridContext{IsFirstAnalysis: true, HasGraphData: false}
	adj := adjustConfidence(76, "BUY", hc, nil)

	require.Equal(t, -10, adj.Modifiers[ModifierFirstAnalysis])
	require.Equal(t, -5, adj.Modifiers[ModifierNoGraph])
	require.NotContains(t, adj.Modifiers, ModifierSparseHistory)
	require.Equal(t, 61, adj.Adjusted)
	require.Equal(t, PatternFirstAnalysis, adj.Pattern)
}

func TestAdjustConfidence_SparseHistoryAndNoGraph(t *testing.T) {
	hc := &retrieval.HybridContext{HistoryCount: 2, HasGraphData: false}
	adj := adjustConfidence(70, "HOLD", hc, nil)

	require.Equal(t, -5, adj.Modifiers[ModifierSparseHistory])
	require.Equal(t, -5, adj.Modifiers[ModifierNoGraph])
	require.Equal(t, 60, adj.Adjusted)
}

func TestAdjustConfidence_BiasWarningsCappedAtFifteen(t *testing.T) {
	hc := &retrieval.HybridContext{
		HistoryCount: 5, HasGraphData: true,
		BiasWarnings: []retrieval.BiasWarning{{Occurrences: 4}, {Occurrences: 3}},
	}
	adj := adjustConfidence(80, "HOLD", hc, nil)

	require.Equal(t, -15, adj.Modifiers[ModifierBiasWarnings], "7 occurrences * 3 = 21, capped at -15")
	require.Equal(t, 65, adj.Adjusted)
}

func TestAdjustConfidence_PatternConfirms(t *testing.T) {
	hc := &retrieval.HybridContext{HistoryCount: 5, HasGraphData: true}
	past := []store.AnalysisResult{
		{Recommendation: "BUY"}, {Recommendation: "BULLISH"}, {Recommendation: "SELL"},
	}
	adj := adjustConfidence(50, "BUY", hc, past)

	require.Equal(t, 5, adj.Modifiers[ModifierPatternConfirms])
	require.Equal(t, PatternConfirms, adj.Pattern)
}

func TestAdjustConfidence_PatternContradicts(t *testing.T) {
	hc := &retrieval.HybridContext{HistoryCount: 5, HasGraphData: true}
	past := []store.AnalysisResult{
		{Recommendation: "SELL"}, {Recommendation: "BEARISH"}, {Recommendation: "SHORT"},
	}
	adj := adjustConfidence(50, "BUY", hc, past)

	require.Equal(t, -10, adj.Modifiers[ModifierPatternContradicts])
	require.Equal(t, PatternContradicts, adj.Pattern)
}

func TestAdjustConfidence_TieBreaksTowardNeutral(t *testing.T) {
	hc := &retrieval.HybridContext{HistoryCount: 5, HasGraphData: true}
	past := []store.AnalysisResult{
		{Recommendation: "BUY"}, {Recommendation: "SELL"}, {Recommendation: "HOLD"},
	}
	adj := adjustConfidence(50, "BUY", hc, past)

	require.NotContains(t, adj.Modifiers, ModifierPatternConfirms)
	require.NotContains(t, adj.Modifiers, ModifierPatternContradicts)
	require.Equal(t, PatternUnclear, adj.Pattern)
}

func TestAdjustConfidence_NeutralCurrentNeitherConfirmsNorContradicts(t *testing.T) {
	hc := &retrieval.HybridContext{HistoryCount: 5, HasGraphData: true}
	past := []store.AnalysisResult{
		{Recommendation: "BUY"}, {Recommendation: "BUY"}, {Recommendation: "SELL"},
	}
	adj := adjustConfidence(50, "HOLD", hc, past)

	require.NotContains(t, adj.Modifiers, ModifierPatternConfirms)
	require.NotContains(t, adj.Modifiers, ModifierPatternContradicts)
}

func TestAdjustConfidence_ClampedToZeroAndHundred(t *testing.T) {
	hc := &retrieval.HybridContext{IsFirstAnalysis: true}
	low := adjustConfidence(3, "SELL", hc, nil)
	require.Equal(t, 0, low.Adjusted)

	hcHigh := &retrieval.HybridContext{HistoryCount: 5, HasGraphData: true}
	past := []store.AnalysisResult{{Recommendation: "BUY"}, {Recommendation: "BUY"}, {Recommendation: "LONG"}}
	high := adjustConfidence(99, "BUY", hcHigh, past)
	require.Equal(t, 100, high.Adjusted)
}

func TestAdjustConfidence_OnlyUsesFirstThreePastEntries(t *testing.T) {
	hc := &retrieval.HybridContext{HistoryCount: 5, HasGraphData: true}
	past := []store.AnalysisResult{
		{Recommendation: "BUY"}, {Recommendation: "BUY"}, {Recommendation: "BUY"},
		{Recommendation: "SELL"}, {Recommendation: "SELL"},
	}
	adj := adjustConfidence(50, "BUY", hc, past)
	require.Equal(t, 5, adj.Modifiers[ModifierPatternConfirms], "majority of first 3 is bullish, later entries ignored")
}
