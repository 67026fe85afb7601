package retrieval

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Format renders a deterministic markdown view of hc for injection into a
// reasoning prompt. Section order and field order are fixed so the same
// HybridContext always formats identically.
func Format(hc *HybridContext) string {
	var b strings.Builder

	if hc.IsFirstAnalysis {
		b.WriteString("## Context\n\nFirst analysis - establishing baseline. No prior history or graph data available.\n\n")
	}

	b.WriteString("## Similar Past Analyses\n\n")
	if len(hc.VectorResults) == 0 {
		b.WriteString("None found.\n\n")
	} else {
		for _, h := range hc.VectorResults {
			fmt.Fprintf(&b, "- **%s** (%s, similarity %.2f): %s — recommendation %s, confidence %s\n",
				h.Ticker, h.AnalysisDate, h.Similarity, truncate(h.Content, 160), h.Recommendation, h.Confidence)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Graph Context\n\n")
	if hc.GraphContext.Empty {
		b.WriteString("No graph data available.\n\n")
	} else {
		if len(hc.GraphContext.Peers) > 0 {
			fmt.Fprintf(&b, "- Peers: %s\n", strings.Join(hc.GraphContext.Peers, ", "))
		}
		if len(hc.GraphContext.Risks) > 0 {
			fmt.Fprintf(&b, "- Risks: %s\n", strings.Join(hc.GraphContext.Risks, ", "))
		}
		if len(hc.GraphContext.Strategies) > 0 {
			fmt.Fprintf(&b, "- Average strategy win rate: %.1f%%\n", averageWinRate(hc.GraphContext.Strategies)*100)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Bias Warnings\n\n")
	if len(hc.BiasWarnings) == 0 {
		b.WriteString("None.\n\n")
	} else {
		for _, w := range hc.BiasWarnings {
			fmt.Fprintf(&b, "- %s (seen %d times, last impact: %s)\n", w.Bias, w.Occurrences, w.LastImpact)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Strategy Performance\n\n")
	if len(hc.StrategyRecommendations) == 0 {
		b.WriteString("None.\n")
	} else {
		for _, s := range hc.StrategyRecommendations {
			fmt.Fprintf(&b, "- %s: %.1f%% win rate (n=%d)\n", s.Strategy, s.WinRate*100, s.Sample)
		}
	}

	return b.String()
}

// averageWinRate reports the unweighted mean win rate across strategies,
// matching the graph store's own "average strategy win rate" summary
// statistic.
func averageWinRate(strategies []StrategyStat) float64 {
	rates := make([]float64, len(strategies))
	for i, s := range strategies {
		rates[i] = s.WinRate
	}
	return stat.Mean(rates, nil)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
