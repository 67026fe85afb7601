package pipeline

import (
	"fmt"
	"strings"

	"github.com/quietridge/analystd/internal/retrieval"
	"github.com/quietridge/analystd/internal/store"
)

// renderSynthesisBlock builds the markdown appended to a Phase 1 artifact by
// Phase 4: a table of past recommendations, bias warnings, sector peers,
// known risks, a confidence-adjustment table, and a summary line.
func renderSynthesisBlock(hc *retrieval.HybridContext, pastForTable []store.AnalysisResult, adj ConfidenceAdjustment) string {
	var b strings.Builder

	b.WriteString("\n\n---\n\n## Synthesis\n\n")

	b.WriteString("### Past Recommendations\n\n")
	if len(pastForTable) == 0 {
		b.WriteString("None.\n\n")
	} else {
		b.WriteString("| Date | Recommendation | Confidence |\n|---|---|---|\n")
		limit := pastForTable
		if len(limit) > 5 {
			limit = limit[:5]
		}
		for _, p := range limit {
			fmt.Fprintf(&b, "| %s | %s | %d |\n", p.DocDate.Format("2006-01-02"), p.Recommendation, p.Confidence)
		}
		b.WriteString("\n")
	}

	b.WriteString("### Bias Warnings\n\n")
	if len(hc.BiasWarnings) == 0 {
		b.WriteString("None.\n\n")
	} else {
		for _, w := range hc.BiasWarnings {
			fmt.Fprintf(&b, "- %s (seen %d times, last impact: %s)\n", w.Bias, w.Occurrences, w.LastImpact)
		}
		b.WriteString("\n")
	}

	b.WriteString("### Sector Peers\n\n")
	peers := hc.GraphContext.Peers
	if len(peers) > 6 {
		peers = peers[:6]
	}
	if len(peers) == 0 {
		b.WriteString("None.\n\n")
	} else {
		fmt.Fprintf(&b, "%s\n\n", strings.Join(peers, ", "))
	}

	b.WriteString("### Known Risks\n\n")
	risks := hc.GraphContext.Risks
	if len(risks) > 4 {
		risks = risks[:4]
	}
	if len(risks) == 0 {
		b.WriteString("None.\n\n")
	} else {
		for _, r := range risks {
			fmt.Fprintf(&b, "- %s\n", r)
		}
		b.WriteString("\n")
	}

	b.WriteString("### Confidence Adjustment\n\n")
	if len(adj.Modifiers) == 0 {
		b.WriteString("No adjustments applied.\n\n")
	} else {
		b.WriteString("| Modifier | Value |\n|---|---|\n")
		for _, key := range orderedModifierKeys(adj.Modifiers) {
			fmt.Fprintf(&b, "| %s | %+d |\n", key, adj.Modifiers[key])
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "**Historical Pattern:** %s\n", adj.Pattern)

	return b.String()
}

// orderedModifierKeys returns modifier keys in the ladder's fixed display
// order, so the rendered table is deterministic regardless of map
// iteration order.
func orderedModifierKeys(modifiers map[string]int) []string {
	order := []string{
		ModifierFirstAnalysis, ModifierSparseHistory, ModifierNoGraph,
		ModifierBiasWarnings, ModifierPatternConfirms, ModifierPatternContradicts,
	}
	out := make([]string, 0, len(modifiers))
	for _, k := range order {
		if _, ok := modifiers[k]; ok {
			out = append(out, k)
		}
	}
	return out
}
