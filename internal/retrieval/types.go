// Package retrieval builds the hybrid retrieval context every pipeline
// synthesis phase reads: similarity hits from the vector store, structural
// neighbors and statistics from the graph store, and the bias/strategy
// history derived from both. Vector and graph calls are independent and
// tolerate the other's failure; a down subsystem degrades the context, it
// never aborts the build.
package retrieval

import "context"

// VectorHit is one similarity result, enriched (when possible) with the
// recommendation/confidence/date of the AnalysisResult it corresponds to.
// Enrichment fields are the literal string "N/A" when no matching
// AnalysisResult exists — never an error.
type VectorHit struct {
	DocID          string
	FilePath       string
	DocType        string
	Ticker         string
	DocDate        string
	SectionLabel   string
	Content        string
	Similarity     float64
	Recommendation string
	Confidence     string
	AnalysisDate   string
}

// StrategyStat is one strategy's historical performance as reported by the
// graph store.
type StrategyStat struct {
	Name    string
	WinRate float64
	Sample  int
}

// GraphContext is the structural/statistical context the graph store
// returns for a ticker. Empty is the sentinel {"_status": "empty"} case:
// the store was reachable but had nothing to say.
type GraphContext struct {
	Peers      []string
	Risks      []string
	Strategies []StrategyStat
	Empty      bool
}

// BiasWarning flags a recurring cognitive bias observed in past analyses.
type BiasWarning struct {
	Bias           string
	Occurrences    int
	LastImpact     string
	TickerSpecific bool
}

// StrategyRecommendation is a strategy surfaced for the current ticker
// based on its historical win rate.
type StrategyRecommendation struct {
	Strategy string
	WinRate  float64
	Sample   int
}

// HybridContext is the combined retrieval result handed to the synthesis
// phase.
type HybridContext struct {
	VectorResults           []VectorHit
	GraphContext            GraphContext
	BiasWarnings            []BiasWarning
	StrategyRecommendations []StrategyRecommendation

	HasHistory      bool
	HistoryCount    int
	HasGraphData    bool
	IsFirstAnalysis bool

	Formatted string
}

// VectorStore is the minimal interface C4 needs from the external
// similarity-search subsystem.
type VectorStore interface {
	Search(ctx context.Context, ticker, queryText, analysisKind string) ([]VectorHit, error)
}

// GraphStore is the minimal interface C4 needs from the external structural
// graph subsystem.
type GraphStore interface {
	Query(ctx context.Context, ticker string) (GraphContext, []BiasWarning, []StrategyRecommendation, error)
}

// Enricher resolves a vector doc_id to the recommendation/confidence/date
// of the AnalysisResult it corresponds to, if one is persisted.
type Enricher interface {
	GetAnalysisResultByDocID(docID string) (*EnrichedAnalysis, error)
}

// EnrichedAnalysis is the subset of a persisted AnalysisResult needed to
// enrich a vector hit. The analysis date shown to callers is derived from
// the doc_id pattern directly, not from this struct.
type EnrichedAnalysis struct {
	Recommendation string
	Confidence     int
}
